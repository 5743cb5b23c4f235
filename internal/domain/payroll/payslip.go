package payroll

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"firmpay/internal/domain/tenant"
)

// GenerateSlipPDF renders a salary slip to disk and returns the file path.
// When an encryption key is configured the file is stored encrypted at rest.
func (s *Service) GenerateSlipPDF(ctx context.Context, scope tenant.Scope, slipID string) (string, error) {
	slip, err := s.store.GetSlip(ctx, scope, slipID)
	if err != nil {
		return "", err
	}

	dir := s.slipDir
	if dir == "" {
		dir = "storage/slips"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	filePath := filepath.Join(dir, slip.SlipNumber+".pdf")

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Salary Slip")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Slip: %s", slip.SlipNumber))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s", slip.EmployeeName))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s to %s",
		slip.PeriodStart.Format("2006-01-02"), slip.PeriodEnd.Format("2006-01-02")))
	pdf.Ln(10)
	pdf.Cell(0, 8, fmt.Sprintf("Basic Salary: %.2f SAR", slip.BasicSalary))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Allowances: %.2f SAR", slip.Allowances))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Gross Pay: %.2f SAR", slip.GrossPay))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("GOSI (employee): %.2f SAR", slip.GOSIEmployee))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Other Deductions: %.2f SAR", slip.OtherDeductions))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Total Deductions: %.2f SAR", slip.TotalDeductions))
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Net Pay: %.2f SAR", slip.NetPay))

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", err
	}

	if s.crypto != nil && s.crypto.Configured() {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", err
		}
		encrypted, err := s.crypto.Encrypt(data)
		if err != nil {
			return "", err
		}
		encryptedPath := filePath + ".enc"
		if err := os.WriteFile(encryptedPath, encrypted, 0o600); err != nil {
			return "", err
		}
		if err := os.Remove(filePath); err != nil {
			return "", err
		}
		return encryptedPath, nil
	}

	return filePath, nil
}

// DownloadSlip renders the slip and returns plaintext PDF bytes, decrypting
// the stored file when encryption at rest is enabled.
func (s *Service) DownloadSlip(ctx context.Context, scope tenant.Scope, slipID string) (string, []byte, error) {
	path, err := s.GenerateSlipPDF(ctx, scope, slipID)
	if err != nil {
		return "", nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	if strings.HasSuffix(path, ".enc") {
		data, err = s.crypto.Decrypt(data)
		if err != nil {
			return "", nil, err
		}
		path = strings.TrimSuffix(path, ".enc")
	}
	return filepath.Base(path), data, nil
}

func (s *Service) ListSlips(ctx context.Context, scope tenant.Scope, runID string) ([]SalarySlip, error) {
	return s.store.ListSlips(ctx, scope, runID)
}

func (s *Service) GetSlip(ctx context.Context, scope tenant.Scope, slipID string) (*SalarySlip, error) {
	return s.store.GetSlip(ctx, scope, slipID)
}
