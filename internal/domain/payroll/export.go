package payroll

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"firmpay/internal/domain/tenant"
)

const (
	ExportFormatJSON = "json"
	ExportFormatCSV  = "csv"
)

type ExportFile struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ExportReport renders the run as a downloadable payroll register. Any
// status may be exported; drafts simply show an empty register.
func (s *Service) ExportReport(ctx context.Context, scope tenant.Scope, runID, format string) (*ExportFile, error) {
	run, err := s.loadOwned(ctx, scope, runID)
	if err != nil {
		return nil, err
	}
	base := fmt.Sprintf("payroll_%04d%02d_%s", run.Period.Year, run.Period.Month, run.ID)

	switch format {
	case ExportFormatJSON:
		data, err := json.MarshalIndent(run, "", "  ")
		if err != nil {
			return nil, err
		}
		return &ExportFile{FileName: base + ".json", ContentType: "application/json", Data: data}, nil
	case ExportFormatCSV:
		data, err := renderRegisterCSV(run)
		if err != nil {
			return nil, err
		}
		return &ExportFile{FileName: base + ".csv", ContentType: "text/csv", Data: data}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
}

func renderRegisterCSV(run *PayrollRun) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"employee_id", "name", "saudi", "basic_salary", "allowances", "gross_pay",
		"gosi_employee", "gosi_employer", "other_deductions", "total_deductions", "net_pay",
		"payment_method", "iban", "on_hold", "payment_status"}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, e := range run.EmployeeList {
		row := []string{
			e.EmployeeID, e.Name, strconv.FormatBool(e.IsSaudi),
			money(e.BasicSalary), money(e.Allowances), money(e.GrossPay),
			money(e.GOSIEmployee), money(e.GOSIEmployer), money(e.ManualDeductions()),
			money(e.TotalDeductions), money(e.NetPay),
			e.PaymentMethod, e.IBAN, strconv.FormatBool(e.OnHold), e.PaymentStatus,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	totals := []string{
		"", "TOTAL", "",
		money(run.Summary.TotalBasicSalary), money(run.Summary.TotalAllowances), money(run.Summary.TotalGrossPay),
		money(run.Summary.TotalGOSIEmployee), money(run.Summary.TotalGOSIEmployer), "",
		money(run.Summary.TotalDeductions), money(run.Summary.TotalNetPay),
		"", "", "", "",
	}
	if err := w.Write(totals); err != nil {
		return nil, err
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
