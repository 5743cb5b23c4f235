package employees

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"firmpay/internal/domain/tenant"
)

var ErrNotFound = errors.New("employee not found")

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const employeeColumns = `
    id, COALESCE(firm_id::text, ''), COALESCE(lawyer_id::text, ''), email,
    first_name, last_name, is_saudi, COALESCE(gender, ''),
    employment_status, employment_type,
    basic_salary, allowances_json, payment_method,
    COALESCE(iban, ''), COALESCE(bank_name, ''), created_at`

func (s *Store) FindEmployees(ctx context.Context, scope tenant.Scope, filter Filter) ([]Employee, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	column, owner := scope.Owner()
	query := fmt.Sprintf("SELECT %s FROM employees WHERE %s = $1", employeeColumns, column)
	args := []any{owner}

	if len(filter.EmploymentStatuses) > 0 {
		query += fmt.Sprintf(" AND employment_status = ANY($%d)", len(args)+1)
		args = append(args, filter.EmploymentStatuses)
	}
	if len(filter.EmployeeTypes) > 0 {
		query += fmt.Sprintf(" AND employment_type = ANY($%d)", len(args)+1)
		args = append(args, filter.EmployeeTypes)
	}
	if len(filter.ExcludeIDs) > 0 {
		query += fmt.Sprintf(" AND NOT (id = ANY($%d))", len(args)+1)
		args = append(args, filter.ExcludeIDs)
	}
	query += " ORDER BY last_name, first_name"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		employee, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, employee)
	}
	return out, rows.Err()
}

func (s *Store) FindEmployee(ctx context.Context, scope tenant.Scope, employeeID string) (Employee, error) {
	if err := scope.Validate(); err != nil {
		return Employee{}, err
	}
	column, owner := scope.Owner()
	query := fmt.Sprintf("SELECT %s FROM employees WHERE %s = $1 AND id = $2", employeeColumns, column)
	rows, err := s.DB.Query(ctx, query, owner, employeeID)
	if err != nil {
		return Employee{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Employee{}, err
		}
		return Employee{}, fmt.Errorf("%w: %s", ErrNotFound, employeeID)
	}
	return scanEmployee(rows)
}

func (s *Store) CountEmployees(ctx context.Context, scope tenant.Scope) (int, error) {
	column, owner := scope.Owner()
	var total int
	err := s.DB.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(1) FROM employees WHERE %s = $1", column), owner).Scan(&total)
	return total, err
}

func (s *Store) CreateEmployee(ctx context.Context, scope tenant.Scope, employee Employee) (string, error) {
	if err := scope.Validate(); err != nil {
		return "", err
	}
	allowancesJSON, err := json.Marshal(employee.Compensation.Allowances)
	if err != nil {
		return "", err
	}
	var id string
	err = s.DB.QueryRow(ctx, `
    INSERT INTO employees (firm_id, lawyer_id, email, first_name, last_name, is_saudi, gender,
                           employment_status, employment_type, basic_salary, allowances_json,
                           payment_method, iban, bank_name)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
    RETURNING id
  `, scope.FirmValue(), scope.LawyerValue(), employee.Email,
		employee.PersonalInfo.FirstName, employee.PersonalInfo.LastName,
		employee.PersonalInfo.IsSaudi, employee.PersonalInfo.Gender,
		employee.Employment.Status, employee.Employment.Type,
		employee.Compensation.BasicSalary, allowancesJSON,
		employee.Compensation.PaymentMethod,
		employee.Compensation.BankDetails.IBAN, employee.Compensation.BankDetails.BankName,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) UpdateEmployee(ctx context.Context, scope tenant.Scope, employee Employee) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	allowancesJSON, err := json.Marshal(employee.Compensation.Allowances)
	if err != nil {
		return err
	}
	column, owner := scope.Owner()
	tag, err := s.DB.Exec(ctx, fmt.Sprintf(`
    UPDATE employees
    SET email = $1, first_name = $2, last_name = $3, is_saudi = $4, gender = $5,
        employment_status = $6, employment_type = $7, basic_salary = $8,
        allowances_json = $9, payment_method = $10, iban = $11, bank_name = $12
    WHERE %s = $13 AND id = $14
  `, column), employee.Email,
		employee.PersonalInfo.FirstName, employee.PersonalInfo.LastName,
		employee.PersonalInfo.IsSaudi, employee.PersonalInfo.Gender,
		employee.Employment.Status, employee.Employment.Type,
		employee.Compensation.BasicSalary, allowancesJSON,
		employee.Compensation.PaymentMethod,
		employee.Compensation.BankDetails.IBAN, employee.Compensation.BankDetails.BankName,
		owner, employee.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, employee.ID)
	}
	return nil
}

func scanEmployee(rows pgx.Rows) (Employee, error) {
	var employee Employee
	var allowancesJSON []byte
	if err := rows.Scan(
		&employee.ID, &employee.FirmID, &employee.LawyerID, &employee.Email,
		&employee.PersonalInfo.FirstName, &employee.PersonalInfo.LastName,
		&employee.PersonalInfo.IsSaudi, &employee.PersonalInfo.Gender,
		&employee.Employment.Status, &employee.Employment.Type,
		&employee.Compensation.BasicSalary, &allowancesJSON,
		&employee.Compensation.PaymentMethod,
		&employee.Compensation.BankDetails.IBAN, &employee.Compensation.BankDetails.BankName,
		&employee.CreatedAt,
	); err != nil {
		return Employee{}, err
	}
	if len(allowancesJSON) > 0 {
		if err := json.Unmarshal(allowancesJSON, &employee.Compensation.Allowances); err != nil {
			employee.Compensation.Allowances = nil
		}
	}
	return employee, nil
}
