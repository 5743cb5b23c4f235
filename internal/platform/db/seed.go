package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"firmpay/internal/domain/auth"
	"firmpay/internal/platform/config"
)

func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	firmID, err := ensureFirm(ctx, pool, cfg.SeedFirmName)
	if err != nil {
		return err
	}

	if err := ensurePermissions(ctx, pool); err != nil {
		return err
	}

	roleIDs, err := ensureRoles(ctx, pool, firmID)
	if err != nil {
		return err
	}

	if err := ensureRolePermissions(ctx, pool, roleIDs); err != nil {
		return err
	}

	if err := ensureAdminUser(ctx, pool, firmID, roleIDs[auth.RoleAdmin], cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
		return err
	}

	if cfg.Environment != "production" {
		if err := ensureDemoEmployees(ctx, pool, firmID); err != nil {
			return err
		}
	}

	return nil
}

func ensureFirm(ctx context.Context, pool *pgxpool.Pool, name string) (string, error) {
	var id string
	err := pool.QueryRow(ctx, "SELECT id FROM firms WHERE name = $1", name).Scan(&id)
	if err == nil {
		return id, nil
	}

	err = pool.QueryRow(ctx, "INSERT INTO firms (name) VALUES ($1) RETURNING id", name).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func ensurePermissions(ctx context.Context, pool *pgxpool.Pool) error {
	for _, perm := range auth.DefaultPermissions {
		_, err := pool.Exec(ctx, "INSERT INTO permissions (key) VALUES ($1) ON CONFLICT (key) DO NOTHING", perm)
		if err != nil {
			return err
		}
	}
	return nil
}

func ensureRoles(ctx context.Context, pool *pgxpool.Pool, firmID string) (map[string]string, error) {
	roleIDs := map[string]string{}
	for roleName := range auth.RolePermissions {
		var id string
		err := pool.QueryRow(ctx, "SELECT id FROM roles WHERE firm_id = $1 AND name = $2", firmID, roleName).Scan(&id)
		if err == nil {
			roleIDs[roleName] = id
			continue
		}

		err = pool.QueryRow(ctx, "INSERT INTO roles (firm_id, name) VALUES ($1, $2) RETURNING id", firmID, roleName).Scan(&id)
		if err != nil {
			return nil, err
		}
		roleIDs[roleName] = id
	}
	return roleIDs, nil
}

func ensureRolePermissions(ctx context.Context, pool *pgxpool.Pool, roleIDs map[string]string) error {
	permMap := map[string]string{}
	rows, err := pool.Query(ctx, "SELECT id, key FROM permissions")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id, key string
		if err := rows.Scan(&id, &key); err != nil {
			return err
		}
		permMap[key] = id
	}

	for roleName, perms := range auth.RolePermissions {
		roleID := roleIDs[roleName]
		for _, permKey := range perms {
			permID, ok := permMap[permKey]
			if !ok {
				return errors.New("permission not found: " + permKey)
			}
			_, err := pool.Exec(ctx, "INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", roleID, permID)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func ensureAdminUser(ctx context.Context, pool *pgxpool.Pool, firmID, roleID, email, password string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return nil
	}

	var id string
	err := pool.QueryRow(ctx, "SELECT id FROM users WHERE firm_id = $1 AND email = $2", firmID, email).Scan(&id)
	if err == nil {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	return pool.QueryRow(ctx, "INSERT INTO users (firm_id, email, password_hash, role_id) VALUES ($1, $2, $3, $4) RETURNING id",
		firmID, email, hash, roleID).Scan(&id)
}

// ensureDemoEmployees seeds a small roster so a fresh development install
// can run a payroll cycle end to end.
func ensureDemoEmployees(ctx context.Context, pool *pgxpool.Pool, firmID string) error {
	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(1) FROM employees WHERE firm_id = $1", firmID).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	demo := []struct {
		email, first, last, gender, iban string
		saudi                            bool
		basic                            float64
	}{
		{"ahmed.saleh@example.com", "Ahmed", "Saleh", "male", "SA0380000000608010167519", true, 5000},
		{"noura.qahtani@example.com", "Noura", "Qahtani", "female", "SA4420000001234567891234", true, 5000},
		{"john.smith@example.com", "John", "Smith", "male", "SA9150000068203456789012", false, 8000},
	}
	for _, d := range demo {
		_, err := pool.Exec(ctx, `
      INSERT INTO employees (firm_id, email, first_name, last_name, is_saudi, gender,
                             employment_status, employment_type, basic_salary, allowances_json,
                             payment_method, iban, bank_name)
      VALUES ($1, $2, $3, $4, $5, $6, 'active', 'full_time', $7, '[]', 'bank_transfer', $8, 'Demo Bank')
    `, firmID, d.email, d.first, d.last, d.saudi, d.gender, d.basic, d.iban)
		if err != nil {
			return err
		}
	}
	return nil
}
