package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/model"
)

func (r *employeeRepository) Get(ctx context.Context, id int64) (*model.Employee, error) {
	query := `
		SELECT id, first_name, last_name, email, role, password_hash, created_at
		FROM employees
		WHERE id = $1
	`
	var employee model.Employee
	if err := r.db.GetContext(ctx, &employee, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return &employee, nil
}

func (r *patientRepository) Get(ctx context.Context, id int64) (*model.Patient, error) {
	query := `
		SELECT id, first_name, last_name, email
		FROM patients
		WHERE id = $1
	`
	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}
