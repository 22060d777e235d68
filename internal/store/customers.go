package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dbreno/mugiwaradb/internal/models"
)

// CreateCustomer inserts a new customer. A duplicate email surfaces as
// ErrEmailTaken via the unique constraint, never as a generic failure.
func (s *Store) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	query := `
		INSERT INTO customers (
			name, email, password_hash,
			street, number, complement, city, state, postal_code, phone,
			flamengo_fan, one_piece_fan, sousa_native
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at`

	err := s.db.QueryRowxContext(ctx, query,
		customer.Name, customer.Email, customer.PasswordHash,
		customer.Street, customer.Number, customer.Complement,
		customer.City, customer.State, customer.PostalCode, customer.Phone,
		customer.FlamengoFan, customer.OnePieceFan, customer.SousaNative).
		Scan(&customer.ID, &customer.CreatedAt)
	if err != nil {
		if mapped := mapPQError(err); errors.Is(mapped, ErrEmailTaken) {
			return mapped
		}
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

// GetCustomerByID retrieves a customer by ID
func (s *Store) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.GetContext(ctx, &customer, "SELECT * FROM customers WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetCustomerByEmail retrieves a customer by email
func (s *Store) GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.GetContext(ctx, &customer, "SELECT * FROM customers WHERE email = $1", email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetStaffByEmail retrieves a staff account by email
func (s *Store) GetStaffByEmail(ctx context.Context, email string) (*models.Staff, error) {
	var staff models.Staff
	err := s.db.GetContext(ctx, &staff, "SELECT * FROM staff WHERE email = $1", email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &staff, nil
}
