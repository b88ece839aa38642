package postgres

import (
	"context"
	"database/sql"
	"errors"

	"rumbo/internal/domain"
	"rumbo/internal/repository"
)

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

// Create persists a new driver profile.
func (r *DriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	query := `
		INSERT INTO drivers (id, name, phone, vehicle_model, vehicle_plate, vehicle_color)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	var phone sql.NullString
	if driver.Phone != "" {
		phone = sql.NullString{String: driver.Phone, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, query,
		driver.ID,
		driver.Name,
		phone,
		driver.Vehicle.Model,
		driver.Vehicle.LicensePlate,
		driver.Vehicle.Color,
	)

	return err
}

// GetByID retrieves a driver profile by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	query := `
		SELECT id, name, phone, vehicle_model, vehicle_plate, vehicle_color
		FROM drivers WHERE id = $1
	`

	var driver domain.Driver
	var phone sql.NullString

	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&driver.ID,
		&driver.Name,
		&phone,
		&driver.Vehicle.Model,
		&driver.Vehicle.LicensePlate,
		&driver.Vehicle.Color,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	driver.Phone = phone.String
	return &driver, nil
}
