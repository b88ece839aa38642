package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"rumbo/internal/domain"
	"rumbo/internal/repository"
)

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

// NewRideRepositoryWithTx creates a ride repository using a transaction.
func NewRideRepositoryWithTx(tx *sql.Tx) *RideRepository {
	return &RideRepository{q: tx}
}

const rideColumns = `id, rider_id, driver_id, origin_lat, origin_lng, origin_address, destination_lat, destination_lng, destination_address, offered_price, accepted_price, status, created_at, accepted_at, picked_up_at, completed_at, cancelled_at`

// activeStatuses matches every non-terminal ride status. A partial unique
// index on rides(rider_id) filtered by these statuses backs the
// one-active-ride-per-rider invariant at the storage layer.
var activeStatuses = []string{
	string(domain.RideStatusSearching),
	string(domain.RideStatusAccepted),
	string(domain.RideStatusPickedUp),
	string(domain.RideStatusEnRoute),
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*domain.Ride, error) {
	var ride domain.Ride
	var driverID, originAddr, destAddr sql.NullString
	var acceptedPrice sql.NullFloat64
	var acceptedAt, pickedUpAt, completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&ride.ID,
		&ride.RiderID,
		&driverID,
		&ride.Origin.Lat,
		&ride.Origin.Lng,
		&originAddr,
		&ride.Destination.Lat,
		&ride.Destination.Lng,
		&destAddr,
		&ride.OfferedPrice,
		&acceptedPrice,
		&ride.Status,
		&ride.CreatedAt,
		&acceptedAt,
		&pickedUpAt,
		&completedAt,
		&cancelledAt,
	)
	if err != nil {
		return nil, err
	}

	ride.DriverID = driverID.String
	ride.Origin.Address = originAddr.String
	ride.Destination.Address = destAddr.String
	ride.AcceptedPrice = acceptedPrice.Float64
	ride.AcceptedAt = acceptedAt.Time
	ride.PickedUpAt = pickedUpAt.Time
	ride.CompletedAt = completedAt.Time
	ride.CancelledAt = cancelledAt.Time

	return &ride, nil
}

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (id, rider_id, origin_lat, origin_lng, origin_address, destination_lat, destination_lng, destination_address, offered_price, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	var originAddr sql.NullString
	if ride.Origin.Address != "" {
		originAddr = sql.NullString{String: ride.Origin.Address, Valid: true}
	}

	var destAddr sql.NullString
	if ride.Destination.Address != "" {
		destAddr = sql.NullString{String: ride.Destination.Address, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, query,
		ride.ID,
		ride.RiderID,
		ride.Origin.Lat,
		ride.Origin.Lng,
		originAddr,
		ride.Destination.Lat,
		ride.Destination.Lng,
		destAddr,
		ride.OfferedPrice,
		ride.Status,
		ride.CreatedAt,
	)

	return err
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return ride, nil
}

// GetActiveByRider retrieves the rider's non-terminal ride, if any.
func (r *RideRepository) GetActiveByRider(ctx context.Context, riderID string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE rider_id = $1 AND status = ANY($2) ORDER BY created_at DESC LIMIT 1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, riderID, pq.Array(activeStatuses)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return ride, nil
}

// GetActiveByDriver retrieves the non-terminal ride assigned to the driver, if any.
func (r *RideRepository) GetActiveByDriver(ctx context.Context, driverID string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE driver_id = $1 AND status = ANY($2) ORDER BY created_at DESC LIMIT 1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, driverID, pq.Array(activeStatuses)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return ride, nil
}

// ListSearching retrieves rides that are searching and unassigned.
func (r *RideRepository) ListSearching(ctx context.Context) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE status = $1 AND driver_id IS NULL ORDER BY created_at ASC`
	return r.list(ctx, query, domain.RideStatusSearching)
}

// ListByRider retrieves the rider's rides, newest first. Terminal rides
// are retained, so this is the rider's full history.
func (r *RideRepository) ListByRider(ctx context.Context, riderID string) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE rider_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, riderID)
}

// ListByDriver retrieves the rides assigned to the driver, newest first.
func (r *RideRepository) ListByDriver(ctx context.Context, driverID string) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE driver_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, driverID)
}

func (r *RideRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Ride, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

// Accept atomically assigns the driver iff the ride is still searching
// and unassigned. This conditional write is the only thing preventing
// two concurrent accepts from both winning; a read-then-write here would
// reintroduce the lost-update race.
func (r *RideRepository) Accept(ctx context.Context, rideID, driverID string, acceptedPrice float64, at time.Time) (*domain.Ride, error) {
	query := `
		UPDATE rides
		SET driver_id = $2,
		    status = $3,
		    accepted_price = CASE WHEN $4 > 0 THEN $4 ELSE offered_price END,
		    accepted_at = $5
		WHERE id = $1 AND status = $6 AND driver_id IS NULL
	`

	result, err := r.q.ExecContext(ctx, query,
		rideID,
		driverID,
		domain.RideStatusAccepted,
		acceptedPrice,
		at,
		domain.RideStatusSearching,
	)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		// Distinguish a lost race from an unknown ride.
		if _, err := r.GetByID(ctx, rideID); err != nil {
			return nil, err
		}
		return nil, repository.ErrConflict
	}

	return r.GetByID(ctx, rideID)
}

// UpdateStatusFrom moves the ride to target iff its current status is one
// of from, stamping the matching timestamp column.
func (r *RideRepository) UpdateStatusFrom(ctx context.Context, rideID string, from []domain.RideStatus, target domain.RideStatus, at time.Time) (*domain.Ride, error) {
	set := "status = $1"
	args := []any{string(target)}

	if col := timestampColumn(target); col != "" {
		set += ", " + col + " = $2"
		args = append(args, at)
	}

	fromStrings := make([]string, len(from))
	for i, s := range from {
		fromStrings[i] = string(s)
	}

	args = append(args, rideID, pq.Array(fromStrings))
	query := fmt.Sprintf(
		"UPDATE rides SET %s WHERE id = $%d AND status = ANY($%d)",
		set, len(args)-1, len(args),
	)

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		if _, err := r.GetByID(ctx, rideID); err != nil {
			return nil, err
		}
		return nil, repository.ErrConflict
	}

	return r.GetByID(ctx, rideID)
}

// timestampColumn maps a target status to the column stamped when the
// ride reaches it. en_route carries no timestamp of its own.
func timestampColumn(target domain.RideStatus) string {
	switch target {
	case domain.RideStatusAccepted:
		return "accepted_at"
	case domain.RideStatusPickedUp:
		return "picked_up_at"
	case domain.RideStatusCompleted:
		return "completed_at"
	case domain.RideStatusCancelled:
		return "cancelled_at"
	default:
		return ""
	}
}
