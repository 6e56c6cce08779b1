package frontdesk

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for reservations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const reservationColumns = `id, organization_id, property_id, guest_name, guest_email, room_number, check_in, check_out, status, created_by, created_at, updated_at`

func scanReservation(row pgx.Row) (Reservation, error) {
	var res Reservation
	err := row.Scan(&res.ID, &res.OrganizationID, &res.PropertyID, &res.GuestName,
		&res.GuestEmail, &res.RoomNumber, &res.CheckIn, &res.CheckOut, &res.Status,
		&res.CreatedBy, &res.CreatedAt, &res.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reservation{}, ErrNotFound
	}
	if err != nil {
		return Reservation{}, err
	}
	return res, nil
}

// Create inserts a reservation.
func (r *Repository) Create(ctx context.Context, res Reservation) (Reservation, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO reservations (organization_id, property_id, guest_name, guest_email, room_number, check_in, check_out, status, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+reservationColumns,
		res.OrganizationID, res.PropertyID, res.GuestName, res.GuestEmail,
		res.RoomNumber, res.CheckIn, res.CheckOut, res.Status, res.CreatedBy)
	return scanReservation(row)
}

// Get fetches a reservation by id.
func (r *Repository) Get(ctx context.Context, id int64) (Reservation, error) {
	return scanReservation(r.pool.QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id))
}

// ListByProperty returns reservations for one property ordered by arrival.
func (r *Repository) ListByProperty(ctx context.Context, propertyID int64, limit, offset int) ([]Reservation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE property_id = $1 ORDER BY check_in DESC LIMIT $2 OFFSET $3`,
		propertyID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// UpdateStatus applies a status change.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status ReservationStatus) (Reservation, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE reservations SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING `+reservationColumns,
		id, status)
	return scanReservation(row)
}
