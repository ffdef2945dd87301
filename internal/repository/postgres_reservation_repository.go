package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/table-reservation/internal/domain"
)

// querier is the subset of pgx shared by the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const reservationColumns = `id, owner_id, table_id, reservation_date, start_minute, end_minute,
               party_size, status, created_at, updated_at`

type reservationRepository struct {
	pool *pgxpool.Pool
	db   querier
	// inScope is set on the transaction-bound copy handed to WithExclusion.
	inScope bool
}

// NewReservationRepository returns a Postgres-backed implementation.
func NewReservationRepository(pool *pgxpool.Pool) ReservationRepository {
	return &reservationRepository{pool: pool, db: pool}
}

func (r *reservationRepository) Create(ctx context.Context, reservation *domain.Reservation) error {
	const query = `
        INSERT INTO reservations (id, owner_id, table_id, reservation_date, start_minute, end_minute, party_size, status, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,COALESCE($9, NOW()),COALESCE($9, NOW()))
        RETURNING created_at, updated_at`
	var createdAt *time.Time
	if !reservation.CreatedAt.IsZero() {
		createdAt = &reservation.CreatedAt
	}
	return r.db.QueryRow(ctx, query,
		reservation.ID,
		reservation.OwnerID,
		reservation.TableID,
		reservation.Date.Time(),
		int(reservation.StartTime),
		int(reservation.EndTime),
		reservation.PartySize,
		reservation.Status,
		createdAt,
	).Scan(&reservation.CreatedAt, &reservation.UpdatedAt)
}

// Update rewrites slot and party size. owner_id, status and created_at are
// never touched.
func (r *reservationRepository) Update(ctx context.Context, reservation *domain.Reservation) error {
	const query = `
        UPDATE reservations SET table_id=$1, reservation_date=$2, start_minute=$3, end_minute=$4,
            party_size=$5, updated_at=NOW()
        WHERE id=$6
        RETURNING status, updated_at`
	err := r.db.QueryRow(ctx, query,
		reservation.TableID,
		reservation.Date.Time(),
		int(reservation.StartTime),
		int(reservation.EndTime),
		reservation.PartySize,
		reservation.ID,
	).Scan(&reservation.Status, &reservation.UpdatedAt)
	return translate(err)
}

func (r *reservationRepository) GetByID(ctx context.Context, id string) (*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id=$1`
	if r.inScope {
		// Pin the row until the scope's transaction ends.
		query += ` FOR UPDATE`
	}
	return r.fetchSingle(ctx, query, id)
}

func (r *reservationRepository) Cancel(ctx context.Context, id string) (*domain.Reservation, bool, error) {
	query := `
        UPDATE reservations SET status=$2, updated_at=NOW()
        WHERE id=$1 AND status=$3
        RETURNING ` + reservationColumns
	res, err := r.fetchSingle(ctx, query, id, domain.ReservationStatusCancelled, domain.ReservationStatusActive)
	if err == nil {
		return res, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	// Either already cancelled or gone.
	res, err = r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return res, false, nil
}

func (r *reservationRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM reservations WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *reservationRepository) ListActiveByTableAndDate(ctx context.Context, key domain.SlotKey) ([]domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
             FROM reservations
             WHERE table_id=$1 AND reservation_date=$2 AND status=$3
             ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, key.TableID, key.Date.Time(), domain.ReservationStatusActive)
}

func (r *reservationRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
             FROM reservations WHERE owner_id=$1
             ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, ownerID)
}

func (r *reservationRepository) ListAll(ctx context.Context) ([]domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
             FROM reservations
             ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query)
}

// WithExclusion runs fn in a transaction that first takes a transaction-scoped
// advisory lock derived from key. Concurrent scopes for the same table and
// date queue on that lock; other keys are unaffected.
func (r *reservationRepository) WithExclusion(ctx context.Context, key domain.SlotKey, fn func(ctx context.Context, repo ReservationRepository) error) error {
	if r.inScope {
		return fmt.Errorf("nested exclusion scope for %s is not supported", key)
	}
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key.String()); err != nil {
			return fmt.Errorf("acquire exclusion %s: %w", key, err)
		}
		scoped := &reservationRepository{pool: r.pool, db: tx, inScope: true}
		return fn(ctx, scoped)
	})
}

func (r *reservationRepository) Ping(ctx context.Context) error {
	if r.pool == nil {
		return errors.New("postgres pool not configured")
	}
	return r.pool.Ping(ctx)
}

func (r *reservationRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Reservation, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result, err := scanReservations(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return &result[0], nil
}

func (r *reservationRepository) list(ctx context.Context, query string, args ...any) ([]domain.Reservation, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

func scanReservations(rows pgx.Rows) ([]domain.Reservation, error) {
	result := []domain.Reservation{}
	for rows.Next() {
		var (
			res        domain.Reservation
			date       time.Time
			start, end int
			status     string
		)
		if err := rows.Scan(
			&res.ID,
			&res.OwnerID,
			&res.TableID,
			&date,
			&start,
			&end,
			&res.PartySize,
			&status,
			&res.CreatedAt,
			&res.UpdatedAt,
		); err != nil {
			return nil, err
		}
		res.Date = domain.DateOf(date)
		res.StartTime = domain.TimeOfDay(start)
		res.EndTime = domain.TimeOfDay(end)
		res.Status = domain.ReservationStatus(status)
		result = append(result, res)
	}
	return result, rows.Err()
}

func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
