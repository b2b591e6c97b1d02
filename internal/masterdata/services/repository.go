package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldserve/fieldserve/internal/masterdata/shared"
	"github.com/fieldserve/fieldserve/internal/platform/db"
	appshared "github.com/fieldserve/fieldserve/internal/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]ServiceType, int, error)
	Get(ctx context.Context, id int64) (ServiceType, error)
	Create(ctx context.Context, st ServiceType) (ServiceType, error)
	Update(ctx context.Context, id int64, st ServiceType) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]ServiceType, int, error) {
	query := `SELECT id, name, description, created_at, updated_at FROM services WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		query += ` AND name ILIKE $` + strconv.Itoa(argCount)
		args = append(args, "%"+filters.Search+"%")
	}

	countQuery := `SELECT COUNT(*) FROM services WHERE 1=1`
	countArgs := []any{}
	if filters.Search != "" {
		countArgs = append(countArgs, "%"+filters.Search+"%")
		countQuery += ` AND name ILIKE $1`
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += " ORDER BY " + shared.SortOrder(filters.SortBy, filters.SortDir)

	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, filters.Offset())
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var types []ServiceType
	for rows.Next() {
		var st ServiceType
		if err := rows.Scan(&st.ID, &st.Name, &st.Description, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, 0, err
		}
		types = append(types, st)
	}
	return types, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (ServiceType, error) {
	query := `SELECT id, name, description, created_at, updated_at FROM services WHERE id = $1`
	var st ServiceType
	err := r.pool.QueryRow(ctx, query, id).Scan(&st.ID, &st.Name, &st.Description, &st.CreatedAt, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ServiceType{}, fmt.Errorf("service %d: %w", id, appshared.ErrNotFound)
	}
	return st, err
}

func (r *repository) Create(ctx context.Context, st ServiceType) (ServiceType, error) {
	query := `INSERT INTO services (name, description, created_at, updated_at) VALUES ($1, $2, $3, $4) RETURNING id`
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, query, st.Name, st.Description, now, now).Scan(&st.ID)
	if err != nil {
		return ServiceType{}, mapErr(err)
	}
	st.CreatedAt = now
	st.UpdatedAt = now
	return st, nil
}

func (r *repository) Update(ctx context.Context, id int64, st ServiceType) error {
	return db.WithRowLock(ctx, r.pool, db.TableServices, id, func(tx pgx.Tx) error {
		query := `UPDATE services SET name = $1, description = $2, updated_at = $3 WHERE id = $4`
		_, err := tx.Exec(ctx, query, st.Name, st.Description, time.Now().UTC(), id)
		return mapErr(err)
	})
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	return db.WithRowLock(ctx, r.pool, db.TableServices, id, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
		return mapErr(err)
	})
}

func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", appshared.ErrDuplicate, pgErr.ConstraintName)
		case "23503":
			return fmt.Errorf("%w: %s", appshared.ErrRuleViolation, pgErr.ConstraintName)
		}
	}
	return err
}
