package resource

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, res *Resource) error
	// GetByID returns active and deactivated resources alike.
	GetByID(ctx context.Context, id string) (*Resource, error)
	// List returns active resources in insertion order.
	List(ctx context.Context, filter Filter) ([]*Resource, int, error)
	Update(ctx context.Context, res *Resource) error
	Deactivate(ctx context.Context, id string) error
}

type pgxRepository struct {
	pool *pgxpool.Pool
	psql squirrel.StatementBuilderType
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{
		pool: pool,
		psql: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var resourceColumns = []string{
	"id", "type", "number", "description", "capacity", "is_active", "created_at", "updated_at",
}

func scanResource(row pgx.Row, extra ...any) (*Resource, error) {
	var res Resource
	dest := append([]any{
		&res.ID, &res.Type, &res.Number, &res.Description, &res.Capacity,
		&res.IsActive, &res.CreatedAt, &res.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *pgxRepository) Create(ctx context.Context, res *Resource) error {
	query, args, err := r.psql.Insert("public.resources").
		Columns("type", "number", "description", "capacity").
		Values(res.Type, res.Number, res.Description, res.Capacity).
		Suffix("RETURNING id, is_active, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create resource query failed: %w", err)
	}

	err = r.pool.QueryRow(ctx, query, args...).
		Scan(&res.ID, &res.IsActive, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("create resource failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Resource, error) {
	query, args, err := r.psql.Select(resourceColumns...).
		From("public.resources").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get resource query failed: %w", err)
	}

	res, err := scanResource(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get resource failed: %w", err)
	}
	return res, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Resource, int, error) {
	filter.normalize()

	query := r.psql.Select(append(resourceColumns, "count(*) OVER() AS total_count")...).
		From("public.resources").
		Where(squirrel.Eq{"is_active": true})

	if filter.Type != "" {
		query = query.Where(squirrel.Eq{"type": filter.Type})
	}

	sql, args, err := query.
		OrderBy("seq ASC").
		Limit(uint64(filter.PageSize)).
		Offset(uint64(filter.offset())).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list resources query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list resources failed: %w", err)
	}
	defer rows.Close()

	var result []*Resource
	var total int

	for rows.Next() {
		res, err := scanResource(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan resource failed: %w", err)
		}
		result = append(result, res)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate resources failed: %w", err)
	}

	return result, total, nil
}

func (r *pgxRepository) Update(ctx context.Context, res *Resource) error {
	query, args, err := r.psql.Update("public.resources").
		Set("description", res.Description).
		Set("capacity", res.Capacity).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": res.ID, "is_active": true}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update resource query failed: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&res.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update resource failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) Deactivate(ctx context.Context, id string) error {
	query, args, err := r.psql.Update("public.resources").
		Set("is_active", false).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id, "is_active": true}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build deactivate resource query failed: %w", err)
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deactivate resource failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
