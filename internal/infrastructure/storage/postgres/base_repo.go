package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"condo/internal/core/apperror"
	"condo/internal/core/id"
	"condo/internal/domain"
)

// PostgreSQL error codes the repositories translate.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type versioned interface {
	SetVersion(v int)
}

// BaseRepo provides CRUD for one table mapped by "db" tags.
// Embed it in concrete repositories; T is a pointer to the row struct.
type BaseRepo[T any] struct {
	txManager  *TxManager
	entityName string
	tableName  string
	selectCols []string
	newFn      func() T
}

// NewBaseRepo creates a base repository. Columns are taken from the db tags of T.
func NewBaseRepo[T any](txManager *TxManager, entityName, tableName string, newFn func() T) *BaseRepo[T] {
	return &BaseRepo[T]{
		txManager:  txManager,
		entityName: entityName,
		tableName:  tableName,
		selectCols: ExtractDBColumns[T](),
		newFn:      newFn,
	}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Querier returns the active transaction or the pool.
func (r *BaseRepo[T]) Querier(ctx context.Context) Querier {
	return r.txManager.GetQuerier(ctx)
}

// TxManager exposes the transaction manager to embedding repositories.
func (r *BaseRepo[T]) TxManager() *TxManager {
	return r.txManager
}

// Table returns the table name.
func (r *BaseRepo[T]) Table() string {
	return r.tableName
}

// Columns returns the mapped column list.
func (r *BaseRepo[T]) Columns() []string {
	return r.selectCols
}

// Create inserts a new entity using its "db" tags.
func (r *BaseRepo[T]) Create(ctx context.Context, entity T) error {
	data := r.columnsOf(entity, nil)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in %s", r.entityName)
	}

	sql, args, err := Builder().Insert(r.tableName).SetMap(data).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.Querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", r.tableName, err)
	}
	return nil
}

// Update writes every mapped column with optimistic locking on version and
// advances the entity's version on success.
func (r *BaseRepo[T]) Update(ctx context.Context, entity T) error {
	data := StructToMap(entity)
	entityID, ok := data["id"]
	if !ok {
		return fmt.Errorf("%s has no 'id' field with db tag", r.entityName)
	}
	version, ok := data["version"].(int)
	if !ok {
		return fmt.Errorf("%s has no 'version' field or it is not an int", r.entityName)
	}

	set := r.columnsOf(entity, map[string]bool{"id": true, "version": true, "created_at": true})
	sql, args, err := Builder().
		Update(r.tableName).
		SetMap(set).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": entityID}).
		Where(squirrel.Eq{"version": version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", r.tableName, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(r.entityName, entityID)
	}
	if v, ok := any(entity).(versioned); ok {
		v.SetVersion(version + 1)
	}
	return nil
}

// Select starts a SELECT of all mapped columns.
func (r *BaseRepo[T]) Select() squirrel.SelectBuilder {
	return Builder().Select(r.selectCols...).From(r.tableName)
}

// GetByID retrieves an entity by ID.
func (r *BaseRepo[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	return r.Get(ctx, r.Select().Where(squirrel.Eq{"id": entityID}).Limit(1), entityID)
}

// GetForUpdate retrieves an entity by ID and locks its row until the
// transaction ends.
func (r *BaseRepo[T]) GetForUpdate(ctx context.Context, entityID id.ID) (T, error) {
	return r.Get(ctx, r.Select().Where(squirrel.Eq{"id": entityID}).Suffix("FOR UPDATE"), entityID)
}

// Get runs q and scans one row. No row maps to NotFound for key.
func (r *BaseRepo[T]) Get(ctx context.Context, q squirrel.SelectBuilder, key any) (T, error) {
	entity := r.newFn()
	sql, args, err := q.ToSql()
	if err != nil {
		return entity, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Get(ctx, r.Querier(ctx), entity, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			var zero T
			return zero, apperror.NewNotFound(r.entityName, key)
		}
		return entity, fmt.Errorf("get %s: %w", r.tableName, err)
	}
	return entity, nil
}

// FindOne is Get that returns nil instead of NotFound.
func (r *BaseRepo[T]) FindOne(ctx context.Context, q squirrel.SelectBuilder) (T, bool, error) {
	var zero T
	entity, err := r.Get(ctx, q, nil)
	if apperror.IsNotFound(err) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	return entity, true, nil
}

// List runs q and scans all rows.
func (r *BaseRepo[T]) List(ctx context.Context, q squirrel.SelectBuilder) ([]T, error) {
	var items []T
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, r.Querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list %s: %w", r.tableName, err)
	}
	return items, nil
}

// Page runs q with the filter's ordering and pagination and counts the total.
// orderable whitelists the columns a client may sort by.
func (r *BaseRepo[T]) Page(ctx context.Context, q squirrel.SelectBuilder, filter domain.ListFilter, orderable map[string]bool) (domain.ListResult[T], error) {
	result := domain.ListResult[T]{Limit: filter.Limit, Offset: filter.Offset}

	countSQL, countArgs, err := Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := r.Querier(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count %s: %w", r.tableName, err)
	}

	orderBy, err := ParseOrderBy(filter.OrderBy, orderable)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy, "id")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	items, err := r.List(ctx, q)
	if err != nil {
		return result, err
	}
	result.Items = items
	return result, nil
}

// Exists reports whether q matches any row.
func (r *BaseRepo[T]) Exists(ctx context.Context, where squirrel.Sqlizer) (bool, error) {
	sql, args, err := Builder().
		Select("1").
		Prefix("SELECT EXISTS (").
		From(r.tableName).
		Where(where).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists: %w", err)
	}
	var exists bool
	if err := r.Querier(ctx).QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("exists %s: %w", r.tableName, err)
	}
	return exists, nil
}

func (r *BaseRepo[T]) columnsOf(entity T, skip map[string]bool) map[string]any {
	data := StructToMap(entity)
	out := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if skip[col] {
			continue
		}
		if val, ok := data[col]; ok {
			out[col] = val
		}
	}
	return out
}

// ParseOrderBy turns "-created_at" into "created_at DESC". Only whitelisted
// columns are accepted.
func ParseOrderBy(orderBy string, allowed map[string]bool) (string, error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		return "created_at DESC", nil
	}
	dir := "ASC"
	col := orderBy
	if strings.HasPrefix(col, "-") {
		dir = "DESC"
		col = col[1:]
	}
	if !allowed[col] {
		return "", apperror.NewFieldValidation("orderBy", fmt.Sprintf("cannot sort by %q", col))
	}
	return col + " " + dir, nil
}

// IsUniqueViolation reports whether err is a unique violation, optionally of
// a specific constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// IsForeignKeyViolation reports whether err is a foreign key violation.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}
