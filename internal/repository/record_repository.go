package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/merchant-review-api/internal/models"
)

const defaultRowLimit = 1000

// ErrIdentityNotUnique is returned when an update keyed by the identity
// column would touch more than one row. The statement is rolled back.
var ErrIdentityNotUnique = errors.New("identity value matches more than one row")

type queryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// RecordRepository reads and updates rows of reviewable tables.
type RecordRepository struct {
	db       *sqlx.DB
	observer queryObserver
}

// NewRecordRepository constructs the repository. observer may be nil.
func NewRecordRepository(db *sqlx.DB, observer queryObserver) *RecordRepository {
	return &RecordRepository{db: db, observer: observer}
}

// Query reads up to filter.Limit rows, optionally restricted to statuses.
// Column order follows the table declaration.
func (r *RecordRepository) Query(ctx context.Context, table models.ReviewTable, filter models.RecordFilter) ([]models.Row, error) {
	name, err := QuoteQualifiedName(table.Name)
	if err != nil {
		return nil, err
	}
	builder := strings.Builder{}
	args := make([]interface{}, 0, len(filter.Statuses))
	builder.WriteString("SELECT * FROM ")
	builder.WriteString(name)

	if len(filter.Statuses) > 0 {
		statusCol := pq.QuoteIdentifier(table.Columns.Status)
		conditions := make([]string, 0, 2)
		placeholders := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			if status == models.ReviewStatusUntouched {
				conditions = append(conditions, fmt.Sprintf("%s IS NULL OR %s = ''", statusCol, statusCol))
				continue
			}
			args = append(args, string(status))
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		if len(placeholders) > 0 {
			conditions = append(conditions, fmt.Sprintf("%s IN (%s)", statusCol, strings.Join(placeholders, ",")))
		}
		builder.WriteString(" WHERE (")
		builder.WriteString(strings.Join(conditions, ") OR ("))
		builder.WriteString(")")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = table.RowLimit
	}
	if limit <= 0 {
		limit = defaultRowLimit
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d", limit))

	start := time.Now()
	defer r.observe("records.query", start)

	rows, err := r.db.QueryxContext(ctx, builder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table.Name, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table.Name, err)
	}
	result := make([]models.Row, 0)
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", table.Name, err)
		}
		for i, v := range values {
			switch val := v.(type) {
			case []byte:
				values[i] = string(val)
			case time.Time:
				values[i] = models.Stringify(val)
			}
		}
		result = append(result, models.NewRow(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table.Name, err)
	}
	return result, nil
}

// Describe lists the table's columns and declared types in declaration order.
func (r *RecordRepository) Describe(ctx context.Context, table models.ReviewTable) ([]models.ColumnInfo, error) {
	parts, err := splitQualifiedName(table.Name)
	if err != nil {
		return nil, err
	}
	schema := "public"
	if len(parts) >= 2 {
		schema = parts[len(parts)-2]
	}
	args := []interface{}{schema, parts[len(parts)-1]}
	query := `SELECT column_name, data_type FROM information_schema.columns
	WHERE table_schema = $1 AND table_name = $2`
	if len(parts) == 3 {
		args = append(args, parts[0])
		query += " AND table_catalog = $3"
	}
	query += " ORDER BY ordinal_position"

	start := time.Now()
	defer r.observe("records.describe", start)

	var columns []models.ColumnInfo
	if err := r.db.SelectContext(ctx, &columns, query, args...); err != nil {
		return nil, fmt.Errorf("describe %s: %w", table.Name, err)
	}
	return columns, nil
}

// ExecuteUpdate writes fields to the single row whose identityColumn equals
// identityValue. It returns sql.ErrNoRows when nothing matched and
// ErrIdentityNotUnique when more than one row would change.
func (r *RecordRepository) ExecuteUpdate(ctx context.Context, table models.ReviewTable, fields []models.FieldValue, identityColumn, identityValue string) error {
	if len(fields) == 0 {
		return fmt.Errorf("update %s: no fields", table.Name)
	}
	name, err := QuoteQualifiedName(table.Name)
	if err != nil {
		return err
	}
	setParts := make([]string, len(fields))
	args := make([]interface{}, 0, len(fields)+1)
	for i, field := range fields {
		args = append(args, field.Value)
		setParts[i] = fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(field.Column), len(args))
	}
	args = append(args, identityValue)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		name,
		strings.Join(setParts, ", "),
		pq.QuoteIdentifier(identityColumn),
		len(args),
	)

	start := time.Now()
	defer r.observe("records.update", start)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update %s: %w", table.Name, err)
	}
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update %s: %w", table.Name, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("check %s update rows: %w", table.Name, err)
	}
	switch {
	case affected == 0:
		_ = tx.Rollback()
		return sql.ErrNoRows
	case affected > 1:
		_ = tx.Rollback()
		return fmt.Errorf("update %s where %s = %s: %w", table.Name, identityColumn, identityValue, ErrIdentityNotUnique)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update %s: %w", table.Name, err)
	}
	return nil
}

func (r *RecordRepository) observe(label string, start time.Time) {
	if r.observer != nil {
		r.observer.ObserveDBQuery(label, time.Since(start))
	}
}

// QuoteQualifiedName quotes each dot separated segment of a table name.
func QuoteQualifiedName(name string) (string, error) {
	parts, err := splitQualifiedName(name)
	if err != nil {
		return "", err
	}
	quoted := make([]string, len(parts))
	for i, part := range parts {
		quoted[i] = pq.QuoteIdentifier(part)
	}
	return strings.Join(quoted, "."), nil
}

func splitQualifiedName(name string) ([]string, error) {
	raw := strings.Split(strings.TrimSpace(name), ".")
	if len(raw) == 0 || len(raw) > 3 {
		return nil, fmt.Errorf("invalid table name %q", name)
	}
	parts := make([]string, len(raw))
	for i, part := range raw {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("invalid table name %q", name)
		}
		parts[i] = part
	}
	return parts, nil
}
