package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"impact-service/internal/models"
	"impact-service/shared/utils"

	"github.com/jmoiron/sqlx"
)

const recordColumns = `
	id, module, activity_date, district, school_id, school_name, program_type,
	follow_up_date, status, payload, created_by, reviewed_by, review_note,
	created_at, updated_at`

type RecordRepository struct {
	db *sqlx.DB
}

func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) Create(ctx context.Context, rec *models.RawRecord) error {
	query := `
		INSERT INTO raw_record (` + recordColumns + `
		) VALUES (
			:id, :module, :activity_date, :district, :school_id, :school_name, :program_type,
			:follow_up_date, :status, :payload, :created_by, :reviewed_by, :review_note,
			:created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, rec); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s %s %q", models.ErrDuplicateRecord, rec.Module, rec.ActivityDate, rec.SchoolName)
		}
		slog.Error("Failed to create record", "record_id", rec.ID, "error", err)
		return fmt.Errorf("failed to create record: %w", err)
	}
	return nil
}

func (r *RecordRepository) Update(ctx context.Context, rec *models.RawRecord) error {
	query := `
		UPDATE raw_record SET
			module = :module,
			activity_date = :activity_date,
			district = :district,
			school_id = :school_id,
			school_name = :school_name,
			program_type = :program_type,
			follow_up_date = :follow_up_date,
			status = :status,
			payload = :payload,
			reviewed_by = :reviewed_by,
			review_note = :review_note,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, rec)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s %s %q", models.ErrDuplicateRecord, rec.Module, rec.ActivityDate, rec.SchoolName)
		}
		slog.Error("Failed to update record", "record_id", rec.ID, "error", err)
		return fmt.Errorf("failed to update record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", models.ErrRecordNotFound, rec.ID)
	}
	return nil
}

func (r *RecordRepository) GetByID(ctx context.Context, id string) (*models.RawRecord, error) {
	var rec models.RawRecord
	query := `SELECT ` + recordColumns + ` FROM raw_record WHERE id = ?`

	if err := r.db.GetContext(ctx, &rec, r.db.Rebind(query), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", models.ErrRecordNotFound, id)
		}
		return nil, fmt.Errorf("failed to get record %s: %w", id, err)
	}
	return &rec, nil
}

// FindDuplicate returns the record sharing module, date and school name
// (case-insensitive) with the candidate, ignoring excludeID. It returns nil
// when there is none.
func (r *RecordRepository) FindDuplicate(ctx context.Context, module models.Module, date models.Date, schoolName, excludeID string) (*models.RawRecord, error) {
	var rec models.RawRecord
	query := `
		SELECT ` + recordColumns + `
		FROM raw_record
		WHERE module = ? AND activity_date = ? AND LOWER(school_name) = LOWER(?) AND id <> ?
		LIMIT 1`

	err := r.db.GetContext(ctx, &rec, r.db.Rebind(query), module, date.String(), schoolName, excludeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to check duplicate record: %w", err)
	}
	return &rec, nil
}

// List returns one page of records matching filter and the total match count.
func (r *RecordRepository) List(ctx context.Context, filter models.RecordFilter) ([]models.RawRecord, int, error) {
	conditions := recordConditions(filter)

	countQB := utils.QueryBuilder{
		TemplateQuery: `SELECT COUNT(*) FROM raw_record`,
		Conditions:    conditions,
	}
	countQuery, countArgs, err := countQB.BuildQueryDynamicFilter()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, fmt.Errorf("failed to count records: %w", err)
	}

	qb := utils.QueryBuilder{
		TemplateQuery: `SELECT ` + recordColumns + ` FROM raw_record`,
		Conditions:    conditions,
		OrderBy:       []string{"activity_date DESC", "id"},
		Limit:         filter.Limit,
		Offset:        filter.Offset,
	}
	query, args, err := qb.BuildQueryDynamicFilter()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list query: %w", err)
	}

	records := []models.RawRecord{}
	if err := r.db.SelectContext(ctx, &records, r.db.Rebind(query), args...); err != nil {
		slog.Error("Failed to list records", "error", err)
		return nil, 0, fmt.Errorf("failed to list records: %w", err)
	}
	return records, total, nil
}

func recordConditions(filter models.RecordFilter) []utils.Condition {
	var conditions []utils.Condition
	if filter.Module != "" {
		conditions = append(conditions, utils.Condition{Field: "module", Operator: "=", Value: string(filter.Module)})
	}
	if filter.Status != "" {
		conditions = append(conditions, utils.Condition{Field: "status", Operator: "=", Value: string(filter.Status)})
	}
	if filter.District != "" {
		conditions = append(conditions, utils.Condition{Field: "district", Operator: "=", Value: filter.District})
	}
	if filter.SchoolID != "" {
		conditions = append(conditions, utils.Condition{Field: "school_id", Operator: "=", Value: filter.SchoolID})
	}
	if filter.CreatedBy != "" {
		conditions = append(conditions, utils.Condition{Field: "created_by", Operator: "=", Value: filter.CreatedBy})
	}
	if filter.From != nil {
		conditions = append(conditions, utils.Condition{Field: "activity_date", Operator: ">=", Value: filter.From.String()})
	}
	if filter.To != nil {
		conditions = append(conditions, utils.Condition{Field: "activity_date", Operator: "<=", Value: filter.To.String()})
	}
	return conditions
}

// ListForAggregation reads every record in the date range whose status is
// one of filter.Statuses. Rows are ordered by id so aggregation input is
// stable.
func (r *RecordRepository) ListForAggregation(ctx context.Context, filter models.AggregationFilter) ([]models.RawRecord, error) {
	if len(filter.Statuses) == 0 {
		return []models.RawRecord{}, nil
	}
	statuses := make([]string, len(filter.Statuses))
	for i, s := range filter.Statuses {
		statuses[i] = string(s)
	}

	query, args, err := sqlx.In(`
		SELECT `+recordColumns+`
		FROM raw_record
		WHERE status IN (?) AND activity_date >= ? AND activity_date <= ?
		ORDER BY id`, statuses, filter.Range.From.String(), filter.Range.To.String())
	if err != nil {
		return nil, fmt.Errorf("failed to build aggregation query: %w", err)
	}

	start := time.Now()
	records := []models.RawRecord{}
	if err := r.db.SelectContext(ctx, &records, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	slog.Debug("aggregation read", "records", len(records), "duration", time.Since(start))
	return records, nil
}

// Health checks the connection with the given deadline.
func (r *RecordRepository) Health(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
