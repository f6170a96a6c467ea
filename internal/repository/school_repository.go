package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"impact-service/internal/models"
	"impact-service/shared/utils"

	"github.com/jmoiron/sqlx"
)

const schoolColumns = `
	id, name, district, sub_county, parish, village, latitude, longitude,
	current_enrollment, created_at, updated_at`

// createAttempts bounds the retries when two writers race for the same code.
const createAttempts = 3

type SchoolRepository struct {
	db *sqlx.DB
}

func NewSchoolRepository(db *sqlx.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

// Create assigns the next SCH code and inserts the school in one
// transaction.
func (r *SchoolRepository) Create(ctx context.Context, school *models.School) error {
	var lastErr error
	for attempt := 1; attempt <= createAttempts; attempt++ {
		err := r.createOnce(ctx, school)
		if err == nil {
			slog.Info("school inserted", "school_id", school.ID, "attempt", attempt)
			return nil
		}
		if !isUniqueViolation(err) {
			return err
		}
		lastErr = err

		// a unique failure is either the name index or a code race
		if existing, findErr := r.FindByName(ctx, school.Name, school.District); findErr == nil && existing != nil {
			return fmt.Errorf("%w: school %s already exists as %s", models.ErrDuplicateRecord, school.Name, existing.ID)
		}
		slog.Warn("school code collision, retrying", "school_id", school.ID, "attempt", attempt)
	}
	return fmt.Errorf("%w: could not allocate a school code: %v", models.ErrDuplicateRecord, lastErr)
}

func (r *SchoolRepository) createOnce(ctx context.Context, school *models.School) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var next int
	err = tx.GetContext(ctx, &next,
		`SELECT COALESCE(MAX(CAST(SUBSTR(id, 5) AS INTEGER)), 0) + 1 FROM school WHERE id LIKE 'SCH-%'`)
	if err != nil {
		return fmt.Errorf("failed to allocate school code: %w", err)
	}
	school.ID = models.SchoolCode(next)

	query := `
		INSERT INTO school (` + schoolColumns + `
		) VALUES (
			:id, :name, :district, :sub_county, :parish, :village, :latitude, :longitude,
			:current_enrollment, :created_at, :updated_at
		)`
	if _, err := tx.NamedExecContext(ctx, query, school); err != nil {
		return err
	}
	return tx.Commit()
}

// GetByID looks a school up by its code, ignoring case.
func (r *SchoolRepository) GetByID(ctx context.Context, id string) (*models.School, error) {
	var school models.School
	query := `SELECT ` + schoolColumns + ` FROM school WHERE UPPER(id) = UPPER(?)`

	if err := r.db.GetContext(ctx, &school, r.db.Rebind(query), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", models.ErrSchoolNotFound, id)
		}
		return nil, fmt.Errorf("failed to get school %s: %w", id, err)
	}
	return &school, nil
}

func (r *SchoolRepository) FindByName(ctx context.Context, name, district string) (*models.School, error) {
	var school models.School
	query := `SELECT ` + schoolColumns + ` FROM school WHERE LOWER(name) = LOWER(?) AND district = ?`

	if err := r.db.GetContext(ctx, &school, r.db.Rebind(query), name, district); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s in %s", models.ErrSchoolNotFound, name, district)
		}
		return nil, fmt.Errorf("failed to find school %s: %w", name, err)
	}
	return &school, nil
}

func (r *SchoolRepository) List(ctx context.Context, district string) ([]models.School, error) {
	qb := utils.QueryBuilder{
		TemplateQuery: `SELECT ` + schoolColumns + ` FROM school`,
		Conditions:    []utils.Condition{{Field: "district", Operator: "=", Value: district}},
		OrderBy:       []string{"id"},
	}
	return r.selectSchools(ctx, qb)
}

func (r *SchoolRepository) ListAll(ctx context.Context) ([]models.School, error) {
	qb := utils.QueryBuilder{
		TemplateQuery: `SELECT ` + schoolColumns + ` FROM school`,
		OrderBy:       []string{"id"},
	}
	return r.selectSchools(ctx, qb)
}

func (r *SchoolRepository) selectSchools(ctx context.Context, qb utils.QueryBuilder) ([]models.School, error) {
	query, args, err := qb.BuildQueryDynamicFilter()
	if err != nil {
		return nil, fmt.Errorf("failed to build school query: %w", err)
	}
	schools := []models.School{}
	if err := r.db.SelectContext(ctx, &schools, r.db.Rebind(query), args...); err != nil {
		slog.Error("Failed to list schools", "error", err)
		return nil, fmt.Errorf("failed to list schools: %w", err)
	}
	return schools, nil
}

func (r *SchoolRepository) UpdateEnrollment(ctx context.Context, id string, enrollment int, updatedAt int64) error {
	err := utils.ExecWithCheck(ctx, r.db,
		`UPDATE school SET current_enrollment = ?, updated_at = ? WHERE UPPER(id) = UPPER(?)`,
		utils.ExecUpdate, enrollment, updatedAt, id)
	if errors.Is(err, utils.ErrNoRowsAffected) {
		return fmt.Errorf("%w: %s", models.ErrSchoolNotFound, id)
	}
	return err
}
