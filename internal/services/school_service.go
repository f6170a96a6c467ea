package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"impact-service/internal/models"
	"impact-service/shared/utils"
)

// SchoolStore persists the school directory. Create assigns the SCH code.
type SchoolStore interface {
	Create(ctx context.Context, school *models.School) error
	GetByID(ctx context.Context, id string) (*models.School, error)
	FindByName(ctx context.Context, name, district string) (*models.School, error)
	List(ctx context.Context, district string) ([]models.School, error)
	ListAll(ctx context.Context) ([]models.School, error)
	UpdateEnrollment(ctx context.Context, id string, enrollment int, updatedAt int64) error
}

type SchoolService struct {
	store     SchoolStore
	geo       *GeographyResolver
	publisher RecordEventPublisher
	now       func() time.Time
}

// NewSchoolService builds the directory service. publisher may be nil when
// no aggregate cache needs invalidating.
func NewSchoolService(store SchoolStore, geo *GeographyResolver, publisher RecordEventPublisher, now func() time.Time) *SchoolService {
	if now == nil {
		now = time.Now
	}
	return &SchoolService{store: store, geo: geo, publisher: publisher, now: now}
}

// Create adds a school to the directory. The district must be known to the
// geography table and is stored under its canonical name.
func (s *SchoolService) Create(ctx context.Context, req models.CreateSchoolRequest) (*models.SchoolView, error) {
	req = utils.TrimAllStringFields(req).(models.CreateSchoolRequest)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	district, ok := s.geo.CanonicalDistrict(req.District)
	if !ok {
		verr := models.NewValidationError()
		verr.Add("district", fmt.Sprintf("unknown district %q", req.District))
		return nil, verr
	}
	name := strings.Join(strings.Fields(req.Name), " ")

	existing, err := s.store.FindByName(ctx, name, district)
	if err != nil && !errors.Is(err, models.ErrSchoolNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: school %s already exists as %s", models.ErrDuplicateRecord, name, existing.ID)
	}

	ts := s.now().Unix()
	school := &models.School{
		Name:              name,
		District:          district,
		SubCounty:         req.SubCounty,
		Parish:            req.Parish,
		Village:           req.Village,
		Latitude:          req.Latitude,
		Longitude:         req.Longitude,
		CurrentEnrollment: req.CurrentEnrollment,
		CreatedAt:         ts,
		UpdatedAt:         ts,
	}
	if err := s.store.Create(ctx, school); err != nil {
		return nil, err
	}

	slog.Info("school created", "school_id", school.ID, "district", district)
	s.publish(ctx, school.ID, district)
	view := s.View(*school)
	return &view, nil
}

// ImportResult reports a batch import outcome per input row.
type ImportResult struct {
	Created []models.SchoolView `json:"created"`
	Skipped map[int]string      `json:"skipped"`
}

// ImportBatch creates each school in order. Rows that fail validation or
// already exist are skipped; a store failure aborts the import.
func (s *SchoolService) ImportBatch(ctx context.Context, reqs []models.CreateSchoolRequest) (*ImportResult, error) {
	result := &ImportResult{Skipped: map[int]string{}}
	for i, req := range reqs {
		view, err := s.Create(ctx, req)
		switch {
		case err == nil:
			result.Created = append(result.Created, *view)
		case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrDuplicateRecord):
			result.Skipped[i] = err.Error()
		default:
			return result, fmt.Errorf("import stopped at row %d: %w", i, err)
		}
	}
	return result, nil
}

func (s *SchoolService) GetByID(ctx context.Context, id string) (*models.SchoolView, error) {
	school, err := s.store.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	view := s.View(*school)
	return &view, nil
}

// List returns the directory, optionally limited to one district.
func (s *SchoolService) List(ctx context.Context, district string) ([]models.SchoolView, error) {
	district = strings.TrimSpace(district)
	var (
		schools []models.School
		err     error
	)
	if district == "" {
		schools, err = s.store.ListAll(ctx)
	} else {
		canonical, ok := s.geo.CanonicalDistrict(district)
		if !ok {
			return []models.SchoolView{}, nil
		}
		schools, err = s.store.List(ctx, canonical)
	}
	if err != nil {
		return nil, err
	}

	views := make([]models.SchoolView, 0, len(schools))
	for _, sc := range schools {
		views = append(views, s.View(sc))
	}
	return views, nil
}

// UpdateEnrollment records a new directory enrollment figure. Aggregates
// prefer enrollment reported on records and fall back to this value.
func (s *SchoolService) UpdateEnrollment(ctx context.Context, id string, enrollment int) (*models.SchoolView, error) {
	if enrollment < 0 {
		verr := models.NewValidationError()
		verr.Add("currentEnrollment", "must be at least 0")
		return nil, verr
	}
	id = strings.ToUpper(strings.TrimSpace(id))
	if err := s.store.UpdateEnrollment(ctx, id, enrollment, s.now().Unix()); err != nil {
		return nil, err
	}
	view, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, view.ID, view.District)
	return view, nil
}

// publish announces a directory change so cached aggregates covering the
// district (navigator entries, enrollment reach) are dropped.
func (s *SchoolService) publish(ctx context.Context, schoolID, district string) {
	if s.publisher == nil {
		return
	}
	event := models.RecordChangedEvent{
		Kind:       models.SchoolChanged,
		District:   district,
		SchoolID:   schoolID,
		OccurredAt: s.now().UTC(),
	}
	if err := s.publisher.PublishRecordChanged(ctx, event); err != nil {
		slog.Warn("failed to publish school event", "school_id", schoolID, "error", err)
	}
}

// View enriches a directory entry with its resolved geography.
func (s *SchoolService) View(school models.School) models.SchoolView {
	ref := s.geo.Place(school.District)
	return models.SchoolView{
		School:    school,
		SubRegion: ref.SubRegion,
		Region:    ref.Region,
		Location:  school.Location(),
	}
}
