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

	"github.com/google/uuid"
)

// RecordStore is the write side of the record store.
type RecordStore interface {
	Create(ctx context.Context, rec *models.RawRecord) error
	Update(ctx context.Context, rec *models.RawRecord) error
	GetByID(ctx context.Context, id string) (*models.RawRecord, error)
	FindDuplicate(ctx context.Context, module models.Module, date models.Date, schoolName, excludeID string) (*models.RawRecord, error)
	List(ctx context.Context, filter models.RecordFilter) ([]models.RawRecord, int, error)
}

// SchoolFinder looks schools up by directory code.
type SchoolFinder interface {
	GetByID(ctx context.Context, id string) (*models.School, error)
}

type RecordEventPublisher interface {
	PublishRecordChanged(ctx context.Context, event models.RecordChangedEvent) error
}

type RecordService struct {
	store           RecordStore
	schools         SchoolFinder
	geo             *GeographyResolver
	scorer          *EgraScorer
	publisher       RecordEventPublisher
	machine         StatusMachine
	trainingMinDays int
	now             func() time.Time
}

func NewRecordService(
	store RecordStore,
	schools SchoolFinder,
	geo *GeographyResolver,
	scorer *EgraScorer,
	publisher RecordEventPublisher,
	trainingFollowUpDays int,
	now func() time.Time,
) *RecordService {
	if now == nil {
		now = time.Now
	}
	return &RecordService{
		store:           store,
		schools:         schools,
		geo:             geo,
		scorer:          scorer,
		publisher:       publisher,
		trainingMinDays: trainingFollowUpDays,
		now:             now,
	}
}

// Submit creates a record after validating its payload, dates and
// uniqueness per module, date and school name.
func (s *RecordService) Submit(ctx context.Context, actor models.Actor, req models.SubmitRecordRequest) (*models.RawRecord, error) {
	req = utils.TrimAllStringFields(req).(models.SubmitRecordRequest)
	if req.Status == "" {
		req.Status = models.RecordStatusSubmitted
	}
	if err := s.machine.CheckCreate(req.Status); err != nil {
		return nil, err
	}

	rec, err := s.buildRecord(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, rec, ""); err != nil {
		return nil, err
	}

	now := s.now().Unix()
	rec.ID = uuid.New().String()
	rec.Status = req.Status
	rec.CreatedBy = actor.UserID
	rec.CreatedAt = now
	rec.UpdatedAt = now

	if err := s.store.Create(ctx, rec); err != nil {
		if !errors.Is(err, models.ErrDuplicateRecord) {
			slog.Error("failed to create record", "module", rec.Module, "school_name", rec.SchoolName, "error", err)
		}
		return nil, err
	}

	slog.Info("record created", "record_id", rec.ID, "module", rec.Module, "status", rec.Status, "user_id", actor.UserID)
	s.publish(ctx, rec, models.RecordCreated, "")
	return rec, nil
}

// Update replaces a record's content. Status changes go through the status
// machine; approving and returning belong to Review.
func (s *RecordService) Update(ctx context.Context, actor models.Actor, id string, req models.UpdateRecordRequest) (*models.RawRecord, error) {
	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	req = utils.TrimAllStringFields(req).(models.UpdateRecordRequest)
	target := req.Status
	if target == "" {
		target = existing.Status
	}
	if target == models.RecordStatusApproved || target == models.RecordStatusReturned {
		if target != existing.Status {
			return nil, fmt.Errorf("%w: use the review endpoint to set %s", models.ErrInvalidTransition, target)
		}
	}
	isCreator := existing.CreatedBy == actor.UserID
	if err := s.machine.CheckTransition(actor, isCreator, existing.Status, target); err != nil {
		return nil, err
	}

	rec, err := s.buildRecord(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, rec, existing.ID); err != nil {
		return nil, err
	}

	rec.ID = existing.ID
	rec.Status = target
	rec.CreatedBy = existing.CreatedBy
	rec.CreatedAt = existing.CreatedAt
	rec.ReviewedBy = existing.ReviewedBy
	rec.ReviewNote = existing.ReviewNote
	rec.UpdatedAt = s.now().Unix()

	if err := s.store.Update(ctx, rec); err != nil {
		if !errors.Is(err, models.ErrDuplicateRecord) {
			slog.Error("failed to update record", "record_id", id, "error", err)
		}
		return nil, err
	}

	s.publish(ctx, rec, models.RecordUpdated, existing.District)
	return rec, nil
}

// Review approves or returns a submitted record. Only reviewers may do this.
func (s *RecordService) Review(ctx context.Context, actor models.Actor, id string, req models.ReviewRecordRequest) (*models.RawRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.machine.CheckTransition(actor, rec.CreatedBy == actor.UserID, rec.Status, req.Status); err != nil {
		return nil, err
	}

	reviewer := actor.UserID
	rec.Status = req.Status
	rec.ReviewedBy = &reviewer
	if note := strings.TrimSpace(req.Note); note != "" {
		rec.ReviewNote = &note
	}
	rec.UpdatedAt = s.now().Unix()

	if err := s.store.Update(ctx, rec); err != nil {
		slog.Error("failed to review record", "record_id", id, "status", req.Status, "error", err)
		return nil, err
	}

	slog.Info("record reviewed", "record_id", id, "status", rec.Status, "reviewer_id", reviewer)
	s.publish(ctx, rec, models.RecordReviewed, "")
	return rec, nil
}

func (s *RecordService) Get(ctx context.Context, id string) (*models.RawRecord, error) {
	return s.store.GetByID(ctx, id)
}

func (s *RecordService) List(ctx context.Context, filter models.RecordFilter) ([]models.RawRecord, int, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.store.List(ctx, filter)
}

// buildRecord validates a request and produces the record content.
func (s *RecordService) buildRecord(ctx context.Context, req models.SubmitRecordRequest) (*models.RawRecord, error) {
	payload, err := req.Validate()
	verr := models.NewValidationError()
	if err != nil {
		var fieldErrs *models.ValidationError
		if !errors.As(err, &fieldErrs) {
			return nil, err
		}
		verr = fieldErrs
	}

	date, dateErr := models.ParseDate(req.Date)
	if dateErr == nil && date.After(models.DateOf(s.now())) {
		verr.Add("date", "cannot be in the future")
	}

	var followUp *models.Date
	if req.FollowUpDate != "" {
		if fu, err := models.ParseDate(req.FollowUpDate); err == nil {
			followUp = &fu
			if dateErr == nil {
				s.checkFollowUp(verr, req.Module, date, fu)
			}
		}
	}

	if req.Module == models.ModuleAssessment && payload.Assessment != nil {
		normalized, err := s.scorer.BuildAssessmentPayload(payload.Assessment.Cycle, payload.Assessment.Learners)
		if err != nil {
			verr.Add("payload.cycle", "must be one of: baseline progress endline")
		} else {
			normalized.Grade = payload.Assessment.Grade
			normalized.CurrentEnrollment = payload.Assessment.CurrentEnrollment
			payload.Assessment = normalized
		}
	}

	var schoolID *string
	district := req.District
	if req.SchoolID != "" {
		school, err := s.schools.GetByID(ctx, req.SchoolID)
		switch {
		case errors.Is(err, models.ErrSchoolNotFound):
			verr.Add("schoolId", "unknown school")
		case err != nil:
			return nil, err
		default:
			schoolID = &school.ID
			if district == "" {
				district = school.District
			}
		}
	}
	if canonical, ok := s.geo.CanonicalDistrict(district); ok {
		district = canonical
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	return &models.RawRecord{
		Module:       req.Module,
		ActivityDate: date,
		District:     district,
		SchoolID:     schoolID,
		SchoolName:   strings.Join(strings.Fields(req.SchoolName), " "),
		ProgramType:  req.ProgramType,
		FollowUpDate: followUp,
		Payload:      payload,
	}, nil
}

func (s *RecordService) checkFollowUp(verr *models.ValidationError, module models.Module, date, followUp models.Date) {
	if followUp.Before(date) {
		verr.Add("followUpDate", "must be on or after the activity date")
		return
	}
	if module == models.ModuleTraining && s.trainingMinDays > 0 && followUp.Before(date.AddDays(s.trainingMinDays)) {
		verr.Add("followUpDate", fmt.Sprintf("must be at least %d days after a training", s.trainingMinDays))
	}
}

func (s *RecordService) ensureUnique(ctx context.Context, rec *models.RawRecord, excludeID string) error {
	dup, err := s.store.FindDuplicate(ctx, rec.Module, rec.ActivityDate, rec.SchoolName, excludeID)
	if err != nil {
		return err
	}
	if dup != nil {
		return fmt.Errorf("%w: %s record %s already exists for %s on %s",
			models.ErrDuplicateRecord, rec.Module, dup.ID, rec.SchoolName, rec.ActivityDate)
	}
	return nil
}

func (s *RecordService) publish(ctx context.Context, rec *models.RawRecord, kind models.RecordChangeKind, previousDistrict string) {
	if s.publisher == nil {
		return
	}
	event := models.RecordChangedEvent{
		RecordID:     rec.ID,
		Kind:         kind,
		Module:       rec.Module,
		District:     rec.District,
		ActivityDate: rec.ActivityDate.String(),
		Status:       rec.Status,
		OccurredAt:   s.now().UTC(),
	}
	if previousDistrict != "" && previousDistrict != rec.District {
		event.PreviousDistrict = previousDistrict
	}
	if rec.SchoolID != nil {
		event.SchoolID = *rec.SchoolID
	}
	if err := s.publisher.PublishRecordChanged(ctx, event); err != nil {
		slog.Warn("failed to publish record event", "record_id", rec.ID, "error", err)
	}
}
