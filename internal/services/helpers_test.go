package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"impact-service/internal/config"
	"impact-service/internal/database/reference"
	"impact-service/internal/models"

	"github.com/stretchr/testify/require"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

// 2025-03-15 falls in FY 2024/25 (July start) and in Term 1.
var testNow = time.Date(2025, time.March, 15, 9, 0, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

func createTestEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		FiscalStartMonth: time.July,
		Terms:            config.DefaultTerms(),
		FidelityWeights: config.FidelityWeights{
			CoachingCoverage:     0.4,
			AssessmentCompliance: 0.3,
			TeachingQuality:      0.3,
		},
		ExpectedModules: map[string][]string{
			"FY":   {"training", "visit"},
			"TERM": {"visit"},
			"QTR":  {"visit"},
		},
		Benchmarks:           config.DefaultBenchmarks(),
		ObservationMax:       4,
		StoreTimeout:         time.Second,
		TrainingFollowUpDays: 14,
	}
}

func createTestGeography(t *testing.T) *GeographyResolver {
	t.Helper()
	table, err := reference.LoadGeography("")
	require.NoError(t, err)
	geo, err := NewGeographyResolver(table)
	require.NoError(t, err)
	return geo
}

func createTestSchool(id, name, district string, enrollment int) models.School {
	return models.School{
		ID:                id,
		Name:              name,
		District:          district,
		CurrentEnrollment: enrollment,
		CreatedAt:         testNow.Unix(),
		UpdatedAt:         testNow.Unix(),
	}
}

func withLocation(s models.School, lat, lng float64) models.School {
	s.Latitude = &lat
	s.Longitude = &lng
	return s
}

func createTestRecord(id string, module models.Module, date string, school models.School, status models.RecordStatus, payload models.RecordPayload) models.RawRecord {
	d, err := models.ParseDate(date)
	if err != nil {
		panic(err)
	}
	schoolID := school.ID
	rec := models.RawRecord{
		ID:           id,
		Module:       module,
		ActivityDate: d,
		District:     school.District,
		SchoolName:   school.Name,
		Status:       status,
		Payload:      payload,
		CreatedBy:    "user-1",
		CreatedAt:    testNow.Unix(),
		UpdatedAt:    testNow.Unix(),
	}
	if schoolID != "" {
		rec.SchoolID = &schoolID
	}
	return rec
}

func trainingPayload(male, female int) models.RecordPayload {
	return models.RecordPayload{Training: &models.TrainingPayload{
		MaleTeachers:   models.NewFlexNumber(float64(male)),
		FemaleTeachers: models.NewFlexNumber(float64(female)),
	}}
}

func visitPayload(score float64) models.RecordPayload {
	return models.RecordPayload{Visit: &models.VisitPayload{
		ObservationScore: models.NewFlexNumber(score),
	}}
}

func assessmentPayload(cycle models.AssessmentCycle, rows ...models.EgraLearnerRow) models.RecordPayload {
	return models.RecordPayload{Assessment: &models.AssessmentPayload{
		Cycle:    string(cycle),
		Learners: rows,
	}}
}

func learnerRow(id, sex string, storyReading float64) models.EgraLearnerRow {
	return models.EgraLearnerRow{
		LearnerID:    id,
		Sex:          sex,
		StoryReading: models.NewFlexNumber(storyReading),
	}
}

// memRecordStore is an in-memory RecordStore and RecordReader.
type memRecordStore struct {
	mu      sync.RWMutex
	records map[string]models.RawRecord
	err     error
}

func newMemRecordStore(records ...models.RawRecord) *memRecordStore {
	s := &memRecordStore{records: map[string]models.RawRecord{}}
	for _, r := range records {
		s.records[r.ID] = r
	}
	return s
}

func (s *memRecordStore) Create(_ context.Context, rec *models.RawRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = *rec
	return nil
}

func (s *memRecordStore) Update(_ context.Context, rec *models.RawRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; !ok {
		return models.ErrRecordNotFound
	}
	s.records[rec.ID] = *rec
	return nil
}

func (s *memRecordStore) GetByID(_ context.Context, id string) (*models.RawRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, models.ErrRecordNotFound
	}
	return &rec, nil
}

func (s *memRecordStore) FindDuplicate(_ context.Context, module models.Module, date models.Date, schoolName, excludeID string) (*models.RawRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.ID == excludeID || rec.Module != module || !rec.ActivityDate.Equal(date.Time) {
			continue
		}
		if models.NameKey(rec.SchoolName) == models.NameKey(schoolName) {
			found := rec
			return &found, nil
		}
	}
	return nil, nil
}

func (s *memRecordStore) List(_ context.Context, filter models.RecordFilter) ([]models.RawRecord, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.RawRecord
	for _, rec := range s.records {
		if filter.Module != "" && rec.Module != filter.Module {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (s *memRecordStore) ListForAggregation(ctx context.Context, filter models.AggregationFilter) ([]models.RawRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	allowed := map[models.RecordStatus]bool{}
	for _, st := range filter.Statuses {
		allowed[st] = true
	}
	var out []models.RawRecord
	for _, rec := range s.records {
		if allowed[rec.Status] && filter.Range.Contains(rec.ActivityDate) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// memSchoolStore is an in-memory SchoolStore and SchoolLister.
type memSchoolStore struct {
	mu      sync.RWMutex
	schools []models.School
	err     error
}

func newMemSchoolStore(schools ...models.School) *memSchoolStore {
	return &memSchoolStore{schools: schools}
}

func (s *memSchoolStore) Create(_ context.Context, school *models.School) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	school.ID = models.SchoolCode(len(s.schools) + 1)
	s.schools = append(s.schools, *school)
	return nil
}

func (s *memSchoolStore) GetByID(_ context.Context, id string) (*models.School, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sc := range s.schools {
		if strings.EqualFold(sc.ID, id) {
			found := sc
			return &found, nil
		}
	}
	return nil, models.ErrSchoolNotFound
}

func (s *memSchoolStore) FindByName(_ context.Context, name, district string) (*models.School, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sc := range s.schools {
		if models.NameKey(sc.Name) == models.NameKey(name) && strings.EqualFold(sc.District, district) {
			found := sc
			return &found, nil
		}
	}
	return nil, models.ErrSchoolNotFound
}

func (s *memSchoolStore) List(_ context.Context, district string) ([]models.School, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.School
	for _, sc := range s.schools {
		if sc.District == district {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (s *memSchoolStore) UpdateEnrollment(_ context.Context, id string, enrollment int, updatedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.schools {
		if s.schools[i].ID == id {
			s.schools[i].CurrentEnrollment = enrollment
			s.schools[i].UpdatedAt = updatedAt
			return nil
		}
	}
	return models.ErrSchoolNotFound
}

func (s *memSchoolStore) ListAll(_ context.Context) ([]models.School, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.School(nil), s.schools...), nil
}

// memCache is an in-memory AggregateCache that counts operations.
type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	sets    int
	deleted []string
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	c.sets++
	return nil
}

func (c *memCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, prefix)
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.RecordChangedEvent
	err    error
}

func (p *recordingPublisher) PublishRecordChanged(_ context.Context, event models.RecordChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

var errStoreDown = errors.New("connection refused")

func createTestAggregationService(t *testing.T, records *memRecordStore, schools *memSchoolStore) *AggregationService {
	t.Helper()
	cfg := createTestEngineConfig()
	return NewAggregationService(
		records,
		schools,
		createTestGeography(t),
		NewCalendarPeriodResolver(cfg, testClock),
		NewEgraScorer(),
		cfg,
	)
}
