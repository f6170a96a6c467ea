package services

import (
	"context"
	"testing"

	"impact-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestSchoolService(t *testing.T) (*SchoolService, *memSchoolStore) {
	t.Helper()
	store := newMemSchoolStore()
	return NewSchoolService(store, createTestGeography(t), nil, testClock), store
}

func TestSchoolCreate_CanonicalDistrictAndView(t *testing.T) {
	svc, store := createTestSchoolService(t)
	lat, lng := 2.78, 32.30

	view, err := svc.Create(context.Background(), models.CreateSchoolRequest{
		Name:      "  St.  Mary's   Gulu ",
		District:  "GULU district",
		Latitude:  &lat,
		Longitude: &lng,
	})
	require.NoError(t, err)

	assert.Equal(t, "SCH-0001", view.ID)
	assert.Equal(t, "St. Mary's Gulu", view.Name)
	assert.Equal(t, "Gulu", view.District)
	assert.Equal(t, "Acholi", view.SubRegion)
	assert.Equal(t, "Northern", view.Region)
	require.NotNil(t, view.Location)
	assert.Equal(t, []float64{32.30, 2.78}, view.Location.Coordinates)
	assert.Len(t, store.schools, 1)
}

func TestSchoolCreate_UnknownDistrict(t *testing.T) {
	svc, _ := createTestSchoolService(t)

	_, err := svc.Create(context.Background(), models.CreateSchoolRequest{Name: "X", District: "Atlantis"})

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "district")
}

func TestSchoolCreate_Duplicate(t *testing.T) {
	svc, _ := createTestSchoolService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, models.CreateSchoolRequest{Name: "Awach Primary", District: "Gulu"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, models.CreateSchoolRequest{Name: "awach primary", District: "gulu"})
	assert.ErrorIs(t, err, models.ErrDuplicateRecord)
}

func TestSchoolImportBatch(t *testing.T) {
	svc, _ := createTestSchoolService(t)
	lat := 1.0

	result, err := svc.ImportBatch(context.Background(), []models.CreateSchoolRequest{
		{Name: "A", District: "Gulu"},
		{Name: "B", District: "Nowhere"},
		{Name: "A", District: "Gulu"},
		{Name: "C", District: "Lira", Latitude: &lat},
		{Name: "D", District: "Lira"},
	})
	require.NoError(t, err)

	require.Len(t, result.Created, 2)
	assert.Equal(t, "SCH-0001", result.Created[0].ID)
	assert.Equal(t, "SCH-0002", result.Created[1].ID)
	assert.Len(t, result.Skipped, 3)
	assert.Contains(t, result.Skipped, 1)
	assert.Contains(t, result.Skipped, 2)
	assert.Contains(t, result.Skipped, 3)
}

func TestSchoolList_ByDistrict(t *testing.T) {
	svc, _ := createTestSchoolService(t)
	ctx := context.Background()
	for _, req := range []models.CreateSchoolRequest{
		{Name: "A", District: "Gulu"},
		{Name: "B", District: "Lira"},
	} {
		_, err := svc.Create(ctx, req)
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	gulu, err := svc.List(ctx, "gulu")
	require.NoError(t, err)
	require.Len(t, gulu, 1)
	assert.Equal(t, "A", gulu[0].Name)

	none, err := svc.List(ctx, "Atlantis")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSchoolGetByID_NotFound(t *testing.T) {
	svc, _ := createTestSchoolService(t)

	_, err := svc.GetByID(context.Background(), "SCH-0099")
	assert.ErrorIs(t, err, models.ErrSchoolNotFound)
}

func TestSchoolWrites_PublishChangeEvents(t *testing.T) {
	publisher := &recordingPublisher{}
	svc := NewSchoolService(newMemSchoolStore(), createTestGeography(t), publisher, testClock)
	ctx := context.Background()

	created, err := svc.Create(ctx, models.CreateSchoolRequest{Name: "Gulu Primary", District: "gulu"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, models.CreateSchoolRequest{Name: "GULU PRIMARY", District: "Gulu"})
	require.ErrorIs(t, err, models.ErrDuplicateRecord)

	_, err = svc.UpdateEnrollment(ctx, created.ID, 380)
	require.NoError(t, err)

	_, err = svc.UpdateEnrollment(ctx, "SCH-0404", 1)
	require.ErrorIs(t, err, models.ErrSchoolNotFound)

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	require.Len(t, publisher.events, 2, "only successful writes publish")
	for _, event := range publisher.events {
		assert.Equal(t, models.SchoolChanged, event.Kind)
		assert.Equal(t, "Gulu", event.District)
		assert.Equal(t, created.ID, event.SchoolID)
	}
}

func TestSchoolCreate_PublishFailureIsNotFatal(t *testing.T) {
	publisher := &recordingPublisher{err: errStoreDown}
	svc := NewSchoolService(newMemSchoolStore(), createTestGeography(t), publisher, testClock)

	view, err := svc.Create(context.Background(), models.CreateSchoolRequest{Name: "Lira Town Primary", District: "Lira"})
	require.NoError(t, err)
	assert.Equal(t, "SCH-0001", view.ID)
}

func TestSchoolUpdateEnrollment(t *testing.T) {
	svc, _ := createTestSchoolService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, models.CreateSchoolRequest{Name: "A", District: "Gulu", CurrentEnrollment: 100})
	require.NoError(t, err)

	updated, err := svc.UpdateEnrollment(ctx, "sch-0001", 420)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, 420, updated.CurrentEnrollment)

	_, err = svc.UpdateEnrollment(ctx, "SCH-0001", -1)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.UpdateEnrollment(ctx, "SCH-0404", 1)
	assert.ErrorIs(t, err, models.ErrSchoolNotFound)
}
