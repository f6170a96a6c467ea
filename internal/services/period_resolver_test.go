package services

import (
	"testing"
	"time"

	"impact-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolverAt(t time.Time) *CalendarPeriodResolver {
	return NewCalendarPeriodResolver(createTestEngineConfig(), func() time.Time { return t })
}

func TestResolvePeriod_FiscalYear(t *testing.T) {
	r, err := resolverAt(testNow).Resolve(models.PeriodFiscalYear)
	require.NoError(t, err)
	assert.Equal(t, "2024-07-01", r.From.String())
	assert.Equal(t, "2025-06-30", r.To.String())

	r, err = resolverAt(time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)).Resolve(models.PeriodFiscalYear)
	require.NoError(t, err)
	assert.Equal(t, "2025-07-01", r.From.String())
}

func TestResolvePeriod_Quarter(t *testing.T) {
	r, err := resolverAt(testNow).Resolve(models.PeriodQuarter)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01", r.From.String())
	assert.Equal(t, "2025-03-31", r.To.String())
}

func TestResolvePeriod_Term(t *testing.T) {
	r, err := resolverAt(testNow).Resolve(models.PeriodTerm)
	require.NoError(t, err)
	assert.Equal(t, "2025-02-01", r.From.String())
	assert.Equal(t, "2025-04-30", r.To.String())
}

func TestResolvePeriod_TermDuringHolidays(t *testing.T) {
	r, err := resolverAt(time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC)).Resolve(models.PeriodTerm)
	require.NoError(t, err)
	assert.Equal(t, "2024-09-05", r.From.String())
	assert.Equal(t, "2024-12-05", r.To.String())

	r, err = resolverAt(time.Date(2025, time.May, 5, 0, 0, 0, 0, time.UTC)).Resolve(models.PeriodTerm)
	require.NoError(t, err)
	assert.Equal(t, "2025-02-01", r.From.String())
}

func TestResolvePeriod_Unknown(t *testing.T) {
	_, err := resolverAt(testNow).Resolve(models.Period("DECADE"))
	assert.ErrorIs(t, err, models.ErrUnknownPeriod)
}
