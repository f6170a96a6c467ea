package services

import (
	"testing"

	"impact-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// CLASSIFICATION
// ============================================================================

func TestClassify_Boundaries(t *testing.T) {
	scorer := NewEgraScorer()

	cases := []struct {
		wpm  float64
		want models.FluencyLevel
	}{
		{0, models.FluencyNonReader},
		{10, models.FluencyNonReader},
		{10.5, models.FluencyEmerging},
		{11, models.FluencyEmerging},
		{25, models.FluencyEmerging},
		{26, models.FluencyDeveloping},
		{45, models.FluencyDeveloping},
		{46, models.FluencyTransitional},
		{60, models.FluencyTransitional},
		{61, models.FluencyFluent},
		{140, models.FluencyFluent},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, scorer.Classify(tc.wpm), "wpm=%v", tc.wpm)
	}
}

func TestClassifyValue_MissingIsNotZero(t *testing.T) {
	scorer := NewEgraScorer()

	assert.Equal(t, models.FluencyUnclassified, scorer.ClassifyValue(models.FlexNumber{}))
	assert.Equal(t, models.FluencyUnclassified, scorer.ClassifyValue(models.FlexNumberFromString("abc")))
	assert.Equal(t, models.FluencyUnclassified, scorer.ClassifyValue(models.NewFlexNumber(-3)))
	assert.Equal(t, models.FluencyNonReader, scorer.ClassifyValue(models.NewFlexNumber(0)))
	assert.Equal(t, models.FluencyEmerging, scorer.ClassifyValue(models.FlexNumberFromString(" 12 ")))
}

func TestResolveLevel_PrefersStoredLevel(t *testing.T) {
	scorer := NewEgraScorer()

	row := learnerRow("L1", "F", 70)
	row.FluencyLevel = models.FluencyDeveloping
	assert.Equal(t, models.FluencyDeveloping, scorer.ResolveLevel(row))

	row.FluencyLevel = "not a level"
	assert.Equal(t, models.FluencyFluent, scorer.ResolveLevel(row))
}

// ============================================================================
// SUMMARY
// ============================================================================

func TestSummarize_ClassExample(t *testing.T) {
	scorer := NewEgraScorer()
	rows := []models.EgraLearnerRow{
		{Sex: "M", StoryReading: models.NewFlexNumber(8)},
		{Sex: "F", StoryReading: models.NewFlexNumber(30)},
		{Sex: "F", StoryReading: models.FlexNumberFromString("n/a")},
		{},
	}

	summary := scorer.Summarize(rows)

	assert.Equal(t, 8.0, summary.Boys.StoryReading)
	assert.Equal(t, 30.0, summary.Girls.StoryReading)
	assert.Equal(t, 19.0, summary.Class.StoryReading)
	assert.Equal(t, 2, summary.ClassifiedRows)
	assert.Equal(t, 1, summary.UnclassifiedRows)

	assert.Equal(t, 1, summary.Share(models.FluencyNonReader).Count)
	assert.Equal(t, 50.0, summary.Share(models.FluencyNonReader).Percent)
	assert.Equal(t, 1, summary.Share(models.FluencyDeveloping).Count)
	assert.Equal(t, 50.0, summary.Share(models.FluencyDeveloping).Percent)
	assert.Equal(t, 0.0, summary.Share(models.FluencyEmerging).Percent)
	assert.Equal(t, 0.0, summary.Share(models.FluencyFluent).Percent)
}

func TestSummarize_DistributionOverClassifiedRows(t *testing.T) {
	scorer := NewEgraScorer()
	rows := []models.EgraLearnerRow{
		{LearnerID: "L1", StoryReading: models.NewFlexNumber(5)},
		{LearnerID: "L2", StoryReading: models.NewFlexNumber(70)},
		{LearnerID: "L3", LetterNames: models.NewFlexNumber(12)},
	}

	summary := scorer.Summarize(rows)

	assert.Equal(t, 3, summary.ActiveRows)
	assert.Equal(t, 2, summary.ClassifiedRows)
	assert.Equal(t, 1, summary.UnclassifiedRows)
	assert.Equal(t, 50.0, summary.Share(models.FluencyNonReader).Percent)
	assert.Equal(t, 50.0, summary.Share(models.FluencyFluent).Percent)
}

func TestSummarize_BlankRowsExcluded(t *testing.T) {
	scorer := NewEgraScorer()
	rows := []models.EgraLearnerRow{
		{Sex: "M", StoryReading: models.NewFlexNumber(8)},
		{Sex: "F", StoryReading: models.NewFlexNumber(14)},
		{},
		{},
	}

	summary := scorer.Summarize(rows)

	assert.Equal(t, 2, summary.ActiveRows)
	assert.Equal(t, 11.0, summary.Class.StoryReading)
	assert.Equal(t, 50.0, summary.Share(models.FluencyNonReader).Percent)
	assert.Equal(t, 50.0, summary.Share(models.FluencyEmerging).Percent)
}

func TestSummarize_NoActiveRows(t *testing.T) {
	scorer := NewEgraScorer()

	summary := scorer.Summarize([]models.EgraLearnerRow{{}, {}})

	assert.Equal(t, 0, summary.ActiveRows)
	require.Len(t, summary.LevelDistribution, len(models.FluencyLevels))
	for _, share := range summary.LevelDistribution {
		assert.Equal(t, 0, share.Count)
		assert.Equal(t, 0.0, share.Percent)
	}
	assert.Equal(t, 0.0, summary.Class.LetterNames)
}

func TestSummarize_PercentagesSumTo100(t *testing.T) {
	scorer := NewEgraScorer()
	rows := []models.EgraLearnerRow{
		learnerRow("a", "M", 5),
		learnerRow("b", "F", 15),
		learnerRow("c", "M", 35),
	}

	summary := scorer.Summarize(rows)

	total := 0.0
	for _, share := range summary.LevelDistribution {
		assert.GreaterOrEqual(t, share.Percent, 0.0)
		total += share.Percent
	}
	assert.InDelta(t, 100.0, total, 0.5)
}

func TestSummarize_AveragesRoundedToOneDecimal(t *testing.T) {
	scorer := NewEgraScorer()
	rows := []models.EgraLearnerRow{
		{LearnerID: "a", LetterNames: models.NewFlexNumber(10)},
		{LearnerID: "b", LetterNames: models.NewFlexNumber(11)},
		{LearnerID: "c", LetterNames: models.NewFlexNumber(11)},
	}

	summary := scorer.Summarize(rows)

	assert.Equal(t, 10.7, summary.Class.LetterNames)
}

// ============================================================================
// PERSISTED PAYLOAD
// ============================================================================

func TestBuildAssessmentPayload(t *testing.T) {
	scorer := NewEgraScorer()
	rows := []models.EgraLearnerRow{
		{LearnerID: "L1", Sex: "male", StoryReading: models.NewFlexNumber(50), Age: models.FlexNumberFromString("x")},
		{},
	}

	payload, err := scorer.BuildAssessmentPayload("Midline", rows)
	require.NoError(t, err)

	assert.Equal(t, string(models.CycleProgress), payload.Cycle)
	require.Len(t, payload.Learners, 1)
	learner := payload.Learners[0]
	assert.Equal(t, "M", learner.Sex)
	assert.Equal(t, models.FluencyTransitional, learner.FluencyLevel)
	assert.True(t, learner.Age.IsBlank(), "malformed age is stored as null")
	require.NotNil(t, payload.Summary)
	assert.Equal(t, 1, payload.Summary.ActiveRows)
}

func TestBuildAssessmentPayload_UnknownCycle(t *testing.T) {
	_, err := NewEgraScorer().BuildAssessmentPayload("midterm", nil)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestNormalizeRows_NeverNaN(t *testing.T) {
	rows := []models.EgraLearnerRow{
		{LearnerID: "L1", LetterNames: models.FlexNumberFromString("NaN"), RealWords: models.NewFlexNumber(0)},
	}

	out := NewEgraScorer().NormalizeRows(rows)

	require.Len(t, out, 1)
	assert.Nil(t, out[0].LetterNames)
	require.NotNil(t, out[0].RealWords)
	assert.Equal(t, 0.0, *out[0].RealWords)
	assert.Nil(t, out[0].StoryReading)
	assert.Equal(t, models.FluencyUnclassified, out[0].FluencyLevel)
}
