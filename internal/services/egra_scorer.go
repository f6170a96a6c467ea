package services

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"impact-service/internal/models"
)

// Fluency band upper bounds (inclusive) on story-reading words per minute.
const (
	nonReaderMax    = 10
	emergingMax     = 25
	developingMax   = 45
	transitionalMax = 60
)

// EgraScorer classifies learners and summarises class results. It has no
// state and is safe for concurrent use.
type EgraScorer struct{}

func NewEgraScorer() *EgraScorer {
	return &EgraScorer{}
}

// Classify maps a story-reading score to a fluency band. Negative scores
// are treated as not available.
func (s *EgraScorer) Classify(storyReadingWpm float64) models.FluencyLevel {
	switch {
	case math.IsNaN(storyReadingWpm) || storyReadingWpm < 0:
		return models.FluencyUnclassified
	case storyReadingWpm <= nonReaderMax:
		return models.FluencyNonReader
	case storyReadingWpm <= emergingMax:
		return models.FluencyEmerging
	case storyReadingWpm <= developingMax:
		return models.FluencyDeveloping
	case storyReadingWpm <= transitionalMax:
		return models.FluencyTransitional
	}
	return models.FluencyFluent
}

// ClassifyValue classifies a raw form value. Missing or unparseable input
// yields FluencyUnclassified, never the band for zero.
func (s *EgraScorer) ClassifyValue(v models.FlexNumber) models.FluencyLevel {
	wpm, ok := v.NonNegative()
	if !ok {
		return models.FluencyUnclassified
	}
	return s.Classify(wpm)
}

// ResolveLevel returns the stored level when it is a known band, otherwise
// the level derived from the story-reading score.
func (s *EgraScorer) ResolveLevel(row models.EgraLearnerRow) models.FluencyLevel {
	if stored := models.ParseFluencyLevel(string(row.FluencyLevel)); stored != models.FluencyUnclassified {
		return stored
	}
	return s.ClassifyValue(row.StoryReading)
}

// ActiveRows drops rows with nothing filled in.
func (s *EgraScorer) ActiveRows(rows []models.EgraLearnerRow) []models.EgraLearnerRow {
	active := make([]models.EgraLearnerRow, 0, len(rows))
	for _, row := range rows {
		if row.IsActive() {
			active = append(active, row)
		}
	}
	return active
}

// Summarize computes domain means split by sex and the fluency level
// distribution over the active rows.
//
// Level percentages use the number of classified rows as denominator so the
// five buckets sum to 100; rows without a usable story-reading score are
// reported in UnclassifiedRows. With no classified rows every bucket is 0.
func (s *EgraScorer) Summarize(rows []models.EgraLearnerRow) models.EgraClassSummary {
	active := s.ActiveRows(rows)

	var boys, girls []models.EgraLearnerRow
	for _, row := range active {
		switch models.ParseSex(row.Sex) {
		case models.SexMale:
			boys = append(boys, row)
		case models.SexFemale:
			girls = append(girls, row)
		}
	}

	summary := models.EgraClassSummary{
		Class:      domainAverages(active),
		Boys:       domainAverages(boys),
		Girls:      domainAverages(girls),
		ActiveRows: len(active),
	}

	counts := make(map[models.FluencyLevel]int, len(models.FluencyLevels))
	for _, row := range active {
		level := s.ResolveLevel(row)
		if level == models.FluencyUnclassified {
			summary.UnclassifiedRows++
			continue
		}
		counts[level]++
		summary.ClassifiedRows++
	}

	denominator := summary.ClassifiedRows
	if denominator == 0 {
		denominator = 1
	}
	summary.LevelDistribution = make([]models.LevelShare, 0, len(models.FluencyLevels))
	for _, level := range models.FluencyLevels {
		summary.LevelDistribution = append(summary.LevelDistribution, models.LevelShare{
			Level:   level,
			Count:   counts[level],
			Percent: round1(float64(counts[level]) / float64(denominator) * 100),
		})
	}

	return summary
}

// NormalizeRows converts active rows to their persisted form with every
// score as number-or-null and the resolved fluency level.
func (s *EgraScorer) NormalizeRows(rows []models.EgraLearnerRow) []models.NormalizedLearnerRow {
	active := s.ActiveRows(rows)
	out := make([]models.NormalizedLearnerRow, 0, len(active))
	for _, row := range active {
		out = append(out, models.NormalizedLearnerRow{
			LearnerID:     strings.TrimSpace(row.LearnerID),
			Sex:           models.ParseSex(row.Sex),
			Age:           nonNegativePtr(row.Age),
			LetterNames:   nonNegativePtr(row.LetterNames),
			LetterSounds:  nonNegativePtr(row.LetterSounds),
			RealWords:     nonNegativePtr(row.RealWords),
			MadeUpWords:   nonNegativePtr(row.MadeUpWords),
			StoryReading:  nonNegativePtr(row.StoryReading),
			Comprehension: nonNegativePtr(row.Comprehension),
			FluencyLevel:  s.ResolveLevel(row),
		})
	}
	return out
}

// BuildAssessmentPayload produces the assessment payload persisted for a
// class: normalised active rows with their levels plus the class summary.
func (s *EgraScorer) BuildAssessmentPayload(cycle string, rows []models.EgraLearnerRow) (*models.AssessmentPayload, error) {
	parsed, ok := models.ParseAssessmentCycle(cycle)
	if !ok {
		return nil, fmt.Errorf("%w: unknown assessment cycle %q", models.ErrValidation, cycle)
	}

	normalized := s.NormalizeRows(rows)
	learners := make([]models.EgraLearnerRow, 0, len(normalized))
	for _, n := range normalized {
		learners = append(learners, models.EgraLearnerRow{
			LearnerID:     n.LearnerID,
			Sex:           string(n.Sex),
			Age:           flexFromPtr(n.Age),
			LetterNames:   flexFromPtr(n.LetterNames),
			LetterSounds:  flexFromPtr(n.LetterSounds),
			RealWords:     flexFromPtr(n.RealWords),
			MadeUpWords:   flexFromPtr(n.MadeUpWords),
			StoryReading:  flexFromPtr(n.StoryReading),
			Comprehension: flexFromPtr(n.Comprehension),
			FluencyLevel:  n.FluencyLevel,
		})
	}

	summary := s.Summarize(learners)
	if dropped := len(rows) - len(learners); dropped > 0 {
		slog.Debug("dropped blank EGRA rows", "cycle", parsed, "dropped", dropped)
	}
	return &models.AssessmentPayload{
		Cycle:    string(parsed),
		Learners: learners,
		Summary:  &summary,
	}, nil
}

func domainAverages(rows []models.EgraLearnerRow) models.DomainAverages {
	var avg models.DomainAverages
	for _, d := range models.AllDomains {
		sum, n := 0.0, 0
		for _, row := range rows {
			if v, ok := row.Score(d).NonNegative(); ok {
				sum += v
				n++
			}
		}
		if n > 0 {
			avg.Set(d, round1(sum/float64(n)))
		}
	}
	return avg
}

func nonNegativePtr(v models.FlexNumber) *float64 {
	f, ok := v.NonNegative()
	if !ok {
		return nil
	}
	return &f
}

func flexFromPtr(v *float64) models.FlexNumber {
	if v == nil {
		return models.FlexNumber{}
	}
	return models.NewFlexNumber(*v)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
