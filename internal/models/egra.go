package models

import "strings"

// EgraLearnerRow is one learner's raw timed-task scores as entered on the
// assessment form.
type EgraLearnerRow struct {
	LearnerID     string       `json:"learnerId,omitempty"`
	Sex           string       `json:"sex,omitempty"`
	Age           FlexNumber   `json:"age"`
	LetterNames   FlexNumber   `json:"letterNames"`
	LetterSounds  FlexNumber   `json:"letterSounds"`
	RealWords     FlexNumber   `json:"realWords"`
	MadeUpWords   FlexNumber   `json:"madeUpWords"`
	StoryReading  FlexNumber   `json:"storyReading"`
	Comprehension FlexNumber   `json:"comprehension"`
	FluencyLevel  FluencyLevel `json:"fluencyLevel,omitempty"`
}

func (r EgraLearnerRow) Score(d EgraDomain) FlexNumber {
	switch d {
	case DomainLetterNames:
		return r.LetterNames
	case DomainLetterSounds:
		return r.LetterSounds
	case DomainRealWords:
		return r.RealWords
	case DomainMadeUpWords:
		return r.MadeUpWords
	case DomainStoryReading:
		return r.StoryReading
	case DomainComprehension:
		return r.Comprehension
	}
	return FlexNumber{}
}

// IsActive reports whether any identifying or scoring field was filled in.
// Blank rows come from fixed-size form grids and must not count.
func (r EgraLearnerRow) IsActive() bool {
	if strings.TrimSpace(r.LearnerID) != "" || strings.TrimSpace(r.Sex) != "" || !r.Age.IsBlank() {
		return true
	}
	for _, d := range AllDomains {
		if !r.Score(d).IsBlank() {
			return true
		}
	}
	return false
}

// NormalizedLearnerRow is the persisted shape of an active row: every score
// is a number or null.
type NormalizedLearnerRow struct {
	LearnerID     string       `json:"learnerId,omitempty"`
	Sex           Sex          `json:"sex,omitempty"`
	Age           *float64     `json:"age"`
	LetterNames   *float64     `json:"letterNames"`
	LetterSounds  *float64     `json:"letterSounds"`
	RealWords     *float64     `json:"realWords"`
	MadeUpWords   *float64     `json:"madeUpWords"`
	StoryReading  *float64     `json:"storyReading"`
	Comprehension *float64     `json:"comprehension"`
	FluencyLevel  FluencyLevel `json:"fluencyLevel"`
}

// DomainAverages holds one mean per EGRA domain. Domains without data are 0
// so a class summary is always renderable.
type DomainAverages struct {
	LetterNames   float64 `json:"letterNames"`
	LetterSounds  float64 `json:"letterSounds"`
	RealWords     float64 `json:"realWords"`
	MadeUpWords   float64 `json:"madeUpWords"`
	StoryReading  float64 `json:"storyReading"`
	Comprehension float64 `json:"comprehension"`
}

func (a *DomainAverages) Set(d EgraDomain, v float64) {
	switch d {
	case DomainLetterNames:
		a.LetterNames = v
	case DomainLetterSounds:
		a.LetterSounds = v
	case DomainRealWords:
		a.RealWords = v
	case DomainMadeUpWords:
		a.MadeUpWords = v
	case DomainStoryReading:
		a.StoryReading = v
	case DomainComprehension:
		a.Comprehension = v
	}
}

func (a DomainAverages) Get(d EgraDomain) float64 {
	switch d {
	case DomainLetterNames:
		return a.LetterNames
	case DomainLetterSounds:
		return a.LetterSounds
	case DomainRealWords:
		return a.RealWords
	case DomainMadeUpWords:
		return a.MadeUpWords
	case DomainStoryReading:
		return a.StoryReading
	case DomainComprehension:
		return a.Comprehension
	}
	return 0
}

type LevelShare struct {
	Level   FluencyLevel `json:"level"`
	Count   int          `json:"count"`
	Percent float64      `json:"percent"`
}

type EgraClassSummary struct {
	Class             DomainAverages `json:"class"`
	Boys              DomainAverages `json:"boys"`
	Girls             DomainAverages `json:"girls"`
	// LevelDistribution percentages are over ClassifiedRows, not ActiveRows:
	// active rows without a story reading score are counted in
	// UnclassifiedRows and excluded, so the shares sum to 100.
	LevelDistribution []LevelShare   `json:"levelDistribution"`
	ActiveRows        int            `json:"activeRows"`
	ClassifiedRows    int            `json:"classifiedRows"`
	UnclassifiedRows  int            `json:"unclassifiedRows"`
}

// Share returns the distribution entry for level.
func (s EgraClassSummary) Share(level FluencyLevel) LevelShare {
	for _, ls := range s.LevelDistribution {
		if ls.Level == level {
			return ls
		}
	}
	return LevelShare{Level: level}
}
