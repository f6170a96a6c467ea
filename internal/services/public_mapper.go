package services

import (
	"bytes"
	"encoding/json"
	"fmt"

	"impact-service/internal/models"
	"impact-service/shared/utils"
)

// Fields that public consumers also read in snake_case. Both spellings are
// served side by side.
var (
	publicKPIAliases = []string{
		"schoolsSupported",
		"teachersSupportedMale",
		"teachersSupportedFemale",
		"teachersSupportedTotal",
		"enrollmentEstimatedReach",
		"learnersAssessedUnique",
		"coachingVisitsCompleted",
		"assessmentsBaselineCount",
		"assessmentsProgressCount",
		"assessmentsEndlineCount",
	}
	publicFunnelAliases = []string{
		"baselineAssessed",
		"endlineAssessed",
		"storyActive",
	}
	publicOutcomeAliases = []string{
		"latestCycle",
		"baselineN",
		"benchmarkPct",
	}
	publicMetaAliases = []string{
		"sampleSize",
		"dataCompleteness",
		"lastUpdated",
		"flaggedRecords",
		"schoolsInScope",
	}
)

// PublicMapper shapes an aggregate for the public dashboard and runs the
// privacy scan on the result.
type PublicMapper struct {
	guard *PrivacyGuard
}

func NewPublicMapper(guard *PrivacyGuard) *PublicMapper {
	return &PublicMapper{guard: guard}
}

// ToPublic returns the aggregate as a JSON object with snake_case aliases
// added. Any privacy hit fails the whole payload.
func (m *PublicMapper) ToPublic(agg *models.ImpactAggregate) (map[string]any, error) {
	if agg == nil {
		return nil, fmt.Errorf("aggregate is required")
	}
	b, err := utils.SerializeModel(agg)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode aggregate: %w", err)
	}

	addAliases(out["kpis"], publicKPIAliases)
	addAliases(out["funnel"], publicFunnelAliases)
	addAliases(out["meta"], publicMetaAliases)
	if outcomes, ok := out["outcomes"].(map[string]any); ok {
		for _, domain := range outcomes {
			addAliases(domain, publicOutcomeAliases)
		}
		for _, d := range models.AllDomains {
			if v, ok := outcomes[string(d)]; ok {
				outcomes[utils.CamelToSnake(string(d))] = v
			}
		}
	}

	if err := m.guard.Scan(out); err != nil {
		return nil, err
	}
	return out, nil
}

func addAliases(node any, keys []string) {
	obj, ok := node.(map[string]any)
	if !ok {
		return
	}
	for _, k := range keys {
		if v, exists := obj[k]; exists {
			obj[utils.CamelToSnake(k)] = v
		}
	}
}
