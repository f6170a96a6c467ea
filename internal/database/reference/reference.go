package reference

import (
	_ "embed"
	"fmt"
	"os"

	"impact-service/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed geography.yaml
var defaultGeography []byte

// LoadGeography reads the geography table from path, or the embedded default
// table when path is empty.
func LoadGeography(path string) (*models.GeographyTable, error) {
	data := defaultGeography
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read geography file %s: %w", path, err)
		}
		data = b
	}
	return ParseGeography(data)
}

func ParseGeography(data []byte) (*models.GeographyTable, error) {
	var table models.GeographyTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse geography table: %w", err)
	}
	if len(table.Regions) == 0 {
		return nil, fmt.Errorf("geography table has no regions")
	}
	return &table, nil
}
