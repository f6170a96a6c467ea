package utils

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap stores free-form JSON objects in a TEXT/JSONB column.
type JSONMap map[string]any

func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j *JSONMap) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}

	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("JSONMap: Scan failed, expected []byte or string but got %T", value)
	}
	if len(b) == 0 {
		*j = nil
		return nil
	}

	return json.Unmarshal(b, j)
}

