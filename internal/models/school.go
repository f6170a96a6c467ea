package models

import (
	"fmt"
	"strings"
)

// School is a canonical directory entry. Region and sub-region are not
// stored; they are derived from District through the geography table.
type School struct {
	ID                string   `json:"id" db:"id"`
	Name              string   `json:"name" db:"name"`
	District          string   `json:"district" db:"district"`
	SubCounty         string   `json:"subCounty,omitempty" db:"sub_county"`
	Parish            string   `json:"parish,omitempty" db:"parish"`
	Village           string   `json:"village,omitempty" db:"village"`
	Latitude          *float64 `json:"latitude,omitempty" db:"latitude"`
	Longitude         *float64 `json:"longitude,omitempty" db:"longitude"`
	CurrentEnrollment int      `json:"currentEnrollment" db:"current_enrollment"`
	CreatedAt         int64    `json:"createdAt" db:"created_at"`
	UpdatedAt         int64    `json:"updatedAt" db:"updated_at"`
}

// SchoolCode formats the directory code for sequence number n.
func SchoolCode(n int) string {
	return fmt.Sprintf("SCH-%04d", n)
}

// Location returns the school's GPS point, or nil when it has none or the
// stored coordinates are invalid.
func (s School) Location() *GeoJSONPoint {
	if s.Latitude == nil || s.Longitude == nil {
		return nil
	}
	p, err := NewGeoJSONPoint(*s.Latitude, *s.Longitude)
	if err != nil {
		return nil
	}
	return p
}

// SchoolView is the directory entry enriched with its resolved geography.
type SchoolView struct {
	School
	SubRegion string        `json:"subRegion"`
	Region    string        `json:"region"`
	Location  *GeoJSONPoint `json:"location,omitempty"`
}

// NameKey is the case-insensitive form used for duplicate checks.
func NameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
