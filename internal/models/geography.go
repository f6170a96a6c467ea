package models

// GeographyTable is the static region > sub-region > district reference
// data, loaded once at start-up.
type GeographyTable struct {
	Country       string        `yaml:"country" json:"country"`
	DefaultRegion string        `yaml:"defaultRegion" json:"defaultRegion"`
	Regions       []RegionEntry `yaml:"regions" json:"regions"`
}

type RegionEntry struct {
	Name       string           `yaml:"name" json:"name"`
	SubRegions []SubRegionEntry `yaml:"subRegions" json:"subRegions"`
}

type SubRegionEntry struct {
	Name      string          `yaml:"name" json:"name"`
	Districts []DistrictEntry `yaml:"districts" json:"districts"`
}

type DistrictEntry struct {
	Name    string   `yaml:"name" json:"name"`
	Aliases []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// DistrictRef is a district with its ancestors. SubRegion is empty when the
// district could not be resolved and Region holds the fallback region.
type DistrictRef struct {
	District  string `json:"district"`
	SubRegion string `json:"subRegion"`
	Region    string `json:"region"`
	Known     bool   `json:"-"`
}

// GeoScope is the aggregation key.
type GeoScope struct {
	Level GeoLevel `json:"level"`
	ID    string   `json:"id"`
}
