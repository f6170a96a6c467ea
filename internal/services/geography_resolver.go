package services

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"impact-service/internal/models"

	"golang.org/x/text/unicode/norm"
)

type districtNode struct {
	name      string
	subRegion string
	region    string
}

// GeographyResolver answers hierarchy questions over the static geography
// table. It is immutable after construction and safe for concurrent use.
type GeographyResolver struct {
	country       string
	defaultRegion string

	regions         []string
	subRegions      map[string][]string // region -> sub-regions
	districts       map[string][]string // sub-region -> districts
	subRegionParent map[string]string   // sub-region -> region

	byKey          map[string]districtNode // normalised name or alias -> district
	regionByKey    map[string]string
	subRegionByKey map[string]string
}

// NewGeographyResolver indexes table and rejects it if the hierarchy is not
// a strict tree.
func NewGeographyResolver(table *models.GeographyTable) (*GeographyResolver, error) {
	if table == nil {
		return nil, fmt.Errorf("geography table is required")
	}

	r := &GeographyResolver{
		country:         table.Country,
		defaultRegion:   table.DefaultRegion,
		subRegions:      map[string][]string{},
		districts:       map[string][]string{},
		subRegionParent: map[string]string{},
		byKey:           map[string]districtNode{},
		regionByKey:     map[string]string{},
		subRegionByKey:  map[string]string{},
	}
	if r.country == "" {
		r.country = "Country"
	}

	for _, region := range table.Regions {
		regionKey := NormalizePlaceName(region.Name)
		if regionKey == "" {
			return nil, fmt.Errorf("region with empty name")
		}
		if _, dup := r.regionByKey[regionKey]; dup {
			return nil, fmt.Errorf("region %q listed twice", region.Name)
		}
		r.regionByKey[regionKey] = region.Name
		r.regions = append(r.regions, region.Name)

		for _, sub := range region.SubRegions {
			subKey := NormalizePlaceName(sub.Name)
			if subKey == "" {
				return nil, fmt.Errorf("sub-region with empty name under %s", region.Name)
			}
			if parent, dup := r.subRegionParent[r.subRegionByKey[subKey]]; dup {
				return nil, fmt.Errorf("sub-region %q appears under both %s and %s", sub.Name, parent, region.Name)
			}
			r.subRegionByKey[subKey] = sub.Name
			r.subRegionParent[sub.Name] = region.Name
			r.subRegions[region.Name] = append(r.subRegions[region.Name], sub.Name)

			for _, d := range sub.Districts {
				node := districtNode{name: d.Name, subRegion: sub.Name, region: region.Name}
				// an alias may normalise to the district's own key
				own := map[string]bool{}
				for _, name := range append([]string{d.Name}, d.Aliases...) {
					key := NormalizePlaceName(name)
					if key == "" {
						return nil, fmt.Errorf("district with empty name under %s", sub.Name)
					}
					if own[key] {
						continue
					}
					own[key] = true
					if existing, dup := r.byKey[key]; dup {
						return nil, fmt.Errorf("district %q appears under both %s and %s", name, existing.subRegion, sub.Name)
					}
					r.byKey[key] = node
				}
				r.districts[sub.Name] = append(r.districts[sub.Name], d.Name)
			}
		}
	}

	if r.defaultRegion != "" {
		canonical, ok := r.regionByKey[NormalizePlaceName(r.defaultRegion)]
		if !ok {
			return nil, fmt.Errorf("default region %q is not in the table", r.defaultRegion)
		}
		r.defaultRegion = canonical
	}

	sort.Strings(r.regions)
	for k := range r.subRegions {
		sort.Strings(r.subRegions[k])
	}
	for k := range r.districts {
		sort.Strings(r.districts[k])
	}
	return r, nil
}

// NormalizePlaceName folds case, whitespace and diacritics and drops a
// trailing "district" so field-entered names match the table.
func NormalizePlaceName(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(strings.ToLower(strings.TrimSpace(s))) {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r == '-' || r == '_' || r == '.' || unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Join(strings.Fields(b.String()), " ")
	out = strings.TrimSuffix(out, " district")
	return out
}

func (r *GeographyResolver) Country() string { return r.country }

func (r *GeographyResolver) DefaultRegion() string { return r.defaultRegion }

// ResolveRegion returns the region for a district, or false when the
// district is not recognised.
func (r *GeographyResolver) ResolveRegion(district string) (string, bool) {
	node, ok := r.byKey[NormalizePlaceName(district)]
	if !ok {
		return "", false
	}
	return node.region, true
}

func (r *GeographyResolver) ResolveDistrict(district string) (models.DistrictRef, bool) {
	node, ok := r.byKey[NormalizePlaceName(district)]
	if !ok {
		return models.DistrictRef{}, false
	}
	return models.DistrictRef{District: node.name, SubRegion: node.subRegion, Region: node.region, Known: true}, true
}

// Place resolves a district and falls back to the default region when it is
// unknown. The raw district string is kept, tidied, so it still displays.
func (r *GeographyResolver) Place(district string) models.DistrictRef {
	if ref, ok := r.ResolveDistrict(district); ok {
		return ref
	}
	return models.DistrictRef{
		District: strings.Join(strings.Fields(district), " "),
		Region:   r.defaultRegion,
	}
}

// CanonicalDistrict returns the table spelling of a district name.
func (r *GeographyResolver) CanonicalDistrict(name string) (string, bool) {
	node, ok := r.byKey[NormalizePlaceName(name)]
	return node.name, ok
}

func (r *GeographyResolver) CanonicalRegion(name string) (string, bool) {
	v, ok := r.regionByKey[NormalizePlaceName(name)]
	return v, ok
}

func (r *GeographyResolver) CanonicalSubRegion(name string) (string, bool) {
	v, ok := r.subRegionByKey[NormalizePlaceName(name)]
	return v, ok
}

func (r *GeographyResolver) Regions() []string {
	return append([]string(nil), r.regions...)
}

func (r *GeographyResolver) SubRegions(region string) []string {
	canonical, ok := r.CanonicalRegion(region)
	if !ok {
		return []string{}
	}
	return append([]string{}, r.subRegions[canonical]...)
}

func (r *GeographyResolver) Districts(subRegion string) []string {
	canonical, ok := r.CanonicalSubRegion(subRegion)
	if !ok {
		return []string{}
	}
	return append([]string{}, r.districts[canonical]...)
}

func (r *GeographyResolver) DistrictsInRegion(region string) []string {
	out := []string{}
	for _, sub := range r.SubRegions(region) {
		out = append(out, r.districts[sub]...)
	}
	sort.Strings(out)
	return out
}

// RegionOfSubRegion returns the parent region of a sub-region.
func (r *GeographyResolver) RegionOfSubRegion(subRegion string) (string, bool) {
	canonical, ok := r.CanonicalSubRegion(subRegion)
	if !ok {
		return "", false
	}
	return r.subRegionParent[canonical], true
}

// CanonicalScope returns scope with its id replaced by the table spelling.
// School ids are passed through unchanged; the directory decides whether
// they exist.
func (r *GeographyResolver) CanonicalScope(scope models.GeoScope) (models.GeoScope, bool) {
	switch scope.Level {
	case models.GeoLevelCountry:
		return models.GeoScope{Level: models.GeoLevelCountry, ID: r.country}, true
	case models.GeoLevelRegion:
		name, ok := r.CanonicalRegion(scope.ID)
		return models.GeoScope{Level: scope.Level, ID: name}, ok
	case models.GeoLevelSubRegion:
		name, ok := r.CanonicalSubRegion(scope.ID)
		return models.GeoScope{Level: scope.Level, ID: name}, ok
	case models.GeoLevelDistrict:
		name, ok := r.CanonicalDistrict(scope.ID)
		return models.GeoScope{Level: scope.Level, ID: name}, ok
	case models.GeoLevelSchool:
		id := strings.ToUpper(strings.TrimSpace(scope.ID))
		return models.GeoScope{Level: scope.Level, ID: id}, id != ""
	}
	return scope, false
}

// Contains reports whether a placed district falls under a canonical
// region, sub-region or district scope. School scopes are matched by the
// caller.
func (r *GeographyResolver) Contains(scope models.GeoScope, ref models.DistrictRef) bool {
	switch scope.Level {
	case models.GeoLevelCountry:
		return true
	case models.GeoLevelRegion:
		return ref.Region == scope.ID
	case models.GeoLevelSubRegion:
		return ref.Known && ref.SubRegion == scope.ID
	case models.GeoLevelDistrict:
		return ref.Known && ref.District == scope.ID
	}
	return false
}
