package entsoe

import (
	"fmt"
	"strings"

	"github.com/rohanswami293875/Entsoe-Generation/internal/pipeline"
)

// Country describes one selectable market area: its bidding zones in
// display order plus the aggregate domain covering the whole country.
// Zone entries are either short area codes (SE_1, DK_2) or raw EIC
// identifiers where the short code is ambiguous upstream (the Italian
// zones).
type Country struct {
	Name  string   `json:"name"`
	Total string   `json:"total"`
	Zones []string `json:"zones"`
}

// catalog lists the supported countries in menu order. Single-zone
// countries reuse the aggregate domain as their only zone.
var catalog = []Country{
	{
		Name:  "Italy",
		Total: "IT",
		Zones: []string{
			"10Y1001A1001A70O", // IT_CNOR
			"10Y1001A1001A71M", // IT_CSUD
			"10Y1001A1001A788", // IT_SUD
			"10Y1001C--00096J", // IT_CALA
			"10Y1001A1001A74G", // IT_SARD
			"10Y1001A1001A73I", // IT_NORD
			"10Y1001A1001A75E", // IT_SICI
		},
	},
	{Name: "Sweden", Total: "SE", Zones: []string{"SE_1", "SE_2", "SE_3", "SE_4"}},
	{Name: "Norway", Total: "NO", Zones: []string{"NO_1", "NO_2", "NO_3", "NO_4", "NO_5"}},
	{Name: "Denmark", Total: "DK", Zones: []string{"DK_1", "DK_2"}},
	{Name: "France", Total: "FR", Zones: []string{"FR"}},
	{Name: "Germany-Luxembourg (DE-LU)", Total: "DE_LU", Zones: []string{"DE_LU"}},
	{Name: "Spain", Total: "ES", Zones: []string{"ES"}},
	{Name: "Portugal", Total: "PT", Zones: []string{"PT"}},
	{Name: "Netherlands", Total: "NL", Zones: []string{"NL"}},
	{Name: "Belgium", Total: "BE", Zones: []string{"BE"}},
	{Name: "Austria", Total: "AT", Zones: []string{"AT"}},
	{Name: "Poland", Total: "PL", Zones: []string{"PL"}},
	{Name: "Czech", Total: "CZ", Zones: []string{"CZ"}},
	{Name: "Slovakia", Total: "SK", Zones: []string{"SK"}},
	{Name: "Slovenia", Total: "SI", Zones: []string{"SI"}},
	{Name: "Hungary", Total: "HU", Zones: []string{"HU"}},
	{Name: "Greece", Total: "GR", Zones: []string{"GR"}},
	{Name: "Romania", Total: "RO", Zones: []string{"RO"}},
	{Name: "Bulgaria", Total: "BG", Zones: []string{"BG"}},
	{Name: "Croatia", Total: "HR", Zones: []string{"HR"}},
	{Name: "Finland", Total: "FI", Zones: []string{"FI"}},
	{Name: "Estonia", Total: "EE", Zones: []string{"EE"}},
	{Name: "Latvia", Total: "LV", Zones: []string{"LV"}},
	{Name: "Lithuania", Total: "LT", Zones: []string{"LT"}},
	{Name: "Switzerland", Total: "CH", Zones: []string{"CH"}},
	{Name: "Ireland", Total: "IE", Zones: []string{"IE"}},
}

// countryAliases maps common alternative spellings to catalog names.
var countryAliases = map[string]string{
	"germany":            "Germany-Luxembourg (DE-LU)",
	"germany-luxembourg": "Germany-Luxembourg (DE-LU)",
	"luxembourg":         "Germany-Luxembourg (DE-LU)",
	"czechia":            "Czech",
	"czech republic":     "Czech",
}

// eicDomains resolves every known area code to its EIC domain
// identifier. Zones that are already expressed as EICs map to
// themselves.
var eicDomains = map[string]string{
	"AT":    "10YAT-APG------L",
	"BE":    "10YBE----------2",
	"BG":    "10YCA-BULGARIA-R",
	"CH":    "10YCH-SWISSGRIDZ",
	"CZ":    "10YCZ-CEPS-----N",
	"DE_LU": "10Y1001A1001A82H",
	"DK":    "10Y1001A1001A65H",
	"DK_1":  "10YDK-1--------W",
	"DK_2":  "10YDK-2--------M",
	"EE":    "10Y1001A1001A39I",
	"ES":    "10YES-REE------0",
	"FI":    "10YFI-1--------U",
	"FR":    "10YFR-RTE------C",
	"GR":    "10YGR-HTSO-----Y",
	"HR":    "10YHR-HEP------M",
	"HU":    "10YHU-MAVIR----U",
	"IE":    "10YIE-1001A00010",
	"IT":    "10YIT-GRTN-----B",
	"LT":    "10YLT-1001A0008Q",
	"LV":    "10YLV-1001A00074",
	"NL":    "10YNL----------L",
	"NO":    "10YNO-0--------C",
	"NO_1":  "10YNO-1--------2",
	"NO_2":  "10YNO-2--------T",
	"NO_3":  "10YNO-3--------J",
	"NO_4":  "10YNO-4--------9",
	"NO_5":  "10Y1001A1001A48H",
	"PL":    "10YPL-AREA-----S",
	"PT":    "10YPT-REN------W",
	"RO":    "10YRO-TEL------P",
	"SE":    "10YSE-1--------K",
	"SE_1":  "10Y1001A1001A44P",
	"SE_2":  "10Y1001A1001A45N",
	"SE_3":  "10Y1001A1001A46L",
	"SE_4":  "10Y1001A1001A47J",
	"SI":    "10YSI-ELES-----O",
	"SK":    "10YSK-SEPS-----K",

	// Italian bidding zones, addressed by EIC directly.
	"10Y1001A1001A70O": "10Y1001A1001A70O",
	"10Y1001A1001A71M": "10Y1001A1001A71M",
	"10Y1001A1001A788": "10Y1001A1001A788",
	"10Y1001C--00096J": "10Y1001C--00096J",
	"10Y1001A1001A74G": "10Y1001A1001A74G",
	"10Y1001A1001A73I": "10Y1001A1001A73I",
	"10Y1001A1001A75E": "10Y1001A1001A75E",
}

// zoneLabels gives display labels for zone and aggregate codes. Codes
// without an entry label as themselves.
var zoneLabels = map[string]string{
	"10Y1001A1001A70O": "IT_CNOR",
	"10Y1001A1001A71M": "IT_CSUD",
	"10Y1001A1001A788": "IT_SUD",
	"10Y1001C--00096J": "IT_CALA",
	"10Y1001A1001A74G": "IT_SARD",
	"10Y1001A1001A73I": "IT_NORD",
	"10Y1001A1001A75E": "IT_SICI",

	"SE_1": "SE1",
	"SE_2": "SE2",
	"SE_3": "SE3",
	"SE_4": "SE4",

	"NO_1": "NO1",
	"NO_2": "NO2",
	"NO_3": "NO3",
	"NO_4": "NO4",
	"NO_5": "NO5",

	"DK_1": "DK1",
	"DK_2": "DK2",

	"IT":    "Italy (Total)",
	"SE":    "Sweden (Total)",
	"NO":    "Norway (Total)",
	"DK":    "Denmark (Total)",
	"FR":    "France (Total)",
	"DE_LU": "Germany-Lux (Total)",
	"ES":    "Spain (Total)",
	"PT":    "Portugal (Total)",
	"NL":    "Netherlands (Total)",
	"BE":    "Belgium (Total)",
	"AT":    "Austria (Total)",
	"PL":    "Poland (Total)",
	"CZ":    "Czech (Total)",
	"SK":    "Slovakia (Total)",
	"SI":    "Slovenia (Total)",
	"HU":    "Hungary (Total)",
	"GR":    "Greece (Total)",
	"RO":    "Romania (Total)",
	"BG":    "Bulgaria (Total)",
	"HR":    "Croatia (Total)",
	"FI":    "Finland (Total)",
	"EE":    "Estonia (Total)",
	"LV":    "Latvia (Total)",
	"LT":    "Lithuania (Total)",
	"CH":    "Switzerland (Total)",
	"IE":    "Ireland (Total)",
}

var countryIndex = buildCountryIndex()

func buildCountryIndex() map[string]int {
	idx := make(map[string]int, len(catalog)+len(countryAliases))
	for i, c := range catalog {
		idx[strings.ToLower(c.Name)] = i
	}
	for alias, name := range countryAliases {
		if i, ok := idx[strings.ToLower(name)]; ok {
			idx[alias] = i
		}
	}
	return idx
}

// Countries returns the catalog in menu order.
func Countries() []Country {
	out := make([]Country, len(catalog))
	for i, c := range catalog {
		out[i] = c
		out[i].Zones = append([]string(nil), c.Zones...)
	}
	return out
}

// CountryNames returns the catalog country names in menu order.
func CountryNames() []string {
	names := make([]string, len(catalog))
	for i, c := range catalog {
		names[i] = c.Name
	}
	return names
}

// FindCountry looks a country up by name, case-insensitively. Common
// alternative spellings (Germany, Czechia) resolve to their catalog
// entry.
func FindCountry(name string) (Country, bool) {
	i, ok := countryIndex[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Country{}, false
	}
	c := catalog[i]
	c.Zones = append([]string(nil), c.Zones...)
	return c, true
}

// ZoneLabel returns the display label for a zone or aggregate code.
// Unknown codes label as themselves.
func ZoneLabel(code string) string {
	if lbl, ok := zoneLabels[code]; ok {
		return lbl
	}
	return code
}

// ResolveTargets expands a country selection into fetch targets. When
// zones is empty every catalog zone is used, otherwise the requested
// zones are kept in request order after checking they belong to the
// country. The aggregate domain is appended when includeTotal is set.
// Duplicate domains collapse to their first occurrence.
func ResolveTargets(country string, zones []string, includeTotal bool) ([]pipeline.Target, error) {
	c, ok := FindCountry(country)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownCountry, country)
	}

	selected := c.Zones
	if len(zones) > 0 {
		members := make(map[string]struct{}, len(c.Zones))
		for _, z := range c.Zones {
			members[z] = struct{}{}
		}
		selected = make([]string, 0, len(zones))
		for _, z := range zones {
			if _, ok := members[z]; !ok {
				return nil, &UnknownTargetError{Code: z}
			}
			selected = append(selected, z)
		}
	}

	codes := selected
	if includeTotal {
		codes = append(append([]string(nil), selected...), c.Total)
	}

	seen := make(map[string]struct{}, len(codes))
	targets := make([]pipeline.Target, 0, len(codes))
	for _, code := range codes {
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		targets = append(targets, pipeline.Target{Domain: code, Label: ZoneLabel(code)})
	}
	return targets, nil
}

// ResolveDomain maps an area code to the EIC domain identifier the API
// expects. Raw EIC codes outside the catalog pass through untouched so
// callers can address zones the menu does not list.
func ResolveDomain(code string) (string, error) {
	if eic, ok := eicDomains[code]; ok {
		return eic, nil
	}
	if looksLikeEIC(code) {
		return code, nil
	}
	return "", &UnknownTargetError{Code: code}
}

// Resolver adapts the catalog lookup to the pipeline's resolver
// interface.
type Resolver struct{}

var _ pipeline.DomainResolver = Resolver{}

func (Resolver) ResolveDomain(code string) (string, error) {
	return ResolveDomain(code)
}

// looksLikeEIC reports whether code has the shape of an EIC area
// identifier: 16 characters with the 10Y area prefix.
func looksLikeEIC(code string) bool {
	return len(code) == 16 && strings.HasPrefix(code, "10Y")
}
