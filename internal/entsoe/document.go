package entsoe

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rohanswami293875/Entsoe-Generation/internal/pipeline"
)

// psrNames maps ENTSO-E production source type codes to the category
// names used as series columns.
var psrNames = map[string]string{
	"B01": "Biomass",
	"B02": "Fossil Brown coal/Lignite",
	"B03": "Fossil Coal-derived gas",
	"B04": "Fossil Gas",
	"B05": "Fossil Hard coal",
	"B06": "Fossil Oil",
	"B07": "Fossil Oil shale",
	"B08": "Fossil Peat",
	"B09": "Geothermal",
	"B10": "Hydro Pumped Storage",
	"B11": "Hydro Run-of-river and poundage",
	"B12": "Hydro Water Reservoir",
	"B13": "Marine",
	"B14": "Nuclear",
	"B15": "Other renewable",
	"B16": "Solar",
	"B17": "Waste",
	"B18": "Wind Offshore",
	"B19": "Wind Onshore",
	"B20": "Other",
}

// consumptionSuffix marks series reported against the out-domain, i.e.
// plant consumption rather than net generation.
const consumptionSuffix = " - Actual Consumption"

// glMarketDocument mirrors the subset of the GL_MarketDocument schema
// the decoder reads. Element names match any namespace.
type glMarketDocument struct {
	XMLName    xml.Name         `xml:"GL_MarketDocument"`
	TimeSeries []documentSeries `xml:"TimeSeries"`
}

type documentSeries struct {
	InDomain  string           `xml:"inBiddingZone_Domain.mRID"`
	OutDomain string           `xml:"outBiddingZone_Domain.mRID"`
	PSRType   string           `xml:"MktPSRType>psrType"`
	Periods   []documentPeriod `xml:"Period"`
}

type documentPeriod struct {
	Start      string          `xml:"timeInterval>start"`
	Resolution string          `xml:"resolution"`
	Points     []documentPoint `xml:"Point"`
}

type documentPoint struct {
	Position int     `xml:"position"`
	Quantity float64 `xml:"quantity"`
}

// acknowledgementDocument is the platform's answer when a request is
// rejected or matches no data.
type acknowledgementDocument struct {
	XMLName xml.Name `xml:"Acknowledgement_MarketDocument"`
	Reason  struct {
		Code string `xml:"code"`
		Text string `xml:"text"`
	} `xml:"Reason"`
}

// category names the column a series contributes to. Consumption
// series (reported against the out-domain) carry a suffix so they
// never collide with the matching generation column.
func (s documentSeries) category() string {
	name, ok := psrNames[s.PSRType]
	if !ok {
		name = s.PSRType
		if name == "" {
			name = "Unspecified"
		}
	}
	if s.OutDomain != "" {
		return name + consumptionSuffix
	}
	return name
}

// rows flattens the document into timestamp-keyed readings. Categories
// observed at the same instant merge into a single row so downstream
// deduplication operates on whole observations.
func (d *glMarketDocument) rows() ([]pipeline.Row, error) {
	byTS := make(map[time.Time]map[string]float64)
	for _, series := range d.TimeSeries {
		name := series.category()
		for _, period := range series.Periods {
			start, err := parseDocumentTime(period.Start)
			if err != nil {
				return nil, err
			}
			step, err := parseResolution(period.Resolution)
			if err != nil {
				return nil, err
			}
			for _, pt := range period.Points {
				if pt.Position < 1 {
					continue
				}
				at := start.Add(time.Duration(pt.Position-1) * step)
				values, ok := byTS[at]
				if !ok {
					values = make(map[string]float64)
					byTS[at] = values
				}
				values[name] = pt.Quantity
			}
		}
	}

	times := make([]time.Time, 0, len(byTS))
	for at := range byTS {
		times = append(times, at)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	rows := make([]pipeline.Row, len(times))
	for i, at := range times {
		rows[i] = pipeline.Row{TS: at, Values: byTS[at]}
	}
	return rows, nil
}

// parseDocumentTime reads the platform's interval timestamps, which
// come without seconds ("2025-01-01T00:00Z") but occasionally as full
// RFC 3339.
func parseDocumentTime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02T15:04Z07:00", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported interval timestamp %q", s)
}

// parseResolution converts the document's ISO 8601 duration codes into
// point spacing.
func parseResolution(res string) (time.Duration, error) {
	switch res {
	case "PT60M":
		return time.Hour, nil
	case "PT30M":
		return 30 * time.Minute, nil
	case "PT15M":
		return 15 * time.Minute, nil
	case "P1D":
		return 24 * time.Hour, nil
	}
	if strings.HasPrefix(res, "PT") && strings.HasSuffix(res, "M") {
		if n, err := strconv.Atoi(res[2 : len(res)-1]); err == nil && n > 0 {
			return time.Duration(n) * time.Minute, nil
		}
	}
	return 0, fmt.Errorf("unsupported resolution %q", res)
}
