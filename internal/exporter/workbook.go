// Package exporter serializes batch results into xlsx workbooks: one
// sheet per assembled series plus a leading README metadata sheet.
package exporter

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rohanswami293875/Entsoe-Generation/internal/pipeline"
)

const (
	// readmeSheet is the leading metadata sheet.
	readmeSheet = "README"

	// maxSheetName is the xlsx sheet name length limit.
	maxSheetName = 31

	// timestampLayout renders the hourly index column.
	timestampLayout = "2006-01-02 15:04:05"
)

// Metadata is an ordered list of key/value pairs for the README sheet.
// Order is preserved so two exports of the same job render identically.
type Metadata struct {
	pairs [][2]string
}

// Add appends one key/value pair.
func (m *Metadata) Add(key, value string) *Metadata {
	m.pairs = append(m.pairs, [2]string{key, value})
	return m
}

// Pairs returns the pairs in insertion order.
func (m *Metadata) Pairs() [][2]string {
	return m.pairs
}

// WriteWorkbook builds the workbook for a batch result: the README sheet
// first, then one sheet per successful non-empty target in the caller's
// target order. Empty series get no sheet but are noted in the README.
// The same result and metadata always produce an identical workbook.
func WriteWorkbook(result *pipeline.BatchResult, meta Metadata) (*excelize.File, error) {
	if result == nil {
		return nil, fmt.Errorf("nil batch result")
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", readmeSheet); err != nil {
		return nil, fmt.Errorf("rename metadata sheet: %w", err)
	}

	for _, label := range result.SucceededLabels() {
		if result.Series[label].Empty() {
			meta.Add("Note", label+": no data returned, sheet omitted")
		}
	}
	for _, label := range result.FailedLabels() {
		meta.Add("Failed", label+": "+result.Failures[label])
	}
	if err := writeReadme(f, meta); err != nil {
		return nil, err
	}

	names := sheetNames(result)
	for _, label := range result.SucceededLabels() {
		series := result.Series[label]
		if series.Empty() {
			continue
		}
		if err := writeSeriesSheet(f, names[label], series); err != nil {
			return nil, fmt.Errorf("write sheet for %s: %w", label, err)
		}
	}

	// The README stays the active sheet.
	idx, err := f.GetSheetIndex(readmeSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	return f, nil
}

// Save writes the workbook to path.
func Save(f *excelize.File, path string) error {
	return f.SaveAs(path)
}

// WriteTo streams the workbook to w.
func WriteTo(f *excelize.File, w io.Writer) error {
	_, err := f.WriteTo(w)
	return err
}

// Filename is the conventional workbook name for one exported job.
func Filename(country string, r pipeline.DateRange) string {
	const day = "2006-01-02"
	name := strings.ReplaceAll(strings.TrimSpace(country), " ", "_")
	if name == "" {
		name = "generation"
	}
	return fmt.Sprintf("%s_generation_%s_to_%s.xlsx",
		name, r.Start.UTC().Format(day), r.End.UTC().Format(day))
}

func writeReadme(f *excelize.File, meta Metadata) error {
	if err := f.SetSheetRow(readmeSheet, "A1", &[]any{"Key", "Value"}); err != nil {
		return fmt.Errorf("write metadata header: %w", err)
	}
	for i, pair := range meta.Pairs() {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(readmeSheet, cell, &[]any{pair[0], pair[1]}); err != nil {
			return fmt.Errorf("write metadata row %d: %w", i+1, err)
		}
	}
	return freezeHeader(f, readmeSheet)
}

func writeSeriesSheet(f *excelize.File, name string, series *pipeline.AssembledSeries) error {
	if _, err := f.NewSheet(name); err != nil {
		return err
	}

	header := make([]any, 0, len(series.Categories)+1)
	header = append(header, "Timestamp")
	for _, c := range series.Categories {
		header = append(header, c)
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return err
	}

	for i, ts := range series.Times {
		row := make([]any, 0, len(series.Categories)+1)
		row = append(row, ts.UTC().Format(timestampLayout))
		for j := range series.Categories {
			v := series.Value(i, j)
			if math.IsNaN(v) {
				row = append(row, nil)
			} else {
				row = append(row, v)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return err
		}
	}

	return freezeHeader(f, name)
}

func freezeHeader(f *excelize.File, sheet string) error {
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		Split:       false,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// sheetNames maps every non-empty successful label to a sanitized,
// collision-free sheet name. Labels are processed in the caller's target
// order so a collision always resolves the same way.
func sheetNames(result *pipeline.BatchResult) map[string]string {
	names := make(map[string]string)
	taken := map[string]struct{}{strings.ToLower(readmeSheet): {}}

	for _, label := range result.SucceededLabels() {
		if result.Series[label].Empty() {
			continue
		}
		base := sanitizeSheetName(label)
		name := base
		for n := 2; ; n++ {
			if _, clash := taken[strings.ToLower(name)]; !clash {
				break
			}
			suffix := fmt.Sprintf(" (%d)", n)
			name = truncate(base, maxSheetName-len(suffix)) + suffix
		}
		taken[strings.ToLower(name)] = struct{}{}
		names[label] = name
	}
	return names
}

// sanitizeSheetName strips the characters xlsx forbids in sheet names
// and trims to the 31-character limit.
func sanitizeSheetName(label string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return -1
		}
		return r
	}, label)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		cleaned = "Sheet"
	}
	return truncate(cleaned, maxSheetName)
}

// truncate trims s to at most n characters, counting runes so a
// multibyte label is never cut mid-rune.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}

// RangeMetadata builds the standard README metadata for one job.
func RangeMetadata(country string, targets []pipeline.Target, r pipeline.DateRange, now time.Time) Metadata {
	labels := make([]string, len(targets))
	for i, t := range targets {
		labels[i] = t.Label
	}

	var meta Metadata
	meta.Add("Country", country).
		Add("Targets", strings.Join(labels, ", ")).
		Add("Start (UTC)", r.Start.UTC().Format(timestampLayout)).
		Add("End (UTC)", r.End.UTC().Format(timestampLayout)).
		Add("Generated (UTC)", now.UTC().Format(timestampLayout)).
		Add("Note", "Hourly mean of actual generation per production type")
	return meta
}
