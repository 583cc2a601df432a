package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Metric is a single name/value pair in a summary report. Order matters:
// renderers must emit metrics exactly as computed.
type Metric struct {
	Name  string
	Value string
}

// Summary is the renderable form of a generated report.
type Summary struct {
	Title   string
	Metrics []Metric
}

// Header row for every summary file, matching the legacy report layout.
var summaryHeader = []string{"Metric", "Value"}

// CSVExporter renders summaries into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the summary, one row per metric.
func (e *CSVExporter) Render(s Summary) ([]byte, error) {
	if len(s.Metrics) == 0 {
		return nil, fmt.Errorf("summary has no metrics")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(summaryHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, m := range s.Metrics {
		if err := writer.Write([]string{m.Name, m.Value}); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseCSV reads a rendered summary back into ordered metrics. Used when
// serving previously generated files and in round-trip verification.
func ParseCSV(data []byte) ([]Metric, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse summary csv: %w", err)
	}
	if len(records) == 0 || len(records[0]) != 2 || records[0][0] != summaryHeader[0] || records[0][1] != summaryHeader[1] {
		return nil, fmt.Errorf("summary csv missing Metric,Value header")
	}
	metrics := make([]Metric, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) != 2 {
			return nil, fmt.Errorf("summary csv row has %d columns", len(rec))
		}
		metrics = append(metrics, Metric{Name: rec[0], Value: rec[1]})
	}
	return metrics, nil
}
