package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"aegis-hq/sentinel/pkg/evidence"
)

// CSVExporter exports evidence records to CSV format. The JSON payload is
// carried as a single quoted column.
type CSVExporter struct {
	// IncludeHeader includes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{
		IncludeHeader: includeHeader,
	}
}

// Export writes evidence records to the provided writer in CSV format.
func (e *CSVExporter) Export(ctx context.Context, records []*evidence.EvidenceRecord, w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if e.IncludeHeader {
		if err := writer.Write(headerRow()); err != nil {
			return evidence.NewExportError("csv", len(records), err)
		}
	}

	for i, record := range records {
		if err := writer.Write(recordToRow(record)); err != nil {
			return evidence.NewExportError("csv", i, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return evidence.NewExportError("csv", len(records), err)
	}
	return nil
}

func headerRow() []string {
	return []string{
		"sequence", "id", "kind", "correlation_key",
		"recorded_at", "payload", "prev_hash", "hash",
	}
}

func recordToRow(record *evidence.EvidenceRecord) []string {
	return []string{
		strconv.FormatUint(record.Sequence, 10),
		record.ID,
		string(record.Kind),
		record.CorrelationKey,
		record.RecordedAt.Format("2006-01-02T15:04:05.999999999Z07:00"),
		string(record.Payload),
		record.PrevHash,
		record.Hash,
	}
}
