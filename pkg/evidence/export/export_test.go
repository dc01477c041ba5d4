package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"aegis-hq/sentinel/pkg/evidence"
)

func sampleRecords() []*evidence.EvidenceRecord {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []*evidence.EvidenceRecord{
		{
			ID: "rec-1", Sequence: 1, Kind: evidence.KindEvaluation,
			CorrelationKey: "vault-7", RecordedAt: base,
			Payload: []byte(`{"rule":"reserve-freeze"}`), PrevHash: "", Hash: "h1",
		},
		{
			ID: "rec-2", Sequence: 2, Kind: evidence.KindAttempt,
			CorrelationKey: "vault-7", RecordedAt: base.Add(time.Second),
			Payload: []byte(`{"outcome":"success"}`), PrevHash: "h1", Hash: "h2",
		},
	}
}

func TestJSONExport(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONExporter(false).Export(context.Background(), sampleRecords(), &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var decoded []evidence.EvidenceRecord
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded) != 2 || decoded[1].Hash != "h2" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestJSONExport_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONExporter(true).Export(context.Background(), nil, &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if buf.String() != "[]" {
		t.Errorf("empty export = %q, want []", buf.String())
	}
}

func TestCSVExport(t *testing.T) {
	var buf bytes.Buffer
	if err := NewCSVExporter(true).Export(context.Background(), sampleRecords(), &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if rows[0][0] != "sequence" || rows[0][7] != "hash" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[2][0] != "2" || rows[2][2] != "remediation-attempt" || rows[2][5] != `{"outcome":"success"}` {
		t.Errorf("row = %v", rows[2])
	}
}

func TestCSVExport_NoHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := NewCSVExporter(false).Export(context.Background(), sampleRecords(), &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("got %d rows, want 2", len(rows))
	}
}
