package database

import "github.com/TobiSchelling/nexuscds/internal/triage"

// TriageRecord is one completed triage interaction.
type TriageRecord struct {
	ID          int64
	Timestamp   string // minute granularity, see TimestampLayout
	PatientID   string
	Symptoms    string // narrative as entered
	Brief       string // full pipeline report
	Confidence  int
	TriageLevel triage.Level
	PDFBlob     []byte
}

// RecordSummary is a TriageRecord without its text and PDF, for listings.
type RecordSummary struct {
	ID          int64
	Timestamp   string
	PatientID   string
	TriageLevel triage.Level
	Confidence  int
}

// PDFDocument is the stored PDF of a record.
type PDFDocument struct {
	ID        int64
	PatientID string
	Timestamp string
	Blob      []byte
}

// TrendRow feeds the analytics view.
type TrendRow struct {
	Timestamp   string
	TriageLevel triage.Level
	Confidence  int
}

// ListFilter narrows ListRecords. Zero values mean no filtering.
type ListFilter struct {
	Level     triage.Level
	PatientID string // substring match
	Limit     int
}

// Stats contains overall store statistics.
type Stats struct {
	Total         int
	Red           int
	Yellow        int
	Green         int
	AvgConfidence float64
	LastRecordAt  *string
}
