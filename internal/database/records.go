package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/TobiSchelling/nexuscds/internal/triage"
)

// AppendRecord inserts r and returns its new ID. r.ID is ignored.
func (db *DB) AppendRecord(r *TriageRecord) (int64, error) {
	if !r.TriageLevel.Valid() {
		return 0, fmt.Errorf("invalid triage level %q", r.TriageLevel)
	}
	result, err := db.conn.Exec(
		`INSERT INTO triage_logs
		(timestamp, patient_id, symptoms, brief, confidence, triage_level, pdf_blob)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Timestamp, r.PatientID, r.Symptoms, r.Brief, r.Confidence, string(r.TriageLevel), r.PDFBlob,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListRecords returns record summaries, newest first.
func (db *DB) ListRecords(f ListFilter) ([]RecordSummary, error) {
	var (
		where []string
		args  []any
	)
	if f.Level != "" {
		where = append(where, "triage_level = ?")
		args = append(args, string(f.Level))
	}
	if p := strings.TrimSpace(f.PatientID); p != "" {
		where = append(where, "instr(COALESCE(patient_id, ''), ?) > 0")
		args = append(args, p)
	}

	query := `SELECT id, COALESCE(timestamp, ''), COALESCE(patient_id, ''),
		COALESCE(triage_level, ''), COALESCE(confidence, 0) FROM triage_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RecordSummary
	for rows.Next() {
		var s RecordSummary
		var level string
		if err := rows.Scan(&s.ID, &s.Timestamp, &s.PatientID, &level, &s.Confidence); err != nil {
			return nil, err
		}
		s.TriageLevel = triage.Level(level)
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetRecord returns the full record, or nil if id does not exist.
func (db *DB) GetRecord(id int64) (*TriageRecord, error) {
	row := db.conn.QueryRow(
		`SELECT id, COALESCE(timestamp, ''), COALESCE(patient_id, ''), COALESCE(symptoms, ''),
		COALESCE(brief, ''), COALESCE(confidence, 0), COALESCE(triage_level, ''), pdf_blob
		FROM triage_logs WHERE id = ?`, id,
	)

	var r TriageRecord
	var level string
	if err := row.Scan(&r.ID, &r.Timestamp, &r.PatientID, &r.Symptoms,
		&r.Brief, &r.Confidence, &level, &r.PDFBlob); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	r.TriageLevel = triage.Level(level)
	return &r, nil
}

// FetchPDF returns the stored PDF for id, or nil if id does not exist.
func (db *DB) FetchPDF(id int64) (*PDFDocument, error) {
	row := db.conn.QueryRow(
		"SELECT id, COALESCE(patient_id, ''), COALESCE(timestamp, ''), pdf_blob FROM triage_logs WHERE id = ?", id,
	)

	var d PDFDocument
	if err := row.Scan(&d.ID, &d.PatientID, &d.Timestamp, &d.Blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// AllTrendRows returns timestamp, level and confidence of every record in
// insertion order.
func (db *DB) AllTrendRows() ([]TrendRow, error) {
	rows, err := db.conn.Query(
		`SELECT COALESCE(timestamp, ''), COALESCE(triage_level, ''), COALESCE(confidence, 0)
		FROM triage_logs ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TrendRow
	for rows.Next() {
		var r TrendRow
		var level string
		if err := rows.Scan(&r.Timestamp, &level, &r.Confidence); err != nil {
			return nil, err
		}
		r.TriageLevel = triage.Level(level)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetStats returns record counts per level and the average confidence.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM triage_logs", &s.Total},
		{"SELECT COUNT(*) FROM triage_logs WHERE triage_level = 'Red'", &s.Red},
		{"SELECT COUNT(*) FROM triage_logs WHERE triage_level = 'Yellow'", &s.Yellow},
		{"SELECT COUNT(*) FROM triage_logs WHERE triage_level = 'Green'", &s.Green},
	}
	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	if err := db.conn.QueryRow(
		"SELECT COALESCE(AVG(confidence), 0), MAX(timestamp) FROM triage_logs",
	).Scan(&s.AvgConfidence, &s.LastRecordAt); err != nil {
		return nil, err
	}

	return s, nil
}
