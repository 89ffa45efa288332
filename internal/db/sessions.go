package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/drowsiness.monitor/internal/drowsiness"
)

// ErrSessionNotFound is returned when a session ID does not exist.
var ErrSessionNotFound = errors.New("session not found")

// SessionRecord is one monitoring run.
type SessionRecord struct {
	ID        string          `json:"session_id"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
	Config    json.RawMessage `json:"config"`
	Notes     string          `json:"notes,omitempty"`
}

// Transition is a change of severity level.
type Transition struct {
	SessionID string           `json:"session_id"`
	At        time.Time        `json:"at"`
	From      drowsiness.Level `json:"from"`
	To        drowsiness.Level `json:"to"`
	Cause     drowsiness.Cause `json:"cause"`
	ElapsedMS int64            `json:"elapsed_ms"`
}

// Sample is a periodic snapshot of the per-frame signals.
type Sample struct {
	SessionID string           `json:"session_id"`
	Seq       uint64           `json:"seq"`
	At        time.Time        `json:"at"`
	EAR       float64          `json:"ear"`
	Droop     float64          `json:"droop"`
	Deviation float64          `json:"deviation"`
	Face      bool             `json:"face"`
	Level     drowsiness.Level `json:"level"`
	Code      string           `json:"code"`
	Sent      bool             `json:"sent"`
}

// CalibrationRecord is an applied baseline.
type CalibrationRecord struct {
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
	Baseline  float64   `json:"baseline"`
}

// sqlLimit maps limit <= 0 to SQLite's "no limit".
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

// StartSession creates a session row with a fresh ID. cfgJSON is the
// effective configuration, stored verbatim.
func (db *DB) StartSession(startedAt time.Time, cfgJSON []byte, notes string) (string, error) {
	if len(cfgJSON) == 0 {
		cfgJSON = []byte("{}")
	}
	if !json.Valid(cfgJSON) {
		return "", fmt.Errorf("session config is not valid JSON")
	}
	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, started_at, config_json, notes) VALUES (?, ?, ?, ?)`,
		id, toUnix(startedAt), string(cfgJSON), notes,
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

// EndSession stamps the session's end time.
func (db *DB) EndSession(id string, endedAt time.Time) error {
	res, err := db.Exec(`UPDATE sessions SET ended_at = ? WHERE session_id = ?`, toUnix(endedAt), id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func scanSession(row interface{ Scan(...any) error }) (SessionRecord, error) {
	var (
		s       SessionRecord
		started float64
		ended   sql.NullFloat64
		cfg     string
	)
	if err := row.Scan(&s.ID, &started, &ended, &cfg, &s.Notes); err != nil {
		return s, err
	}
	s.StartedAt = fromUnix(started)
	if ended.Valid {
		t := fromUnix(ended.Float64)
		s.EndedAt = &t
	}
	s.Config = json.RawMessage(cfg)
	return s, nil
}

// Session returns one session by ID.
func (db *DB) Session(id string) (SessionRecord, error) {
	row := db.QueryRow(`SELECT session_id, started_at, ended_at, config_json, notes FROM sessions WHERE session_id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrSessionNotFound
	}
	return s, err
}

// Sessions returns the most recent sessions, newest first.
func (db *DB) Sessions(limit int) ([]SessionRecord, error) {
	rows, err := db.Query(`SELECT session_id, started_at, ended_at, config_json, notes
		FROM sessions ORDER BY started_at DESC LIMIT ?`, sqlLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RecordCalibration stores an applied baseline.
func (db *DB) RecordCalibration(c CalibrationRecord) error {
	_, err := db.Exec(`INSERT INTO calibrations (session_id, at, baseline) VALUES (?, ?, ?)`,
		c.SessionID, toUnix(c.At), c.Baseline)
	return err
}

// Calibrations returns a session's calibrations in order.
func (db *DB) Calibrations(sessionID string) ([]CalibrationRecord, error) {
	rows, err := db.Query(`SELECT at, baseline FROM calibrations WHERE session_id = ? ORDER BY at, calibration_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CalibrationRecord
	for rows.Next() {
		var at float64
		c := CalibrationRecord{SessionID: sessionID}
		if err := rows.Scan(&at, &c.Baseline); err != nil {
			return nil, err
		}
		c.At = fromUnix(at)
		out = append(out, c)
	}
	return out, rows.Err()
}

// RecordTransition stores a level change.
func (db *DB) RecordTransition(t Transition) error {
	_, err := db.Exec(
		`INSERT INTO level_transitions (session_id, at, from_level, to_level, cause, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.SessionID, toUnix(t.At), t.From.String(), t.To.String(), string(t.Cause), t.ElapsedMS,
	)
	return err
}

// Transitions returns the latest limit transitions of a session in
// chronological order. limit <= 0 returns all of them.
func (db *DB) Transitions(sessionID string, limit int) ([]Transition, error) {
	rows, err := db.Query(`SELECT at, from_level, to_level, cause, elapsed_ms FROM (
			SELECT transition_id, at, from_level, to_level, cause, elapsed_ms
			FROM level_transitions WHERE session_id = ?
			ORDER BY at DESC, transition_id DESC LIMIT ?
		) ORDER BY at, transition_id`, sessionID, sqlLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var (
			at       float64
			from, to string
			cause    string
		)
		t := Transition{SessionID: sessionID}
		if err := rows.Scan(&at, &from, &to, &cause, &t.ElapsedMS); err != nil {
			return nil, err
		}
		t.At = fromUnix(at)
		if t.From, err = drowsiness.ParseLevel(from); err != nil {
			return nil, err
		}
		if t.To, err = drowsiness.ParseLevel(to); err != nil {
			return nil, err
		}
		t.Cause = drowsiness.Cause(cause)
		out = append(out, t)
	}
	return out, rows.Err()
}

// RecordSample stores a frame sample.
func (db *DB) RecordSample(s Sample) error {
	_, err := db.Exec(
		`INSERT INTO frame_samples (session_id, seq, at, ear, droop, deviation, face, level, code, sent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.SessionID, int64(s.Seq), toUnix(s.At), s.EAR, s.Droop, s.Deviation,
		s.Face, s.Level.String(), s.Code, s.Sent,
	)
	return err
}

// Samples returns the latest limit samples of a session in chronological
// order. limit <= 0 returns all of them.
func (db *DB) Samples(sessionID string, limit int) ([]Sample, error) {
	rows, err := db.Query(`SELECT seq, at, ear, droop, deviation, face, level, code, sent FROM (
			SELECT sample_id, seq, at, ear, droop, deviation, face, level, code, sent
			FROM frame_samples WHERE session_id = ?
			ORDER BY at DESC, sample_id DESC LIMIT ?
		) ORDER BY at, sample_id`, sessionID, sqlLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var (
			seq   int64
			at    float64
			level string
		)
		s := Sample{SessionID: sessionID}
		if err := rows.Scan(&seq, &at, &s.EAR, &s.Droop, &s.Deviation, &s.Face, &level, &s.Code, &s.Sent); err != nil {
			return nil, err
		}
		s.Seq = uint64(seq)
		s.At = fromUnix(at)
		if s.Level, err = drowsiness.ParseLevel(level); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
