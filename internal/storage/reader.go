package storage

import (
	"fmt"
	"strings"
	"time"
)

// A SignalOption narrows a Signals query.
type SignalOption func(*signalQuery)

// WithTimeRange restricts a signal query to [start, end).
func WithTimeRange(start, end time.Time) SignalOption {
	return func(q *signalQuery) {
		q.start = &start
		q.end = &end
	}
}

// WithFreqRange restricts a signal query to [minFreq, maxFreq].
func WithFreqRange(minFreq, maxFreq float64) SignalOption {
	return func(q *signalQuery) {
		q.minFreq = &minFreq
		q.maxFreq = &maxFreq
	}
}

// WithDevice restricts a signal query to one device.
func WithDevice(deviceID string) SignalOption {
	return func(q *signalQuery) {
		q.device = &deviceID
	}
}

type signalQuery struct {
	start, end       *time.Time
	minFreq, maxFreq *float64
	device           *string
}

func (q *signalQuery) build() (string, []any) {
	var clauses []string
	var args []any

	if q.start != nil {
		clauses = append(clauses, "time >= ?", "time < ?")
		args = append(args, q.start.UTC(), q.end.UTC())
	}
	if q.minFreq != nil {
		clauses = append(clauses, "frequency >= ?", "frequency <= ?")
		args = append(args, *q.minFreq, *q.maxFreq)
	}
	if q.device != nil {
		clauses = append(clauses, "device_id = ?")
		args = append(args, *q.device)
	}

	query := selectSignalsSQL
	if len(clauses) > 0 {
		query += "\nWHERE " + strings.Join(clauses, " AND ")
	}
	return query + "\nORDER BY time", args
}

// Sessions returns all sessions ordered by start time.
func (s *Store) Sessions() (sessions []SessionData, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.Query(selectSessionsSQL + "\nORDER BY start_time")
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer func() {
		if cErr := rows.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", cErr)
		}
	}()

	for rows.Next() {
		var sess SessionData
		if err = rows.Scan(&sess.ID, &sess.RunID, &sess.StartTime, &sess.DeviceID, &sess.Config); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Signals returns stored detections matching the given filters, ordered
// by time.
func (s *Store) Signals(options ...SignalOption) (signals []SignalRecord, err error) {
	var q signalQuery
	for _, option := range options {
		option(&q)
	}

	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	query, args := q.build()
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying signals: %w", err)
	}
	defer func() {
		if cErr := rows.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", cErr)
		}
	}()

	for rows.Next() {
		var rec SignalRecord
		var durationUS int64
		if err = rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.DeviceID,
			&rec.Time,
			&durationUS,
			&rec.Frequency,
			&rec.Bandwidth,
			&rec.MinDBW,
			&rec.MaxDBW,
			&rec.AvgDBW,
			&rec.StdDB,
			&rec.NoiseDBW,
			&rec.SNRDB,
		); err != nil {
			return nil, fmt.Errorf("scanning signal: %w", err)
		}
		rec.Duration = time.Duration(durationUS) * time.Microsecond
		signals = append(signals, rec)
	}
	return signals, rows.Err()
}
