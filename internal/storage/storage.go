// Package storage is the append-only SQLite record of detections: one
// session row per device per run, plus signal and match rows as they are
// emitted. Writes and reads use separate lazily opened connections so a
// renderer can follow a live database.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/anhofmann/radio-tracking/internal/tracking"
)

// Store handles database operations.
type Store struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// New creates a store for the given database path. Connections open on
// first use.
func New(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("storage: empty database path")
	}
	return &Store{dbPath: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(schemaSQL)
	return err
}

func (s *Store) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", s.dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
		if err != nil {
			s.writeDBErr = err
			return
		}

		if err = initSchema(db); err != nil {
			_ = db.Close()
			s.writeDBErr = err
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *Store) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", s.dbPath+"?mode=ro")
		if err != nil {
			s.readDBErr = err
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

// CreateSession creates a session for one device within a run and returns
// its ID. Config can be a string, []byte or any JSON-serializable value.
func (s *Store) CreateSession(runID, deviceID string, config any) (sessionID int64, err error) {
	var configData sql.NullString

	if config != nil {
		switch v := config.(type) {
		case string:
			configData.Valid = true
			configData.String = v

		case []byte:
			configData.Valid = true
			configData.String = string(v)

		default:
			var p []byte
			if p, err = json.Marshal(config); err != nil {
				err = fmt.Errorf("marshaling config: %w", err)
				return
			}

			configData.Valid = true
			configData.String = string(p)
		}
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	result, err := db.Exec(insertSessionSQL, runID, deviceID, configData)
	if err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	return result.LastInsertId()
}

// InsertSignal appends one detection row.
func (s *Store) InsertSignal(sessionID int64, sig tracking.Signal) error {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	_, err = db.Exec(insertSignalSQL,
		sessionID,
		sig.Device,
		sig.Time.UTC(),
		sig.Duration.Microseconds(),
		sig.Frequency,
		sig.Bandwidth,
		sig.MinDBW,
		sig.MaxDBW,
		sig.AvgDBW,
		sig.StdDB,
		sig.NoiseDBW,
		sig.SNRDB,
	)
	if err != nil {
		return fmt.Errorf("inserting signal: %w", err)
	}
	return nil
}

// InsertMatch appends a matched group and its members in one transaction.
func (s *Store) InsertMatch(sessionID int64, m *tracking.MatchedSignal) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.Exec(insertMatchSQL,
		sessionID,
		m.Time().UTC(),
		m.Duration().Microseconds(),
		m.Frequency(),
		len(m.Members),
	)
	if err != nil {
		return fmt.Errorf("inserting match: %w", err)
	}

	matchID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading match id: %w", err)
	}

	for _, member := range m.Members {
		if _, err = tx.Exec(insertMatchMemberSQL,
			matchID,
			member.Device,
			member.Time.UTC(),
			member.Duration.Microseconds(),
			member.Frequency,
			member.SNRDB,
		); err != nil {
			return fmt.Errorf("inserting match member: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Close closes the database connections. Safe to call multiple times.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		var errs []error

		if s.writeDB != nil {
			if err := s.writeDB.Close(); err != nil {
				errs = append(errs, err)
			}
			s.writeDB = nil
		}

		if s.readDB != nil {
			if err := s.readDB.Close(); err != nil {
				errs = append(errs, err)
			}
			s.readDB = nil
		}

		s.closeErr = errors.Join(errs...)
	})

	return s.closeErr
}
