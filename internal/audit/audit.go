// Package audit provides a persistent log of served predictions using
// BoltDB. Records are stored under task_timestamp keys for time-ordered
// range scans. The store is optional: a nil *Store is a no-op, so the
// serving path never branches on whether auditing is configured.
package audit

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const predictionsBucket = "predictions"

// Record is one served prediction.
type Record struct {
	Task      string    `json:"task"`
	Output    string    `json:"output"`
	LatencyMS float64   `json:"latency_ms"`
	At        time.Time `json:"at"`
}

// Store wraps the BoltDB handle.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the audit database under dataPath.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "credit-audit.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create predictions bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database. Safe on a nil store.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// LogPrediction appends a record. No-op on a nil store.
func (s *Store) LogPrediction(rec Record) error {
	if s == nil || s.db == nil {
		return nil
	}
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}

		key := fmt.Sprintf("%s_%d", rec.Task, rec.At.UnixNano())
		return b.Put([]byte(key), data)
	})
}

// Recent returns up to limit records, newest first by key order.
func (s *Store) Recent(limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var records []Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()
		for k, v := c.Last(); k != nil && len(records) < limit; k, v = c.Prev() {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal record: %w", err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
