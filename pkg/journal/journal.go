package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketRuns  = []byte("runs")
	bucketSteps = []byte("steps")
)

// ErrNotFound is returned when a run or step record does not exist.
var ErrNotFound = errors.New("journal: record not found")

// StepState is the recorded outcome of one provisioning step.
type StepState string

const (
	StepRunning   StepState = "running"
	StepCompleted StepState = "completed"
	StepFailed    StepState = "failed"
	StepSkipped   StepState = "skipped"
)

// Run records one invocation of the provisioning pipeline.
type Run struct {
	ID          string     `json:"id"`
	Fingerprint string     `json:"fingerprint"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Failed      bool       `json:"failed"`
	FailedStep  string     `json:"failed_step,omitempty"`
}

// StepRecord records the latest outcome of a named step.
type StepRecord struct {
	Name        string     `json:"name"`
	RunID       string     `json:"run_id"`
	Fingerprint string     `json:"fingerprint"`
	State       StepState  `json:"state"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Duration    string     `json:"duration,omitempty"`
	Error       string     `json:"error,omitempty"`
	Note        string     `json:"note,omitempty"`
}

// Journal is a bbolt-backed record of provisioning runs and step outcomes.
type Journal struct {
	db *bolt.DB
}

// Open opens (creating if needed) the journal database under stateDir.
func Open(stateDir string) (*Journal, error) {
	if err := os.MkdirAll(stateDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}
	dbPath := filepath.Join(stateDir, "curedeploy.db")

	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketRuns, bucketSteps} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// BeginRun records a new pipeline invocation.
func (j *Journal) BeginRun(run *Run) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		data, err := json.Marshal(run)
		if err != nil {
			return err
		}
		return b.Put([]byte(run.ID), data)
	})
}

// FinishRun upserts the final state of a run.
func (j *Journal) FinishRun(run *Run) error {
	return j.BeginRun(run)
}

// GetRun returns the run with the given ID.
func (j *Journal) GetRun(id string) (*Run, error) {
	var run Run
	err := j.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRuns).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &run)
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns every recorded run.
func (j *Journal) ListRuns() ([]*Run, error) {
	var runs []*Run
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRuns).ForEach(func(k, v []byte) error {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return err
			}
			runs = append(runs, &run)
			return nil
		})
	})
	return runs, err
}

// RecordStep upserts the latest outcome of a named step.
func (j *Journal) RecordStep(rec *StepRecord) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSteps)
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(rec.Name), data)
	})
}

// GetStep returns the latest record for a named step.
func (j *Journal) GetStep(name string) (*StepRecord, error) {
	var rec StepRecord
	err := j.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSteps).Get([]byte(name))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListSteps returns every recorded step outcome.
func (j *Journal) ListSteps() ([]*StepRecord, error) {
	var recs []*StepRecord
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSteps).ForEach(func(k, v []byte) error {
			var rec StepRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			recs = append(recs, &rec)
			return nil
		})
	})
	return recs, err
}

// Completed reports whether the named step finished successfully under the
// given config fingerprint. Used by --resume to skip settled steps.
func (j *Journal) Completed(name, fingerprint string) (bool, error) {
	rec, err := j.GetStep(name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.State == StepCompleted && rec.Fingerprint == fingerprint, nil
}
