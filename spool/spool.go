// Package spool provides an optional durable job spool backed by Pebble:
// jobs are written to a local keyspace on enqueue and removed on
// acknowledged completion, so an at-least-once delta can be replayed
// after a crash instead of re-scanning the whole triplestore.
package spool

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/deltasync/deltasync/router"
)

// keys are ['J', subject, 0x00, type_name] — matching router.Job.Key(), so
// a later job for the same (subject, type_name) overwrites the prior
// record instead of accumulating a separate one per op, the same way the
// in-memory Queue coalesces on that key regardless of op.
func jobKey(job router.Job) []byte {
	key := []byte{'J'}
	key = append(key, job.Subject...)
	key = append(key, 0)
	key = append(key, job.TypeName...)
	return key
}

type jobRecord struct {
	Op       router.Op `json:"op"`
	Subject  string    `json:"subject"`
	TypeName string    `json:"type_name"`
}

// Spool is a durable, at-least-once record of in-flight jobs.
type Spool struct {
	db *pebble.DB
}

func Open(dir string) (*Spool, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening job spool at %s: %w", dir, err)
	}
	return &Spool{db: db}, nil
}

func (s *Spool) Close() error {
	return s.db.Close()
}

// Append persists job so it survives a crash before it has been
// acknowledged. Appending again for the same (subject, type_name)
// overwrites the prior record regardless of op, matching the coalescing
// semantics of the in-memory queue it backs.
func (s *Spool) Append(job router.Job) error {
	value, err := json.Marshal(jobRecord{Op: job.Op, Subject: job.Subject, TypeName: job.TypeName})
	if err != nil {
		return fmt.Errorf("encoding job record: %w", err)
	}
	if err := s.db.Set(jobKey(job), value, pebble.Sync); err != nil {
		return fmt.Errorf("appending job to spool: %w", err)
	}
	return nil
}

// Ack removes job from the spool once it has been fully processed.
func (s *Spool) Ack(job router.Job) error {
	if err := s.db.Delete(jobKey(job), pebble.Sync); err != nil {
		return fmt.Errorf("acknowledging job in spool: %w", err)
	}
	return nil
}

// Pending returns every job still recorded in the spool, used on startup
// to replay work that was enqueued but never acknowledged before a crash.
func (s *Spool) Pending() ([]router.Job, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{'J'},
		UpperBound: []byte{'K'},
	})
	if err != nil {
		return nil, fmt.Errorf("opening spool iterator: %w", err)
	}
	defer iter.Close()

	var jobs []router.Job
	for iter.First(); iter.Valid(); iter.Next() {
		var rec jobRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue
		}
		jobs = append(jobs, router.Job{Op: rec.Op, Subject: rec.Subject, TypeName: rec.TypeName})
	}
	return jobs, iter.Error()
}
