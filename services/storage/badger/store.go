// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/AleutianAI/AleutianVeracity/services/belief"
	"github.com/dgraph-io/badger/v4"
)

// Key layout:
//
//	assessment/<run-id>            -> JSON assessment record
//	assessment_ts/<unixnano>/<id>  -> run-id (listing index, reverse-chron)
const (
	assessmentPrefix = "assessment/"
	timeIndexPrefix  = "assessment_ts/"
)

// ErrNotFound is returned for lookups of unknown run IDs.
var ErrNotFound = errors.New("assessment not found")

// Store persists assessment records in BadgerDB.
//
// Thread Safety: safe for concurrent use.
type Store struct {
	db *badger.DB
	gc *GCRunner
}

// NewStore opens a store with the given configuration and starts the
// GC runner when one is configured.
func NewStore(cfg Config) (*Store, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		runner, err := NewGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create GC runner: %w", err)
		}
		s.gc = runner
		runner.Start()
	}
	return s, nil
}

// Close stops garbage collection and closes the database.
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.Stop()
	}
	return s.db.Close()
}

func assessmentKey(runID string) []byte {
	return []byte(assessmentPrefix + runID)
}

func timeIndexKey(a *belief.Assessment) []byte {
	ts := strconv.FormatInt(a.CreatedAt.UnixNano(), 10)
	// Zero-pad so lexicographic order matches numeric order.
	for len(ts) < 20 {
		ts = "0" + ts
	}
	return []byte(timeIndexPrefix + ts + "/" + a.RunID)
}

// PutAssessment writes the record and its listing index entry in one
// transaction. Run IDs are unique per run, so an existing key is a
// caller bug and gets overwritten rather than erroring.
func (s *Store) PutAssessment(ctx context.Context, a *belief.Assessment) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if a == nil || a.RunID == "" {
		return errors.New("assessment must have a run ID")
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal assessment %s: %w", a.RunID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(assessmentKey(a.RunID), data); err != nil {
			return err
		}
		return txn.Set(timeIndexKey(a), []byte(a.RunID))
	})
	if err != nil {
		return fmt.Errorf("store assessment %s: %w", a.RunID, err)
	}
	return nil
}

// GetAssessment fetches one record by run ID.
func (s *Store) GetAssessment(ctx context.Context, runID string) (*belief.Assessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	var out belief.Assessment
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(assessmentKey(runID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load assessment %s: %w", runID, err)
	}
	return &out, nil
}

// ListAssessments returns up to limit run IDs, newest first.
func (s *Store) ListAssessments(ctx context.Context, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	if limit <= 0 {
		limit = 100
	}
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(timeIndexPrefix)
		// Seek past the last possible index key, then walk backwards.
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(ids) < limit; it.Next() {
			err := it.Item().Value(func(val []byte) error {
				ids = append(ids, string(val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return ids, nil
}
