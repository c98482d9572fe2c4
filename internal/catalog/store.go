// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package catalog persists resolved model records between refreshes so the
// gateway can answer metadata and eligibility lookups without a hub round
// trip.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ManuGH/hubgate/internal/hub"
	"github.com/ManuGH/hubgate/internal/modelcard"
)

const keyPrefix = "model:"

// Record is one cataloged model: its hub metadata, parsed card, and the
// eligibility decision derived from them.
type Record struct {
	RepoID     string             `json:"repo_id"`
	Info       *hub.ModelInfo     `json:"info"`
	Card       *modelcard.Card    `json:"card,omitempty"`
	Decision   modelcard.Decision `json:"decision"`
	ResolvedAt time.Time          `json:"resolved_at"`
}

// Options configures the store.
type Options struct {
	// Path is the on-disk location. Ignored when InMemory is set.
	Path string
	// InMemory keeps records in process memory, for tests.
	InMemory bool
	// TTL expires records that no refresh has renewed. Zero keeps them
	// forever.
	TTL time.Duration
}

// Store is a badger-backed model catalog.
type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// Open opens or creates the catalog.
func Open(opts Options) (*Store, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	} else {
		if opts.Path == "" {
			return nil, fmt.Errorf("catalog: path required")
		}
		bopts = badger.DefaultOptions(opts.Path).WithLogger(nil)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	return &Store{db: db, ttl: opts.TTL}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func recordKey(repoID string) []byte { return []byte(keyPrefix + repoID) }

// Put stores or replaces a record.
func (s *Store) Put(ctx context.Context, rec *Record) error {
	if rec.RepoID == "" {
		return fmt.Errorf("catalog: record without repo id")
	}
	buf, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.RepoID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if s.ttl > 0 {
			return txn.SetEntry(badger.NewEntry(recordKey(rec.RepoID), buf).WithTTL(s.ttl))
		}
		return txn.Set(recordKey(rec.RepoID), buf)
	})
}

// Get returns a record, or nil when the model is not cataloged.
func (s *Store) Get(ctx context.Context, repoID string) (*Record, error) {
	var out Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(repoID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

// Delete removes a record. Deleting an absent record is a no-op.
func (s *Store) Delete(ctx context.Context, repoID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(recordKey(repoID))
	})
}

// Scan visits every record. Rows that no longer decode are skipped; an
// error from fn stops the scan.
func (s *Store) Scan(ctx context.Context, fn func(*Record) error) error {
	prefix := []byte(keyPrefix)
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			var rec Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				continue
			}
			if err := fn(&rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns every record.
func (s *Store) List(ctx context.Context) ([]*Record, error) {
	var list []*Record
	err := s.Scan(ctx, func(r *Record) error {
		list = append(list, r)
		return nil
	})
	return list, err
}

// Len counts the cataloged models without loading values.
func (s *Store) Len(ctx context.Context) (int, error) {
	prefix := []byte(keyPrefix)
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		o := badger.DefaultIteratorOptions
		o.PrefetchValues = false
		it := txn.NewIterator(o)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}
