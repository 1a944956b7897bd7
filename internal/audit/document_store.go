// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package audit

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"

	"github.com/tomtom215/reqaudit/internal/logging"
	"github.com/tomtom215/reqaudit/internal/metrics"
)

// DocumentConfig configures the BadgerDB document store.
type DocumentConfig struct {
	// Path is the directory holding the BadgerDB files.
	Path string
	// InMemory runs BadgerDB without touching disk. Path is ignored.
	InMemory bool
	// SyncWrites fsyncs every write.
	SyncWrites bool
	// MemTableSize is the size of each memtable in bytes.
	MemTableSize int64
	// ValueLogFileSize is the size of each value log file in bytes.
	ValueLogFileSize int64
	// NumCompactors must be at least 2.
	NumCompactors int
	// Compression enables Snappy compression of documents.
	Compression bool
	// GCRatio is the value log GC discard ratio used after cleanup.
	GCRatio float64
}

// DefaultDocumentConfig returns defaults suited to a single-node deployment.
func DefaultDocumentConfig() DocumentConfig {
	return DocumentConfig{
		Path:             "/data/reqaudit/documents",
		SyncWrites:       false,
		MemTableSize:     64 << 20,
		ValueLogFileSize: 256 << 20,
		NumCompactors:    2,
		Compression:      true,
		GCRatio:          0.5,
	}
}

// Collection prefixes. A document key is
// <collection>/<8-byte big-endian unix nanos>/<id>, so key order is
// timestamp order and "older than cutoff" is a key range.
var (
	requestCollection = []byte("request_logs/")
	accessCollection  = []byte("access_logs/")
)

// DocumentSink implements Sink and Querier on BadgerDB. Each record is stored
// as one JSON document.
type DocumentSink struct {
	db      *badger.DB
	gcRatio float64

	mu     sync.RWMutex
	closed bool
}

// OpenDocumentSink opens (or creates) the BadgerDB store.
func OpenDocumentSink(cfg DocumentConfig) (*DocumentSink, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("document store path is required")
	}
	if cfg.NumCompactors < 2 {
		cfg.NumCompactors = 2
	}
	if cfg.GCRatio <= 0 || cfg.GCRatio >= 1 {
		cfg.GCRatio = 0.5
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	if cfg.MemTableSize > 0 {
		opts.MemTableSize = cfg.MemTableSize
	}
	if cfg.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = cfg.ValueLogFileSize
	}
	opts.NumCompactors = cfg.NumCompactors
	if cfg.Compression {
		opts.Compression = options.Snappy
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("Document store opened")

	return &DocumentSink{db: db, gcRatio: cfg.GCRatio}, nil
}

// Name implements Sink.
func (s *DocumentSink) Name() string { return "badger" }

func collectionFor(logType LogType) ([]byte, error) {
	switch logType {
	case LogTypeRequest:
		return requestCollection, nil
	case LogTypeAccess:
		return accessCollection, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidLogType, logType)
	}
}

// timeKey returns collection+timestamp, the prefix every key for ts starts with.
func timeKey(collection []byte, ts time.Time) []byte {
	key := make([]byte, 0, len(collection)+9)
	key = append(key, collection...)
	nanos := ts.UTC().UnixNano()
	if nanos < 0 {
		nanos = 0
	}
	key = binary.BigEndian.AppendUint64(key, uint64(nanos))
	return append(key, '/')
}

func documentKey(collection []byte, ts time.Time, id string) []byte {
	return append(timeKey(collection, ts), id...)
}

func (s *DocumentSink) put(key []byte, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, data))
	})
}

// WriteRequest implements Sink.
func (s *DocumentSink) WriteRequest(_ context.Context, rec *RequestRecord) error {
	if rec == nil {
		return ErrNilRecord
	}
	start := time.Now()
	err := s.put(documentKey(requestCollection, rec.Timestamp, rec.ID), rec)
	metrics.RecordSinkWrite(s.Name(), string(LogTypeRequest), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to save request document: %w", err)
	}
	return nil
}

// WriteAccess implements Sink.
func (s *DocumentSink) WriteAccess(_ context.Context, rec *AccessRecord) error {
	if rec == nil {
		return ErrNilRecord
	}
	start := time.Now()
	err := s.put(documentKey(accessCollection, rec.Timestamp, rec.ID), rec)
	metrics.RecordSinkWrite(s.Name(), string(LogTypeAccess), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to save access document: %w", err)
	}
	return nil
}

// Cleanup implements Sink. After deleting anything it runs value log GC so
// disk space is reclaimed.
func (s *DocumentSink) Cleanup(ctx context.Context, logType LogType, olderThan time.Time, batchSize int, dryRun bool) (int64, error) {
	n, err := cleanupInBatches(ctx, s.Name(), s, logType, olderThan, batchSize, dryRun)
	if !dryRun && n > 0 {
		s.runValueLogGC()
	}
	return n, err
}

// scanOlder visits keys in collection strictly older than cutoff, oldest
// first, until visit returns false.
func scanOlder(txn *badger.Txn, collection []byte, cutoff time.Time, visit func(key []byte) bool) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = collection
	it := txn.NewIterator(opts)
	defer it.Close()

	end := timeKey(collection, cutoff)
	for it.Seek(collection); it.ValidForPrefix(collection); it.Next() {
		key := it.Item().Key()
		if bytes.Compare(key, end) >= 0 {
			return
		}
		if !visit(key) {
			return
		}
	}
}

func (s *DocumentSink) countOlder(_ context.Context, logType LogType, cutoff time.Time) (int64, error) {
	collection, err := collectionFor(logType)
	if err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrSinkClosed
	}

	var n int64
	err = s.db.View(func(txn *badger.Txn) error {
		scanOlder(txn, collection, cutoff, func([]byte) bool {
			n++
			return true
		})
		return nil
	})
	return n, err
}

// deleteOlderBatch deletes up to limit of the oldest matching documents in
// one transaction.
func (s *DocumentSink) deleteOlderBatch(_ context.Context, logType LogType, cutoff time.Time, limit int) (int64, error) {
	collection, err := collectionFor(logType)
	if err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrSinkClosed
	}

	var n int64
	err = s.db.Update(func(txn *badger.Txn) error {
		keys := make([][]byte, 0, limit)
		scanOlder(txn, collection, cutoff, func(key []byte) bool {
			keys = append(keys, append([]byte(nil), key...))
			return len(keys) < limit
		})
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		n = int64(len(keys))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *DocumentSink) runValueLogGC() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	for i := 0; i < 10; i++ {
		if err := s.db.RunValueLogGC(s.gcRatio); err != nil {
			if !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrGCInMemoryMode) {
				logging.Debug().Err(err).Msg("Document store value log GC stopped")
			}
			return
		}
	}
}

// scanNewest decodes documents newest first and passes them to visit until it
// returns false.
func (s *DocumentSink) scanNewest(collection []byte, visit func(data []byte) (bool, error)) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}

	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = collection
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte(nil), collection...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(collection); it.Next() {
			var cont bool
			err := it.Item().Value(func(val []byte) error {
				var err error
				cont, err = visit(val)
				return err
			})
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}
		return nil
	})
}

// QueryRequests implements Querier.
func (s *DocumentSink) QueryRequests(_ context.Context, filter RecordFilter) ([]RequestRecord, error) {
	var out []RequestRecord
	skipped := 0
	err := s.scanNewest(requestCollection, func(data []byte) (bool, error) {
		var rec RequestRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			logging.Warn().Err(err).Msg("Failed to decode request document")
			return true, nil
		}
		if !filter.matches(rec.Timestamp, rec.Path, rec.StatusCode, rec.UserID) {
			return true, nil
		}
		if skipped < filter.Offset {
			skipped++
			return true, nil
		}
		out = append(out, rec)
		return filter.Limit <= 0 || len(out) < filter.Limit, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query request documents: %w", err)
	}
	return out, nil
}

// QueryAccess implements Querier.
func (s *DocumentSink) QueryAccess(_ context.Context, filter RecordFilter) ([]AccessRecord, error) {
	var out []AccessRecord
	skipped := 0
	err := s.scanNewest(accessCollection, func(data []byte) (bool, error) {
		var rec AccessRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			logging.Warn().Err(err).Msg("Failed to decode access document")
			return true, nil
		}
		if !filter.matches(rec.Timestamp, rec.URL, rec.StatusCode, rec.UserID) {
			return true, nil
		}
		if skipped < filter.Offset {
			skipped++
			return true, nil
		}
		out = append(out, rec)
		return filter.Limit <= 0 || len(out) < filter.Limit, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query access documents: %w", err)
	}
	return out, nil
}

// GetRequest implements Querier. The ID is the key suffix, so only keys
// are scanned.
func (s *DocumentSink) GetRequest(_ context.Context, id string) (*RequestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrSinkClosed
	}

	var rec *RequestRecord
	suffix := []byte("/" + id)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = requestCollection
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(requestCollection); it.ValidForPrefix(requestCollection); it.Next() {
			item := it.Item()
			if !bytes.HasSuffix(item.Key(), suffix) {
				continue
			}
			return item.Value(func(val []byte) error {
				var r RequestRecord
				if err := json.Unmarshal(val, &r); err != nil {
					return err
				}
				rec = &r
				return nil
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get request document: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, nil
}

// Count implements Querier.
func (s *DocumentSink) Count(ctx context.Context, logType LogType, filter RecordFilter) (int64, error) {
	filter.Limit, filter.Offset = 0, 0
	var total int64
	for _, t := range logType.Types() {
		switch t {
		case LogTypeRequest:
			recs, err := s.QueryRequests(ctx, filter)
			if err != nil {
				return 0, err
			}
			total += int64(len(recs))
		case LogTypeAccess:
			recs, err := s.QueryAccess(ctx, filter)
			if err != nil {
				return 0, err
			}
			total += int64(len(recs))
		default:
			return 0, fmt.Errorf("%w: %q", ErrInvalidLogType, t)
		}
	}
	return total, nil
}

// Close implements Sink and closes the BadgerDB store.
func (s *DocumentSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close document store: %w", err)
	}
	return nil
}

