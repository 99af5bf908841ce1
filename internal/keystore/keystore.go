// Package keystore persists the user's Gemini API key in a local BadgerDB
// directory so it survives restarts of the CLI.
package keystore

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v3"
)

// APIKeyName is the fixed storage key for the Gemini API key
const APIKeyName = "gemini_api_key"

var ErrClosed = errors.New("key store is closed")

// Store is a single-value key store. Get, Set and Remove are safe for
// concurrent use.
type Store struct {
	db     *badger.DB
	path   string
	logger *slog.Logger
	closed bool
	mutex  sync.RWMutex
}

// Open opens the store under path. An empty path keeps the data in memory
// only.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.ValueLogFileSize = 16 << 20
	opts.MemTableSize = 4 << 20
	opts.NumMemtables = 2
	opts.NumLevelZeroTables = 2
	opts.NumLevelZeroTablesStall = 3
	opts.CompactL0OnClose = true
	opts.ValueThreshold = 64 << 10
	opts.Logger = &badgerLogger{logger: logger.With(slog.String("component", "badger"))}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open key store at %q: %w", path, err)
	}

	logger.Debug("Key store opened", slog.String("path", path), slog.Bool("in_memory", path == ""))
	return &Store{db: db, path: path, logger: logger}, nil
}

// Get returns the stored key. ok is false when nothing is saved.
func (s *Store) Get() (value string, ok bool, err error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.closed {
		return "", false, ErrClosed
	}

	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(APIKeyName))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read API key: %w", err)
	}
	return value, true, nil
}

// Set saves value exactly as given, replacing any previous key
func (s *Store) Set(value string) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.closed {
		return ErrClosed
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(APIKeyName), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("failed to save API key: %w", err)
	}

	s.logger.Info("API key saved")
	return nil
}

// Remove deletes the stored key. Removing a missing key is not an error.
func (s *Store) Remove() error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.closed {
		return ErrClosed
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(APIKeyName))
	})
	if err != nil {
		return fmt.Errorf("failed to remove API key: %w", err)
	}

	s.logger.Info("API key removed")
	return nil
}

func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close key store: %w", err)
	}
	return nil
}

// badgerLogger routes badger's printf-style logging into slog. Info output is
// demoted to debug since badger is chatty on open and close.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
