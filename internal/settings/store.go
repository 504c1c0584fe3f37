package settings

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Logger defines the logging interface used by the store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store loads and saves the settings record as a flat JSON object.
type Store struct {
	storage Storage
	logger  Logger
}

// NewStore creates a Store on top of storage.
func NewStore(storage Storage) *Store {
	return &Store{
		storage: storage,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// Load returns the persisted record. It never fails: every problem is
// logged and the affected fields stay empty.
func (s *Store) Load() Record {
	rec := NewRecord()

	data, err := s.storage.ReadDocument()
	if errors.Is(err, ErrNoDocument) {
		s.logger.Info("no settings document, using defaults")
		return rec
	}
	if err != nil {
		s.logger.Error("failed to read settings document", "error", err)
		return rec
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Error("failed to parse settings document", "error", err)
		return rec
	}

	for _, entry := range Layout {
		raw, ok := doc[entry.Key]
		if !ok {
			s.logger.Warn("settings document did not contain a value", "key", entry.Key)
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			s.logger.Warn("settings value is not a string", "key", entry.Key, "error", err)
			continue
		}
		if truncated, _ := rec.Set(entry.Key, value); truncated {
			s.logger.Warn("settings value truncated", "key", entry.Key, "limit", entry.Limit)
		}
	}

	s.logger.Debug("settings loaded", "settings", rec)
	return rec
}

// Save replaces the persisted document with rec.
func (s *Store) Save(rec Record) error {
	data, err := json.Marshal(rec.Values())
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	if err := s.storage.WriteDocument(data); err != nil {
		s.logger.Error("failed to write settings document", "error", err)
		return fmt.Errorf("saving settings: %w", err)
	}

	s.logger.Info("settings saved", "settings", rec)
	return nil
}
