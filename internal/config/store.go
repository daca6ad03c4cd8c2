package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	pkgconfig "track-enricher/internal/pkg/config"
)

var storeMetrics = pkgconfig.NewConfigMetrics("pipeline")

// Store holds the live pipeline configuration.
//
// Readers call Current at the start of each unit of work and keep the
// returned pointer for its duration, so a reload never changes settings
// under an in-flight lookup.
type Store struct {
	path       string
	registered []string
	current    atomic.Pointer[Pipeline]

	mu          sync.Mutex
	subscribers []func(*Pipeline)
	modTime     time.Time
}

// NewStore validates p and wraps it in a Store without a backing file.
func NewStore(p *Pipeline, registered []string) (*Store, error) {
	if err := p.Validate(registered); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	s := &Store{registered: registered}
	s.current.Store(p)
	storeMetrics.RecordLoadTimestamp()
	return s, nil
}

// OpenStore loads and validates the file at path.
func OpenStore(path string, registered []string) (*Store, error) {
	p, err := LoadPipeline(path)
	if err != nil {
		return nil, err
	}
	s, err := NewStore(p, registered)
	if err != nil {
		return nil, err
	}
	s.path = path
	if fi, err := os.Stat(path); err == nil {
		s.modTime = fi.ModTime()
	}
	return s, nil
}

// Current returns the active configuration.
func (s *Store) Current() *Pipeline {
	return s.current.Load()
}

// Subscribe registers fn to run after every successful swap.
func (s *Store) Subscribe(fn func(*Pipeline)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Replace validates p and makes it current.
func (s *Store) Replace(p *Pipeline) error {
	if err := p.Validate(s.registered); err != nil {
		return fmt.Errorf("invalid pipeline config: %w", err)
	}

	s.mu.Lock()
	s.current.Store(p)
	subs := append([]func(*Pipeline){}, s.subscribers...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(p)
	}
	return nil
}

// Reload re-reads the backing file. An invalid file leaves the current
// configuration in place.
func (s *Store) Reload() error {
	if s.path == "" {
		return fmt.Errorf("config store has no backing file")
	}
	p, err := LoadPipeline(s.path)
	if err != nil {
		storeMetrics.RecordValidationError("file")
		return err
	}
	if err := s.Replace(p); err != nil {
		storeMetrics.RecordValidationError("pipeline")
		return err
	}
	storeMetrics.RecordLoadTimestamp()
	if fi, err := os.Stat(s.path); err == nil {
		s.mu.Lock()
		s.modTime = fi.ModTime()
		s.mu.Unlock()
	}
	slog.Info("pipeline config reloaded", slog.String("path", s.path))
	return nil
}

// ReloadOnSignal reloads whenever one of sigs arrives, until ctx is done.
func (s *Store) ReloadOnSignal(ctx context.Context, sigs ...os.Signal) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			if err := s.Reload(); err != nil {
				slog.Error("pipeline config reload failed, keeping previous config",
					slog.String("path", s.path),
					slog.Any("error", err))
			}
		}
	}
}

// Poll reloads when the backing file's modification time changes.
func (s *Store) Poll(ctx context.Context, interval time.Duration) {
	if s.path == "" {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fi, err := os.Stat(s.path)
			if err != nil {
				continue
			}
			s.mu.Lock()
			changed := fi.ModTime().After(s.modTime)
			s.mu.Unlock()
			if !changed {
				continue
			}
			if err := s.Reload(); err != nil {
				slog.Error("pipeline config reload failed, keeping previous config",
					slog.String("path", s.path),
					slog.Any("error", err))
				s.mu.Lock()
				s.modTime = fi.ModTime()
				s.mu.Unlock()
			}
		}
	}
}
