// Package session хранит состояния диалогов пользователей.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"telegram_booking_bot/internal/bot/flow"
	"telegram_booking_bot/pkg/logger"
	"telegram_booking_bot/pkg/metrics"
)

type entry struct {
	state     flow.State
	updatedAt time.Time
}

// MemoryStore хранит сессии в памяти и удаляет неактивные по таймауту
type MemoryStore struct {
	entries  map[int64]entry
	mu       sync.RWMutex
	timeout  time.Duration
	now      func() time.Time
	logger   *logger.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	started  bool
	stopped  bool
	stopOnce sync.Once
}

var _ flow.SessionStore = (*MemoryStore)(nil)

// NewMemoryStore создает хранилище сессий в памяти
func NewMemoryStore(timeout time.Duration, log *logger.Logger) *MemoryStore {
	ctx, cancel := context.WithCancel(context.Background())

	return &MemoryStore{
		entries: make(map[int64]entry),
		timeout: timeout,
		now:     time.Now,
		logger:  log,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Start запускает периодическую очистку просроченных сессий
func (s *MemoryStore) Start(interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("session store is stopped")
	}
	if s.started {
		return nil
	}
	s.started = true

	go s.janitor(interval)
	return nil
}

// Stop останавливает очистку
func (s *MemoryStore) Stop() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		started := s.started
		s.mu.Unlock()

		s.cancel()
		if started {
			<-s.done
		}
	})
	return nil
}

func (s *MemoryStore) janitor(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("Expired sessions removed", logger.Int("count", n))
			}
		}
	}
}

// Load возвращает состояние пользователя; просроченная сессия удаляется
func (s *MemoryStore) Load(_ context.Context, userID int64) (flow.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[userID]
	if !ok {
		return nil, nil
	}
	if s.expired(e) {
		delete(s.entries, userID)
		metrics.RecordExpiredSessions(1)
		metrics.SetActiveSessions(len(s.entries))
		return nil, nil
	}
	return e.state, nil
}

// Save сохраняет состояние и продлевает сессию
func (s *MemoryStore) Save(_ context.Context, userID int64, state flow.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[userID] = entry{state: state, updatedAt: s.now()}
	metrics.SetActiveSessions(len(s.entries))
	return nil
}

// Clear удаляет сессию пользователя
func (s *MemoryStore) Clear(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, userID)
	metrics.SetActiveSessions(len(s.entries))
	return nil
}

// Sweep удаляет все просроченные сессии и возвращает их количество
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for userID, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, userID)
			removed++
		}
	}

	metrics.RecordExpiredSessions(removed)
	metrics.SetActiveSessions(len(s.entries))
	return removed
}

// Len возвращает количество хранимых сессий
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) expired(e entry) bool {
	return s.now().Sub(e.updatedAt) > s.timeout
}
