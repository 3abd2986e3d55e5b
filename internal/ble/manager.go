package ble

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RetryPolicy controls how Connect retries a failed attempt. Retry is
// caller policy: the manager never retries on its own after a session
// is established.
type RetryPolicy struct {
	Attempts   int           // total attempts; values < 1 mean one attempt
	MaxBackoff time.Duration // cap for the exponential backoff between attempts
}

// DefaultRetryPolicy returns sensible defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, MaxBackoff: 30 * time.Second}
}

// Manager owns the scan/connect/disconnect lifecycle for peripherals
// reached through one adapter. Only the manager and its sessions
// mutate connection state.
type Manager struct {
	adapter Adapter

	enableOnce sync.Once
	enableErr  error
}

// NewManager creates a connection manager on top of the given adapter.
func NewManager(adapter Adapter) *Manager {
	return &Manager{adapter: adapter}
}

// Connect scans for the device address within timeout, then opens a
// GATT client session. It fails with ErrNotFound when the address is
// not observed, ErrTimeout when the budget elapses mid-connect, and a
// *LinkError when the transport rejects the connection. The retry
// policy applies to the whole scan+connect attempt.
func (m *Manager) Connect(ctx context.Context, dev Device, timeout time.Duration, retry RetryPolicy) (*Session, error) {
	m.enableOnce.Do(func() {
		m.enableErr = m.adapter.Enable()
	})
	if m.enableErr != nil {
		return nil, &LinkError{Op: "enable adapter", Err: m.enableErr}
	}

	attempts := retry.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt-1, retry.MaxBackoff)
			slog.Info("connect retry", "device", dev.Address, "attempt", attempt+1, "backoff", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		session, err := m.connectOnce(ctx, dev, timeout)
		if err == nil {
			return session, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, err
		}
		slog.Warn("connect attempt failed", "device", dev.Address, "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

func (m *Manager) connectOnce(ctx context.Context, dev Device, timeout time.Duration) (*Session, error) {
	budget, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	found, err := m.adapter.Scan(budget, dev.Address)
	if err != nil {
		if budget.Err() != nil && ctx.Err() == nil {
			return nil, ErrTimeout
		}
		return nil, &LinkError{Op: "scan", Err: err}
	}
	if !found {
		return nil, ErrNotFound
	}

	conn, err := m.adapter.Connect(budget, dev.Address)
	if err != nil {
		if budget.Err() != nil && ctx.Err() == nil {
			return nil, ErrTimeout
		}
		return nil, &LinkError{Op: "connect", Err: err}
	}

	s := &Session{
		dev:  dev,
		conn: conn,
		lost: make(chan struct{}),
	}
	conn.OnDisconnect(s.markLost)
	slog.Info("connected", "device", dev.Address, "adapter", dev.Adapter)
	return s, nil
}

// Session is one open link to a peripheral. Close is idempotent.
type Session struct {
	dev  Device
	conn Connection

	mu        sync.Mutex
	closed    bool
	lostOnce  sync.Once
	lost      chan struct{}
	stopAlive context.CancelFunc
}

// Device returns the descriptor this session was opened for.
func (s *Session) Device() Device { return s.dev }

// Conn exposes the underlying transport connection.
func (s *Session) Conn() Connection { return s.conn }

// Lost is closed when the link drops unexpectedly. The manager never
// reconnects on its own; reacting to a lost link is caller policy.
func (s *Session) Lost() <-chan struct{} { return s.lost }

// Alive reports whether the session is open and the link has not dropped.
func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case <-s.lost:
		return false
	default:
		return true
	}
}

func (s *Session) markLost() {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.lostOnce.Do(func() {
		slog.Warn("link lost", "device", s.dev.Address)
		close(s.lost)
	})
}

// StartKeepAlive launches a background loop that issues ping every
// interval to keep the platform BLE stack from dropping an idle link.
// Ping failures are logged and do not stop the loop; the loop ends
// when the session is closed. A second call is a no-op.
func (s *Session) StartKeepAlive(interval time.Duration, ping func() error) {
	if interval <= 0 || ping == nil {
		return
	}
	s.mu.Lock()
	if s.closed || s.stopAlive != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.stopAlive = cancel
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.lost:
				return
			case <-ticker.C:
				if err := ping(); err != nil {
					slog.Warn("keep-alive read failed", "device", s.dev.Address, "error", err)
				}
			}
		}
	}()
}

// Close releases the link. Closing an already-closed session is a
// no-op. Keep-alive polling is cancelled together with the teardown.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	stop := s.stopAlive
	conn := s.conn
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	if conn != nil {
		if err := conn.Disconnect(); err != nil {
			return &LinkError{Op: "disconnect", Err: err}
		}
	}
	return nil
}

// backoffDelay returns the retry delay for attempt n, capped at max.
func backoffDelay(attempt int, max time.Duration) time.Duration {
	delay := time.Duration(1<<uint(attempt)) * time.Second
	if max > 0 && delay > max {
		return max
	}
	return delay
}
