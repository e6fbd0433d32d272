package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/netwatch/trafikwatch/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Session cache
// ─────────────────────────────────────────────────────────────────────────────

// Dialer creates a connected session for a target. Defaults to NewSession;
// tests inject fakes.
type Dialer func(models.Target) (Session, error)

// dialCall tracks one in-flight dial so concurrent Get calls for the same
// key share a single connection attempt.
type dialCall struct {
	done chan struct{}
	sess Session
	err  error
}

// SessionCache hands out at most one live session per distinct
// (host, port, credential identity) combination. Targets on the same device
// that share credentials share a session; changing any credential field
// yields a different fingerprint and therefore a separate session.
//
// Failed dials are never cached. The failure is returned to every waiter of
// that attempt, and the next Get dials again.
type SessionCache struct {
	dial   Dialer
	opts   SessionOptions
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]Session
	inflight map[string]*dialCall

	closed bool
}

// NewSessionCache creates an empty cache. A nil dial uses NewSession with
// the given options.
func NewSessionCache(dial Dialer, opts SessionOptions, logger *slog.Logger) *SessionCache {
	if dial == nil {
		dial = func(t models.Target) (Session, error) { return NewSession(t, opts) }
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &SessionCache{
		dial:     dial,
		opts:     opts,
		logger:   logger,
		sessions: make(map[string]Session),
		inflight: make(map[string]*dialCall),
	}
}

// cacheKey identifies a session slot. The credential fingerprint covers every
// field of the identity, so two targets only share a slot when host, port,
// and the full credential set all match.
func cacheKey(t models.Target) string {
	return fmt.Sprintf("%s:%d/%s", t.Host, t.Port, t.Identity.Fingerprint())
}

// Get returns the cached session for the target, dialing one if none exists.
// Concurrent calls for the same key during a dial block until that single
// attempt finishes and all receive its outcome. ctx only bounds the wait;
// an abandoned dial still completes and, on success, populates the cache.
func (c *SessionCache) Get(ctx context.Context, target models.Target) (Session, error) {
	key := cacheKey(target)

	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, transportErr(target.Key(), "get session", fmt.Errorf("session cache closed"))
		}
		if sess, ok := c.sessions[key]; ok {
			c.mu.Unlock()
			return sess, nil
		}
		if call, ok := c.inflight[key]; ok {
			c.mu.Unlock()
			select {
			case <-call.done:
			case <-ctx.Done():
				return nil, transportErr(target.Key(), "get session", ctx.Err())
			}
			if call.err != nil {
				return nil, transportErr(target.Key(), "connect", call.err)
			}
			// The dial succeeded but the session may have been invalidated
			// since. Loop to re-read the cache.
			if call.sess != nil {
				return call.sess, nil
			}
			continue
		}

		call := &dialCall{done: make(chan struct{})}
		c.inflight[key] = call
		c.mu.Unlock()

		sess, err := c.dial(target)

		c.mu.Lock()
		delete(c.inflight, key)
		if err == nil {
			if c.closed {
				c.mu.Unlock()
				_ = sess.Close()
				call.err = fmt.Errorf("session cache closed")
				close(call.done)
				return nil, transportErr(target.Key(), "get session", call.err)
			}
			c.sessions[key] = sess
			call.sess = sess
		} else {
			call.err = err
		}
		c.mu.Unlock()
		close(call.done)

		if err != nil {
			c.logger.Warn("session dial failed",
				"target", target.Key(),
				"error", err,
			)
			return nil, transportErr(target.Key(), "connect", err)
		}
		c.logger.Debug("session established",
			"host", target.Host,
			"port", target.Port,
			"identity", target.Identity.Fingerprint(),
		)
		return sess, nil
	}
}

// Invalidate closes and removes the target's session, if cached. The next
// Get dials a fresh one. Use after a query error that suggests the transport
// is broken.
func (c *SessionCache) Invalidate(target models.Target) {
	key := cacheKey(target)

	c.mu.Lock()
	sess, ok := c.sessions[key]
	if ok {
		delete(c.sessions, key)
	}
	c.mu.Unlock()

	if ok {
		_ = sess.Close()
		c.logger.Debug("session invalidated", "target", target.Key())
	}
}

// Close tears down every cached session and rejects further Get calls.
func (c *SessionCache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sessions := c.sessions
	c.sessions = make(map[string]Session)
	c.mu.Unlock()

	for _, sess := range sessions {
		_ = sess.Close()
	}
	return nil
}

// Len reports how many live sessions the cache currently holds.
func (c *SessionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// noopWriter discards log output.
type noopWriter struct{}

func (noopWriter) Write(b []byte) (int, error) { return len(b), nil }
