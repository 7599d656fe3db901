/*
Package ratelimit provides the per-user admission gate applied to user-generated traffic.

A Limiter combines an explicit timeout set by moderators, a cooldown entered when a user
overflows the rolling one-minute window, and a token bucket that smooths bursts. Disabled
is the no-op gate used when rate limiting is turned off.
*/
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"originchats/internal/pkg/logx"

	"golang.org/x/time/rate"
)

// Denial reasons.
const (
	ReasonTimedOut   = "User is timed out"
	ReasonCooldown   = "Rate limit cooldown active"
	ReasonPerMinute  = "Too many messages per minute"
	ReasonTooQuickly = "Sending messages too quickly"
)

const window = time.Minute

// Gate is the capability the dispatcher consults before admitting traffic.
type Gate interface {
	// Enabled reports whether the gate enforces anything.
	Enabled() bool

	// IsAllowed admits one event for userID. On denial it returns the reason and the
	// number of seconds to wait.
	IsAllowed(userID string) (bool, string, float64)

	SetUserTimeout(userID string, seconds float64)
	GetUserStatus(userID string) Status
	ResetUser(userID string)
}

// Status describes a user's current standing with the limiter.
type Status struct {
	Limited            bool    `json:"limited"`
	Reason             string  `json:"reason,omitempty"`
	MessagesLastMinute int     `json:"messages_last_minute"`
	MessagesPerMinute  int     `json:"messages_per_minute"`
	BurstLimit         int     `json:"burst_limit"`
	BurstRemaining     int     `json:"burst_remaining"`
	CooldownRemaining  float64 `json:"cooldown_remaining"`
	TimeoutRemaining   float64 `json:"timeout_remaining"`
}

// Denial is returned by Check when a gate refuses admission.
type Denial struct {
	Reason string
	Wait   float64
}

func (d *Denial) Error() string {
	return fmt.Sprintf("rate limited: %s (retry in %.2fs)", d.Reason, d.Wait)
}

// Milliseconds is the wait rounded up to whole milliseconds.
func (d *Denial) Milliseconds() int64 {
	ms := int64(d.Wait * 1000)
	if float64(ms) < d.Wait*1000 {
		ms++
	}
	return ms
}

// Check admits one event for userID through g, returning a *Denial when refused.
func Check(g Gate, userID string) error {
	ok, reason, wait := g.IsAllowed(userID)
	if ok {
		return nil
	}
	return &Denial{Reason: reason, Wait: wait}
}

// Disabled admits everything.
type Disabled struct{}

func (Disabled) Enabled() bool { return false }
func (Disabled) IsAllowed(string) (bool, string, float64) { return true, "", 0 }
func (Disabled) SetUserTimeout(string, float64) {}
func (Disabled) GetUserStatus(string) Status { return Status{} }
func (Disabled) ResetUser(string) {}

// Config sets the limiter thresholds.
type Config struct {
	MessagesPerMinute int
	BurstLimit        int
	CooldownSeconds   int
}

type userState struct {
	admitted      []time.Time
	bucket        *rate.Limiter
	cooldownUntil time.Time
	timeoutUntil  time.Time
}

// Limiter is the enforcing Gate.
type Limiter struct {
	mu    sync.Mutex
	cfg   Config
	users map[string]*userState
	now   func() time.Time
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New returns a Limiter enforcing cfg.
func New(cfg Config, opts ...Option) *Limiter {
	l := &Limiter{
		cfg:   cfg,
		users: make(map[string]*userState),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) Enabled() bool { return true }

// state returns the entry for userID, creating it. Callers hold l.mu.
func (l *Limiter) state(userID string) *userState {
	st, ok := l.users[userID]
	if !ok {
		perSecond := rate.Limit(float64(l.cfg.MessagesPerMinute) / window.Seconds())
		st = &userState{bucket: rate.NewLimiter(perSecond, l.cfg.BurstLimit)}
		l.users[userID] = st
	}
	return st
}

func (st *userState) prune(now time.Time) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(st.admitted) && !st.admitted[i].After(cutoff) {
		i++
	}
	st.admitted = st.admitted[i:]
}

func (l *Limiter) IsAllowed(userID string) (bool, string, float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	st := l.state(userID)

	if now.Before(st.timeoutUntil) {
		return false, ReasonTimedOut, st.timeoutUntil.Sub(now).Seconds()
	}
	if now.Before(st.cooldownUntil) {
		return false, ReasonCooldown, st.cooldownUntil.Sub(now).Seconds()
	}

	st.prune(now)
	if len(st.admitted) >= l.cfg.MessagesPerMinute {
		cooldown := time.Duration(l.cfg.CooldownSeconds) * time.Second
		st.cooldownUntil = now.Add(cooldown)
		return false, ReasonPerMinute, cooldown.Seconds()
	}

	if !st.bucket.AllowN(now, 1) {
		missing := 1 - st.bucket.TokensAt(now)
		return false, ReasonTooQuickly, missing / float64(st.bucket.Limit())
	}

	st.admitted = append(st.admitted, now)
	return true, "", 0
}

// SetUserTimeout denies userID for the given number of seconds, regardless of
// the counters.
func (l *Limiter) SetUserTimeout(userID string, seconds float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.state(userID)
	st.timeoutUntil = l.now().Add(time.Duration(seconds * float64(time.Second)))
}

func (l *Limiter) GetUserStatus(userID string) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	status := Status{
		MessagesPerMinute: l.cfg.MessagesPerMinute,
		BurstLimit:        l.cfg.BurstLimit,
		BurstRemaining:    l.cfg.BurstLimit,
	}

	st, ok := l.users[userID]
	if !ok {
		return status
	}

	st.prune(now)
	status.MessagesLastMinute = len(st.admitted)
	status.BurstRemaining = int(st.bucket.TokensAt(now))

	if now.Before(st.timeoutUntil) {
		status.Limited = true
		status.Reason = ReasonTimedOut
		status.TimeoutRemaining = st.timeoutUntil.Sub(now).Seconds()
	}
	if now.Before(st.cooldownUntil) {
		status.CooldownRemaining = st.cooldownUntil.Sub(now).Seconds()
		if !status.Limited {
			status.Limited = true
			status.Reason = ReasonCooldown
		}
	}
	return status
}

// ResetUser forgets everything about userID, including any timeout.
func (l *Limiter) ResetUser(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.users, userID)
}

// Run periodically drops idle users until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(3 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, remaining := l.prune()
			logx.Info("Rate limiter cleanup finished", "removed", removed, "remaining", remaining)
		}
	}
}

func (l *Limiter) prune() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for id, st := range l.users {
		st.prune(now)
		idle := len(st.admitted) == 0 &&
			!now.Before(st.timeoutUntil) &&
			!now.Before(st.cooldownUntil) &&
			st.bucket.TokensAt(now) >= float64(st.bucket.Burst())
		if idle {
			delete(l.users, id)
			removed++
		}
	}
	return removed, len(l.users)
}
