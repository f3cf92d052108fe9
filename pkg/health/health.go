// Package health implements liveness and readiness probes.
//
// Every check is polled in the background. A check turns unhealthy after
// FailureThreshold consecutive failures and healthy again after
// SuccessThreshold consecutive successes, so a single slow ping does not
// flip the probe.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"golang.org/x/sync/errgroup"
)

// Kind selects the probe a check belongs to.
type Kind int

const (
	Liveness Kind = iota
	Readiness
)

// Func reports the health of one dependency.
type Func func(ctx context.Context) error

// Check describes a single registered check.
type Check struct {
	Name             string
	Func             Func
	Timeout          time.Duration
	FailureThreshold int
	SuccessThreshold int
}

type state struct {
	Check

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	// Owned by the polling goroutine.
	fails, oks int
}

func (s *state) poll(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	err := s.Func(ctx)
	s.lastErr.Store(&err)
	if err != nil {
		s.oks = 0
		s.fails++
		if s.fails >= s.FailureThreshold {
			s.healthy.Store(false)
		}
		return
	}
	s.fails = 0
	s.oks++
	if s.oks >= s.SuccessThreshold {
		s.healthy.Store(true)
	}
}

func (s *state) failure() string {
	if s.healthy.Load() {
		return ""
	}
	if p := s.lastErr.Load(); p != nil && *p != nil {
		return (*p).Error()
	}
	return "check is unhealthy"
}

// Health aggregates checks and serves the probe endpoints.
type Health struct {
	ready atomic.Bool

	mu     sync.RWMutex
	checks map[Kind][]*state
}

// New creates Health. It reports not ready until SetReady(true).
func New() *Health {
	return &Health{checks: make(map[Kind][]*state)}
}

// Add registers c under kind. Zero thresholds default to 3 failures and
// 1 success, a zero timeout to one second. Checks start healthy.
func (h *Health) Add(kind Kind, c Check) {
	if c.Timeout <= 0 {
		c.Timeout = time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 1
	}
	s := &state{Check: c}
	s.healthy.Store(true)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[kind] = append(h.checks[kind], s)
}

func (h *Health) snapshot(kinds ...Kind) []*state {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*state
	for _, k := range kinds {
		out = append(out, h.checks[k]...)
	}
	return out
}

// Run polls every check each interval until ctx is done.
func (h *Health) Run(ctx context.Context, interval time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range h.snapshot(Liveness, Readiness) {
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				s.poll(ctx)
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		})
	}
	return g.Wait()
}

// SetReady toggles the manual readiness flag. The server flips it off
// during graceful shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every readiness
// check passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	return !slices.ContainsFunc(h.snapshot(Readiness), func(s *state) bool {
		return !s.healthy.Load()
	})
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeResponse(w, failures(h.snapshot(Liveness)))
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	f := failures(h.snapshot(Readiness))
	if !h.ready.Load() {
		f = append(f, [2]string{"_readiness", "service is not ready"})
	}
	writeResponse(w, f)
}

func failures(states []*state) [][2]string {
	var out [][2]string
	for _, s := range states {
		if msg := s.failure(); msg != "" {
			out = append(out, [2]string{s.Name, msg})
		}
	}
	return out
}

// writeResponse renders {"status":"ok"} or
// {"status":"unhealthy","checks":{name:error}} with 503.
func writeResponse(w http.ResponseWriter, failed [][2]string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	status := http.StatusOK
	if len(failed) == 0 {
		e.Str("ok")
	} else {
		status = http.StatusServiceUnavailable
		e.Str("unhealthy")
		e.FieldStart("checks")
		e.ObjStart()
		for _, f := range failed {
			e.FieldStart(f[0])
			e.Str(f[1])
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
