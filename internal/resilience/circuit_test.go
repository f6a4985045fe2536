package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func fail(_ context.Context) error { return errors.New("fail") }

func TestCircuitBreaker_ClosedState_PassesThrough(t *testing.T) {
	cb := NewCircuitBreaker(DefaultBreakerConfig())

	var calls int
	err := cb.Execute(context.Background(), func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed state, got %s", cb.State())
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	for range 3 {
		_ = cb.Execute(context.Background(), fail)
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open state, got %s", cb.State())
	}

	err := cb.Execute(context.Background(), func(_ context.Context) error {
		t.Error("should not be called when circuit is open")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	for range 2 {
		_ = cb.Execute(context.Background(), fail)
	}
	if got := cb.Failures(); got != 2 {
		t.Errorf("expected 2 failures, got %d", got)
	}

	_ = cb.Execute(context.Background(), func(_ context.Context) error { return nil })
	if got := cb.Failures(); got != 0 {
		t.Errorf("expected 0 failures after success, got %d", got)
	}
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(BreakerConfig{FailureThreshold: 2, ResetTimeout: 100 * time.Millisecond})
	cb.now = func() time.Time { return now }

	for range 2 {
		_ = cb.Execute(context.Background(), fail)
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open state, got %s", cb.State())
	}

	cb.now = func() time.Time { return now.Add(200 * time.Millisecond) }
	if cb.State() != CircuitHalfOpen {
		t.Errorf("expected half-open state after timeout, got %s", cb.State())
	}

	if err := cb.Execute(context.Background(), func(_ context.Context) error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed state after probe, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailure_Reopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(BreakerConfig{FailureThreshold: 2, ResetTimeout: 100 * time.Millisecond})
	cb.now = func() time.Time { return now }

	for range 2 {
		_ = cb.Execute(context.Background(), fail)
	}
	now = now.Add(200 * time.Millisecond)

	_ = cb.Execute(context.Background(), fail)
	if cb.State() != CircuitOpen {
		t.Errorf("expected open state after failed probe, got %s", cb.State())
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(BreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = cb.Execute(context.Background(), fail)
	cb.Reset()

	want := []string{"closed->open", "open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("expected %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d: expected %s, got %s", i, want[i], transitions[i])
		}
	}
}

func TestCircuitBreaker_ShouldTrip(t *testing.T) {
	notFound := errors.New("not found")
	cb := NewCircuitBreaker(BreakerConfig{
		FailureThreshold: 1,
		ShouldTrip:       func(err error) bool { return !errors.Is(err, notFound) },
	})

	for range 5 {
		_ = cb.Execute(context.Background(), func(_ context.Context) error { return notFound })
	}
	if cb.State() != CircuitClosed {
		t.Errorf("non-tripping errors should keep the circuit closed, got %s", cb.State())
	}
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{FailureThreshold: 1000})

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = cb.Execute(context.Background(), func(_ context.Context) error {
				if i%2 == 0 {
					return errors.New("fail")
				}
				return nil
			})
		}(i)
	}
	wg.Wait()

	if cb.State() != CircuitClosed {
		t.Errorf("expected closed state, got %s", cb.State())
	}
}

func TestExecuteVal(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})

	n, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (int64, error) { return 42, nil })
	if err != nil || n != 42 {
		t.Fatalf("expected 42, nil; got %d, %v", n, err)
	}

	_, _ = ExecuteVal(context.Background(), cb, func(_ context.Context) (int64, error) { return 0, errors.New("x") })
	n, err = ExecuteVal(context.Background(), cb, func(_ context.Context) (int64, error) { return 7, nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if n != 0 {
		t.Errorf("expected zero value, got %d", n)
	}
}

func TestHostBreakers_PerHost(t *testing.T) {
	hb := NewHostBreakers(BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})

	a := hb.For("https://e4ftl01.cr.usgs.gov/MOLT/MOD14A1.006/")
	b := hb.For("https://e4ftl01.cr.usgs.gov/MOLA/MYD14A1.006/")
	c := hb.For("ftp://ladsweb.modaps.eosdis.nasa.gov/allData/")
	if a != b {
		t.Error("same host should share a breaker")
	}
	if a == c {
		t.Error("different hosts should not share a breaker")
	}

	_ = a.Execute(context.Background(), fail)
	states := hb.States()
	if states["e4ftl01.cr.usgs.gov"] != CircuitOpen {
		t.Errorf("expected open, got %s", states["e4ftl01.cr.usgs.gov"])
	}
	if states["ladsweb.modaps.eosdis.nasa.gov"] != CircuitClosed {
		t.Errorf("expected closed, got %s", states["ladsweb.modaps.eosdis.nasa.gov"])
	}
}

func TestBreakerFromConfig(t *testing.T) {
	cfg := BreakerFromConfig(0, 0)
	if cfg.FailureThreshold != 5 || cfg.ResetTimeout != 30*time.Second {
		t.Errorf("zero values should keep defaults, got %+v", cfg)
	}
	cfg = BreakerFromConfig(2, time.Second)
	if cfg.FailureThreshold != 2 || cfg.ResetTimeout != time.Second {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestCircuitState_String(t *testing.T) {
	tests := map[CircuitState]string{
		CircuitClosed:    "closed",
		CircuitOpen:      "open",
		CircuitHalfOpen:  "half-open",
		CircuitState(99): "unknown",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("expected %s, got %s", want, s.String())
		}
	}
}
