package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(rdb, "bgr"), mr
}

func TestAllowWithinBudget(t *testing.T) {
	l, _ := newTestLimiter(t)
	p := Policy{Name: "pub", Max: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		d, err := l.Allow(context.Background(), p, "1.2.3.4")
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d unexpectedly rejected", i+1)
		}
		if d.Remaining != 3-(i+1) {
			t.Fatalf("expected remaining %d, got %d", 3-(i+1), d.Remaining)
		}
	}
}

func TestRejectOverBudgetWithRetryAfter(t *testing.T) {
	l, _ := newTestLimiter(t)
	p := Policy{Name: "fp", Max: 1, Window: time.Minute}

	if d, err := l.Allow(context.Background(), p, "1.2.3.4"); err != nil || !d.Allowed {
		t.Fatalf("first request should pass, got %+v err=%v", d, err)
	}

	d, err := l.Allow(context.Background(), p, "1.2.3.4")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if d.Allowed {
		t.Fatal("second request should be rejected")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
		t.Fatalf("expected retry hint within window, got %v", d.RetryAfter)
	}
}

func TestWindowResets(t *testing.T) {
	l, mr := newTestLimiter(t)
	p := Policy{Name: "adm", Max: 1, Window: time.Minute}

	if d, _ := l.Allow(context.Background(), p, "10.0.0.1"); !d.Allowed {
		t.Fatal("first request should pass")
	}
	if d, _ := l.Allow(context.Background(), p, "10.0.0.1"); d.Allowed {
		t.Fatal("budget should be exhausted")
	}

	mr.FastForward(time.Minute + time.Second)

	d, err := l.Allow(context.Background(), p, "10.0.0.1")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if !d.Allowed {
		t.Fatal("budget should reset after the window elapses")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t)
	p := Policy{Name: "usr", Max: 1, Window: time.Minute}

	if d, _ := l.Allow(context.Background(), p, "u1:1.2.3.4"); !d.Allowed {
		t.Fatal("first key should pass")
	}
	if d, _ := l.Allow(context.Background(), p, "u2:1.2.3.4"); !d.Allowed {
		t.Fatal("distinct key must not share the budget")
	}
}

func TestRedisDownReturnsError(t *testing.T) {
	l, mr := newTestLimiter(t)
	mr.Close()

	_, err := l.Allow(context.Background(), Policy{Name: "pub", Max: 1, Window: time.Minute}, "1.2.3.4")
	if err == nil {
		t.Fatal("expected error when redis is unreachable")
	}
}
