package session

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	f := newFixture(t, nil, WithMetrics(m))
	ctx := context.Background()

	res, err := f.svc.Register(ctx, "m@x.com", "Pw123456")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := f.svc.Login(ctx, "m@x.com", "Wrong1234"); err == nil {
		t.Fatalf("expected login failure")
	}
	if _, err := f.svc.Refresh(ctx, res.RefreshToken); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, err := f.svc.Refresh(ctx, res.RefreshToken); err == nil {
		t.Fatalf("expected replay failure")
	}
	f.svc.Logout(ctx, "unknown")

	checks := []struct {
		op, result string
		want       float64
	}{
		{"register", "ok", 1},
		{"login", "invalid_credentials", 1},
		{"refresh", "ok", 1},
		{"refresh", "invalid_token", 1},
		{"logout", "ok", 1},
	}
	for _, c := range checks {
		got := testutil.ToFloat64(m.ops.WithLabelValues(c.op, c.result))
		if got != c.want {
			t.Fatalf("operations_total{op=%q,result=%q} = %v, want %v", c.op, c.result, got, c.want)
		}
	}
	if got := testutil.ToFloat64(m.reuse); got != 1 {
		t.Fatalf("refresh_reuse_total = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.duration); n != 4 {
		t.Fatalf("duration series = %d, want 4", n)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.observe("login", time.Time{}, nil)
	m.reuseDetected()
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewMetrics(reg); err != nil {
		t.Fatalf("first NewMetrics: %v", err)
	}
	if _, err := NewMetrics(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}
