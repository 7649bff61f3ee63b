package authgate

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMetricsIncAndValue(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricReplayDetected)

	if got := m.Value(MetricLoginSuccess); got != 2 {
		t.Fatalf("Value(login success) = %d, want 2", got)
	}
	if got := m.Value(MetricReplayDetected); got != 1 {
		t.Fatalf("Value(replay) = %d, want 1", got)
	}
	if got := m.Value(MetricLogout); got != 0 {
		t.Fatalf("untouched counter = %d, want 0", got)
	}
}

func TestMetricsDisabledAndNilAreInert(t *testing.T) {
	m := NewMetrics(MetricsConfig{})
	m.Inc(MetricLoginSuccess)
	m.Observe(MetricVerifyLatency, time.Millisecond)
	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("disabled Value = %d, want 0", got)
	}
	if m.Enabled() || m.LatencyEnabled() {
		t.Fatal("disabled metrics reported enabled")
	}

	snap := m.Snapshot()
	if len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("disabled snapshot not empty: %+v", snap)
	}

	var nilMetrics *Metrics
	nilMetrics.Inc(MetricLoginSuccess)
	nilMetrics.Observe(MetricVerifyLatency, time.Millisecond)
	if got := nilMetrics.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("nil Value = %d", got)
	}
	if nilMetrics.Enabled() {
		t.Fatal("nil metrics reported enabled")
	}
}

func TestMetricsOutOfRangeIDIsIgnored(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(metricIDCount)
	m.Inc(metricIDCount + 7)
	if got := m.Value(metricIDCount + 7); got != 0 {
		t.Fatalf("out-of-range Value = %d", got)
	}
}

func TestMetricsSnapshotIsDetached(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricRefreshSuccess)

	snap := m.Snapshot()
	if got := snap.Counters[MetricRefreshSuccess]; got != 1 {
		t.Fatalf("snapshot counter = %d, want 1", got)
	}
	if len(snap.Counters) != int(metricIDCount) {
		t.Fatalf("snapshot carries %d counters, want %d", len(snap.Counters), metricIDCount)
	}

	// Writing into the copy leaves the live counters alone.
	snap.Counters[MetricRefreshSuccess] = 999
	if got := m.Value(MetricRefreshSuccess); got != 1 {
		t.Fatalf("live counter changed to %d", got)
	}

	// And live increments do not bleed into the old copy.
	m.Inc(MetricRefreshSuccess)
	if got := snap.Counters[MetricRefreshSuccess]; got != 999 {
		t.Fatalf("old snapshot changed to %d", got)
	}
}

func TestMetricsObserveFillsLatencyBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	samples := []struct {
		d      time.Duration
		bucket int
	}{
		{3 * time.Millisecond, 0},
		{5 * time.Millisecond, 0},
		{6 * time.Millisecond, 1},
		{10 * time.Millisecond, 1},
		{25 * time.Millisecond, 2},
		{26 * time.Millisecond, 3},
		{50 * time.Millisecond, 3},
		{100 * time.Millisecond, 4},
		{101 * time.Millisecond, 5},
		{250 * time.Millisecond, 5},
		{500 * time.Millisecond, 6},
		{501 * time.Millisecond, 7},
		{3 * time.Second, 7},
	}

	want := make([]uint64, histBucketCount)
	for _, s := range samples {
		if got := bucketIndex(s.d); got != s.bucket {
			t.Fatalf("bucketIndex(%s) = %d, want %d", s.d, got, s.bucket)
		}
		m.Observe(MetricVerifyLatency, s.d)
		want[s.bucket]++
	}

	snap := m.Snapshot()
	buckets, ok := snap.Histograms[MetricVerifyLatency]
	if !ok {
		t.Fatal("snapshot has no latency histogram")
	}
	for i := range want {
		if buckets[i] != want[i] {
			t.Fatalf("bucket %d = %d, want %d", i, buckets[i], want[i])
		}
	}
}

func TestMetricsObserveNeedsLatencyEnabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Observe(MetricVerifyLatency, 10*time.Millisecond)
	if _, ok := m.Snapshot().Histograms[MetricVerifyLatency]; ok {
		t.Fatal("histogram present although latency tracking is off")
	}
}

func TestMetricsObserveOnlyTracksVerifyLatency(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	m.Observe(MetricLoginSuccess, 10*time.Millisecond)

	snap := m.Snapshot()
	for _, n := range snap.Histograms[MetricVerifyLatency] {
		if n != 0 {
			t.Fatalf("stray histogram sample: %v", snap.Histograms)
		}
	}
	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("Observe leaked into a counter: %d", got)
	}
}

func TestMetricsConcurrentIncrements(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers = 8
	const perWorker = 1000

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricVerificationSuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricVerificationSuccess); got != workers*perWorker {
		t.Fatalf("Value = %d, want %d", got, workers*perWorker)
	}
}

func TestVerifyAccessFeedsLatencyHistogram(t *testing.T) {
	_, rdb := newTestRedis(t)
	creds := newStubCredentials()
	engine := newTestEngine(t, rdb, creds)
	engine.metrics = NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	ctx := context.Background()

	seedCredential(t, engine, creds, "timed@example.com", "right-password")
	login, err := engine.Login(ctx, "timed@example.com", "right-password")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := engine.VerifyAccess(ctx, login.AccessToken); err != nil {
			t.Fatalf("VerifyAccess failed: %v", err)
		}
	}

	var total uint64
	for _, n := range engine.MetricsSnapshot().Histograms[MetricVerifyLatency] {
		total += n
	}
	if total != 3 {
		t.Fatalf("latency samples = %d, want 3", total)
	}
}
