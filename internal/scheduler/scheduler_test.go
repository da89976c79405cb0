package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimeworker/internal/domain"
	"github.com/hamed0406/uptimeworker/internal/metrics"
	"github.com/hamed0406/uptimeworker/internal/repo"
	"github.com/hamed0406/uptimeworker/internal/repo/memory"
)

// --- fakes ---

const checkID = "abcdefghij0123456789"

func checkRecord(id string) repo.Record {
	return repo.Record{
		"id":             id,
		"userPhone":      "5551234567",
		"protocol":       "http",
		"url":            "example.com/health",
		"method":         "get",
		"successCodes":   []any{float64(200)},
		"timeoutSeconds": float64(3),
	}
}

type scriptedProber struct {
	mu    sync.Mutex
	next  domain.Outcome
	calls int
	block chan struct{}
	panic bool
}

func (p *scriptedProber) set(out domain.Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next = out
}

func (p *scriptedProber) Probe(ctx context.Context, c domain.Check) domain.Outcome {
	p.mu.Lock()
	p.calls++
	out, block, boom := p.next, p.block, p.panic
	p.mu.Unlock()
	if boom {
		panic("prober exploded")
	}
	if block != nil {
		<-block
	}
	return out
}

func (p *scriptedProber) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
	to   []string
	err  error
}

func (n *recordingNotifier) Send(ctx context.Context, recipient, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.to = append(n.to, recipient)
	n.sent = append(n.sent, message)
	return n.err
}

func (n *recordingNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent...)
}

type memAudit struct {
	mu      sync.Mutex
	entries map[string][][]byte
}

func (a *memAudit) Append(name string, entry []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.entries == nil {
		a.entries = map[string][][]byte{}
	}
	a.entries[name] = append(a.entries[name], entry)
	return nil
}

func (a *memAudit) last(t *testing.T, name string) domain.LogEntry {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	require.NotEmpty(t, a.entries[name])
	var e domain.LogEntry
	require.NoError(t, json.Unmarshal(a.entries[name][len(a.entries[name])-1], &e))
	return e
}

type countingRotator struct{ n atomic.Int32 }

func (r *countingRotator) Rotate() (int, error) {
	r.n.Add(1)
	return 0, nil
}

type failingUpdates struct {
	repo.RecordStore
}

func (f failingUpdates) Update(ctx context.Context, kind, id string, rec repo.Record) error {
	return errors.New("disk full")
}

func intp(i int) *int { return &i }

func ok(code int) domain.Outcome {
	return domain.Outcome{Failure: domain.FailureNone, ResponseCode: intp(code)}
}

type harness struct {
	store    *memory.Store
	prober   *scriptedProber
	notifier *recordingNotifier
	audit    *memAudit
	sched    *Scheduler
}

func newHarness(t *testing.T, recs ...repo.Record) *harness {
	t.Helper()
	h := &harness{
		store:    memory.New(),
		prober:   &scriptedProber{next: ok(200)},
		notifier: &recordingNotifier{},
		audit:    &memAudit{},
	}
	for _, r := range recs {
		id, _ := r["id"].(string)
		require.NoError(t, h.store.Create(context.Background(), repo.KindChecks, id, r))
	}
	h.sched = New(zap.NewNop(), h.store, h.prober, h.notifier, h.audit, nil, metrics.New(), Config{})
	return h
}

func (h *harness) sweep(t *testing.T) {
	t.Helper()
	_, err := h.sched.Sweep(context.Background())
	require.NoError(t, err)
	h.sched.Wait()
}

func (h *harness) check(t *testing.T, id string) domain.Check {
	t.Helper()
	rec, err := h.store.Read(context.Background(), repo.KindChecks, id)
	require.NoError(t, err)
	c, err := domain.ValidateRecord(rec)
	require.NoError(t, err)
	return c
}

// --- tests ---

func TestSweep_FirstEvaluationPersistsWithoutAlert(t *testing.T) {
	h := newHarness(t, checkRecord(checkID))
	h.prober.set(domain.Outcome{Failure: domain.FailureNetwork, Err: "refused"})

	h.sweep(t)

	c := h.check(t, checkID)
	assert.Equal(t, domain.StateDown, c.State)
	require.NotNil(t, c.LastChecked)
	assert.Empty(t, h.notifier.messages(), "first evaluation never alerts")

	e := h.audit.last(t, checkID)
	assert.Equal(t, domain.StateDown, e.State)
	assert.False(t, e.Alert)
	assert.Equal(t, domain.FailureNetwork, e.Outcome.Failure)
	assert.Equal(t, domain.StateUnknown, e.Check.State, "log holds the pre-evaluation snapshot")
}

func TestSweep_AlertsOncePerTransition(t *testing.T) {
	h := newHarness(t, checkRecord(checkID))

	h.sweep(t) // unknown -> up, first evaluation
	h.sweep(t) // up -> up
	assert.Empty(t, h.notifier.messages())

	h.prober.set(ok(500))
	h.sweep(t) // up -> down
	h.sweep(t) // down -> down
	h.prober.set(domain.Outcome{Failure: domain.FailureTimeout, Err: "timeout"})
	h.sweep(t) // still down

	msgs := h.notifier.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Alert: Your check for GET http://example.com/health is currently down", msgs[0])
	assert.Equal(t, []string{"5551234567"}, h.notifier.to)

	h.prober.set(ok(200))
	h.sweep(t) // down -> up
	msgs = h.notifier.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Alert: Your check for GET http://example.com/health is currently up", msgs[1])

	assert.Equal(t, 6, h.prober.count())
	assert.Equal(t, float64(2), testutil.ToFloat64(h.sched.Metrics.Alerts.WithLabelValues("sent")))
}

func TestSweep_UpCheckReceiving500(t *testing.T) {
	rec := checkRecord(checkID)
	rec["state"] = "up"
	rec["lastChecked"] = float64(time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC).UnixMilli())
	h := newHarness(t, rec)
	h.prober.set(ok(500))

	h.sweep(t)

	assert.Equal(t, domain.StateDown, h.check(t, checkID).State)
	e := h.audit.last(t, checkID)
	assert.True(t, e.Alert)
	assert.Len(t, h.notifier.messages(), 1)
}

func TestSweep_InvalidRecordsAreSkipped(t *testing.T) {
	noCodes := checkRecord("aaaaaaaaaaaaaaaaaaaa")
	delete(noCodes, "successCodes")
	slow := checkRecord("bbbbbbbbbbbbbbbbbbbb")
	slow["timeoutSeconds"] = float64(6)
	good := checkRecord(checkID)

	h := newHarness(t, noCodes, slow, good)
	h.sweep(t)

	assert.Equal(t, 1, h.prober.count(), "only the valid check is probed")
	for _, id := range []string{"aaaaaaaaaaaaaaaaaaaa", "bbbbbbbbbbbbbbbbbbbb"} {
		rec, err := h.store.Read(context.Background(), repo.KindChecks, id)
		require.NoError(t, err)
		_, touched := rec["lastChecked"]
		assert.False(t, touched, "malformed record %s must not be updated", id)
	}
	assert.Equal(t, float64(2), testutil.ToFloat64(h.sched.Metrics.ChecksSkipped.WithLabelValues("invalid")))
}

func TestSweep_PersistFailureSuppressesAlert(t *testing.T) {
	rec := checkRecord(checkID)
	rec["state"] = "up"
	rec["lastChecked"] = float64(1700000000000)
	h := newHarness(t, rec)
	h.sched.Store = failingUpdates{h.store}
	h.prober.set(ok(503))

	h.sweep(t)

	assert.Empty(t, h.notifier.messages())
	assert.Equal(t, float64(1), testutil.ToFloat64(h.sched.Metrics.PersistErrors))
	assert.Equal(t, domain.StateUp, h.check(t, checkID).State, "state change lost for this cycle")
}

func TestSweep_NotifyFailureKeepsState(t *testing.T) {
	rec := checkRecord(checkID)
	rec["state"] = "up"
	rec["lastChecked"] = float64(1700000000000)
	h := newHarness(t, rec)
	h.notifier.err = errors.New("sms gateway down")
	h.prober.set(ok(503))

	h.sweep(t)

	assert.Len(t, h.notifier.messages(), 1, "one attempt, no retry")
	assert.Equal(t, domain.StateDown, h.check(t, checkID).State)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.sched.Metrics.Alerts.WithLabelValues("error")))
}

func TestSweep_PanicInOneCheckIsContained(t *testing.T) {
	h := newHarness(t, checkRecord(checkID))
	h.prober.panic = true

	require.NotPanics(t, func() { h.sweep(t) })

	rec, err := h.store.Read(context.Background(), repo.KindChecks, checkID)
	require.NoError(t, err)
	_, touched := rec["lastChecked"]
	assert.False(t, touched)
}

func TestSweep_DoesNotWaitForProbes(t *testing.T) {
	h := newHarness(t, checkRecord(checkID), checkRecord("bbbbbbbbbbbbbbbbbbbb"))
	h.prober.block = make(chan struct{})

	n, err := h.sched.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// a second, overlapping sweep starts while the first is still probing
	n, err = h.sched.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	close(h.prober.block)
	h.sched.Wait()
	assert.Equal(t, 4, h.prober.count())
}

func TestSweep_CancelledProbeIsNotPersisted(t *testing.T) {
	h := newHarness(t, checkRecord(checkID))
	h.prober.block = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	_, err := h.sched.Sweep(ctx)
	require.NoError(t, err)
	cancel()
	close(h.prober.block)
	h.sched.Wait()

	rec, err := h.store.Read(context.Background(), repo.KindChecks, checkID)
	require.NoError(t, err)
	_, touched := rec["lastChecked"]
	assert.False(t, touched)
}

func TestRun_ImmediateSweepAndRotationThenStops(t *testing.T) {
	h := newHarness(t, checkRecord(checkID))
	rot := &countingRotator{}
	h.sched.Rotator = rot
	h.sched.Config.SweepInterval = time.Hour
	h.sched.Config.RotateInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.sched.Run(ctx) }()

	require.Eventually(t, func() bool {
		return h.prober.count() == 1 && rot.n.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	_, err := h.sched.TriggerSweep()
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestRun_TicksRepeatSweeps(t *testing.T) {
	h := newHarness(t, checkRecord(checkID))
	h.sched.Config.SweepInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.sched.Run(ctx)

	require.Eventually(t, func() bool { return h.prober.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestTriggerSweep_WhileRunning(t *testing.T) {
	h := newHarness(t, checkRecord(checkID))
	h.sched.Config.SweepInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.sched.Run(ctx)

	require.Eventually(t, func() bool { return h.prober.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	n, err := h.sched.TriggerSweep()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Eventually(t, func() bool { return h.prober.count() == 2 }, 2*time.Second, 5*time.Millisecond)
}

type trackingProber struct {
	active atomic.Int32
}

func (p *trackingProber) Probe(ctx context.Context, c domain.Check) domain.Outcome {
	p.active.Add(1)
	defer p.active.Add(-1)
	time.Sleep(5 * time.Millisecond)
	return ok(200)
}

func TestRun_WaitsForTriggeredSweepsRacingShutdown(t *testing.T) {
	for i := 0; i < 50; i++ {
		h := newHarness(t, checkRecord(checkID))
		pr := &trackingProber{}
		h.sched.Prober = pr
		h.sched.Config.SweepInterval = 0

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- h.sched.Run(ctx) }()
		require.Eventually(t, func() bool {
			h.sched.mu.Lock()
			defer h.sched.mu.Unlock()
			return h.sched.base != nil
		}, time.Second, time.Millisecond)

		triggered := make(chan struct{})
		go func() {
			defer close(triggered)
			for {
				if _, err := h.sched.TriggerSweep(); errors.Is(err, ErrNotRunning) {
					return
				}
			}
		}()
		time.Sleep(time.Millisecond)
		cancel()

		require.NoError(t, <-done)
		assert.Zero(t, pr.active.Load(), "pipeline still running after Run returned (iteration %d)", i)
		<-triggered
		h.sched.Wait()
	}
}
