package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/junsooki/deskhook/internal/capture"
	"github.com/junsooki/deskhook/internal/snapshot"
	"github.com/junsooki/deskhook/internal/source"
)

// recorder captures the ordered activity of one fetch run.
type recorder struct {
	mu         sync.Mutex
	events     []string
	deliveries []snapshot.Snapshot
	sleeps     []time.Duration
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recorder) status(_ string, s source.Status) {
	r.add("status:" + string(s))
}

func (r *recorder) Update(_ context.Context, snap snapshot.Snapshot) error {
	r.mu.Lock()
	r.deliveries = append(r.deliveries, snap)
	r.mu.Unlock()
	r.add("deliver")
	return nil
}

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.mu.Unlock()
	return nil
}

func (r *recorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

// scriptedProducer succeeds okCalls times, then fails.
func scriptedProducer(okCalls int, failErr error, calls *int) capture.Producer {
	return capture.ProducerFunc(func(context.Context) (capture.Output, error) {
		*calls++
		if *calls > okCalls {
			return capture.Output{}, failErr
		}
		return capture.Output{
			Image:   image.NewRGBA(image.Rect(0, 0, 10, 10)),
			Regions: []snapshot.Region{{Text: "A", Rect: snapshot.Rect{0, 0, 5, 5}}},
		}, nil
	})
}

func steppingClock() func() time.Time {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSource(t *testing.T, rec *recorder, producer capture.Producer, params source.Params) *DataSource {
	t.Helper()
	ds, err := New(Options{
		Source: source.Options{
			Name:        "knowledge-hook",
			Params:      params,
			Status:      rec.status,
			Subscribers: []source.Subscriber{rec},
		},
		Producer: producer,
		Logger:   discardLogger(),
		Clock:    steppingClock(),
		Sleeper:  rec.sleep,
	})
	if err != nil {
		t.Fatalf("new data source: %v", err)
	}
	return ds
}

func TestFetchDeliversUntilProducerFails(t *testing.T) {
	rec := &recorder{}
	calls := 0
	boom := errors.New("desktop unavailable")
	ds := newTestSource(t, rec, scriptedProducer(3, boom, &calls), source.Params{"frequency": 1})

	err := ds.Fetch(context.Background())

	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if cycleErr.Stage != StageCapture || cycleErr.Cycle != 4 || !errors.Is(err, boom) {
		t.Fatalf("unexpected cycle error %+v", cycleErr)
	}
	if calls != 4 {
		t.Fatalf("expected 4 producer calls, got %d", calls)
	}
	if len(rec.deliveries) != 3 {
		t.Fatalf("expected 3 deliveries, got %d", len(rec.deliveries))
	}
	for i := 1; i < len(rec.deliveries); i++ {
		if !rec.deliveries[i].Timestamp.After(rec.deliveries[i-1].Timestamp) {
			t.Fatalf("timestamps not increasing at %d", i)
		}
	}
	for _, snap := range rec.deliveries {
		if len(snap.Regions) != 1 || snap.Regions[0].Text != "A" {
			t.Fatalf("unexpected regions %+v", snap.Regions)
		}
		if snap.Shape() != (snapshot.Shape{Height: 10, Width: 10, Channels: 4}) {
			t.Fatalf("unexpected shape %v", snap.Shape())
		}
	}

	want := "status:started,deliver,deliver,deliver,status:error"
	if got := strings.Join(rec.events, ","); got != want {
		t.Fatalf("unexpected event order\n got: %s\nwant: %s", got, want)
	}
	if len(rec.sleeps) != 3 {
		t.Fatalf("expected 3 sleeps, got %d", len(rec.sleeps))
	}
	for _, d := range rec.sleeps {
		if d != time.Second {
			t.Fatalf("expected 1s sleep, got %v", d)
		}
	}
	if ds.State() != Terminated {
		t.Fatalf("expected terminated state, got %v", ds.State())
	}
}

func TestFetchImmediateFailure(t *testing.T) {
	rec := &recorder{}
	calls := 0
	ds := newTestSource(t, rec, scriptedProducer(0, errors.New("no display"), &calls), nil)

	if err := ds.Fetch(context.Background()); err == nil {
		t.Fatalf("expected fetch error")
	}
	if len(rec.deliveries) != 0 {
		t.Fatalf("expected no deliveries, got %d", len(rec.deliveries))
	}
	if rec.count("status:started") != 1 || rec.count("status:error") != 1 {
		t.Fatalf("unexpected status events %v", rec.events)
	}
	if len(rec.sleeps) != 0 {
		t.Fatalf("failed cycle must not sleep")
	}
}

func TestFetchIsOneShot(t *testing.T) {
	rec := &recorder{}
	calls := 0
	ds := newTestSource(t, rec, scriptedProducer(0, errors.New("fail"), &calls), nil)

	if ds.State() != NotStarted {
		t.Fatalf("expected not started, got %v", ds.State())
	}
	_ = ds.Fetch(context.Background())
	if err := ds.Fetch(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
	if calls != 1 || rec.count("status:started") != 1 {
		t.Fatalf("terminated source ran again: calls=%d events=%v", calls, rec.events)
	}
}

func TestDefaultFrequency(t *testing.T) {
	rec := &recorder{}
	calls := 0
	ds := newTestSource(t, rec, scriptedProducer(1, errors.New("done"), &calls), source.Params{"unrelated": true})

	if ds.Frequency() != 5*time.Second {
		t.Fatalf("expected default 5s, got %v", ds.Frequency())
	}
	_ = ds.Fetch(context.Background())
	if len(rec.sleeps) != 1 || rec.sleeps[0] != 5*time.Second {
		t.Fatalf("expected a single 5s sleep, got %v", rec.sleeps)
	}
}

func TestNewRejectsBadConfiguration(t *testing.T) {
	calls := 0
	producer := scriptedProducer(0, nil, &calls)
	for _, freq := range []any{0, -1, "0s", "later"} {
		_, err := New(Options{Producer: producer, Source: source.Options{Params: source.Params{"frequency": freq}}})
		if err == nil {
			t.Fatalf("expected error for frequency %v", freq)
		}
	}
	if _, err := New(Options{}); err == nil {
		t.Fatalf("expected error without producer")
	}
}

func TestFetchStopsOnBroadcastFailure(t *testing.T) {
	rec := &recorder{}
	calls := 0
	sinkErr := errors.New("subscriber gone")
	ds := newTestSource(t, rec, scriptedProducer(10, nil, &calls), nil)
	ds.Subscribe(source.SubscriberFunc(func(context.Context, snapshot.Snapshot) error {
		return sinkErr
	}))

	err := ds.Fetch(context.Background())
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) || cycleErr.Stage != StageBroadcast {
		t.Fatalf("expected broadcast stage error, got %v", err)
	}
	if !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink error to be wrapped, got %v", err)
	}
	if calls != 1 || rec.count("status:error") != 1 {
		t.Fatalf("expected single cycle and error report, calls=%d events=%v", calls, rec.events)
	}
}

func TestFetchStopsOnMalformedOutput(t *testing.T) {
	rec := &recorder{}
	producer := capture.ProducerFunc(func(context.Context) (capture.Output, error) {
		return capture.Output{Regions: []snapshot.Region{{Text: "orphan"}}}, nil
	})
	ds := newTestSource(t, rec, producer, nil)

	err := ds.Fetch(context.Background())
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) || cycleErr.Stage != StageBuild {
		t.Fatalf("expected build stage error, got %v", err)
	}
	if !errors.Is(err, snapshot.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if len(rec.deliveries) != 0 {
		t.Fatalf("malformed output must not be delivered")
	}
}

func TestFetchRecoversProducerPanic(t *testing.T) {
	rec := &recorder{}
	producer := capture.ProducerFunc(func(context.Context) (capture.Output, error) {
		panic("driver crashed")
	})
	ds := newTestSource(t, rec, producer, nil)

	err := ds.Fetch(context.Background())
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) || cycleErr.Stage != StageCapture {
		t.Fatalf("expected capture stage error, got %v", err)
	}
	if rec.count("status:error") != 1 {
		t.Fatalf("expected error report, got %v", rec.events)
	}
}

func TestFetchCancellationInterruptsSleep(t *testing.T) {
	rec := &recorder{}
	calls := 0
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ds, err := New(Options{
		Source: source.Options{
			Params: source.Params{"frequency": "1h"},
			Status: rec.status,
			Subscribers: []source.Subscriber{source.SubscriberFunc(func(context.Context, snapshot.Snapshot) error {
				cancel()
				return nil
			})},
		},
		Producer: scriptedProducer(10, nil, &calls),
		Logger:   discardLogger(),
	})
	if err != nil {
		t.Fatalf("new data source: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- ds.Fetch(ctx) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("fetch did not stop after cancellation")
	}
	if calls != 1 {
		t.Fatalf("expected a single cycle, got %d", calls)
	}
	if rec.count("status:error") != 0 {
		t.Fatalf("cancellation must not report error: %v", rec.events)
	}
	if ds.State() != Terminated {
		t.Fatalf("expected terminated state, got %v", ds.State())
	}
}

func TestFetchWaitsAtLeastFrequency(t *testing.T) {
	const frequency = 30 * time.Millisecond
	var starts []time.Time
	calls := 0
	producer := capture.ProducerFunc(func(context.Context) (capture.Output, error) {
		starts = append(starts, time.Now())
		calls++
		if calls > 3 {
			return capture.Output{}, errors.New("stop")
		}
		return capture.Output{Image: image.NewRGBA(image.Rect(0, 0, 2, 2))}, nil
	})
	ds, err := New(Options{
		Source:   source.Options{Params: source.Params{"frequency": "30ms"}},
		Producer: producer,
		Logger:   discardLogger(),
	})
	if err != nil {
		t.Fatalf("new data source: %v", err)
	}

	_ = ds.Fetch(context.Background())
	if len(starts) != 4 {
		t.Fatalf("expected 4 cycles, got %d", len(starts))
	}
	for i := 1; i < len(starts); i++ {
		if gap := starts[i].Sub(starts[i-1]); gap < frequency {
			t.Fatalf("cycle %d started %v after previous, want >= %v", i+1, gap, frequency)
		}
	}
}

func TestFetchLogsDiagnostics(t *testing.T) {
	buf := &bytes.Buffer{}
	calls := 0
	rec := &recorder{}
	ds, err := New(Options{
		Source:   source.Options{Name: "knowledge-hook", Session: "s1", Dependencies: []string{"clipboard"}},
		Producer: scriptedProducer(1, errors.New("done"), &calls),
		Logger:   slog.New(slog.NewJSONHandler(buf, nil)),
		Clock:    steppingClock(),
		Sleeper:  rec.sleep,
	})
	if err != nil {
		t.Fatalf("new data source: %v", err)
	}
	_ = ds.Fetch(context.Background())

	var sawStart, sawSnapshot, sawRegion, sawFailure bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		switch entry["msg"] {
		case "starting knowledge hook":
			deps, _ := entry["dependencies"].([]any)
			sawStart = len(deps) == 1 && deps[0] == "clipboard"
		case "snapshot taken":
			sawSnapshot = entry["shape"] == "(10, 10, 4)" && entry["timestamp"] == "2024-01-01T00:00:01Z"
		case "text region":
			sawRegion = entry["text"] == "A"
		case "fetch failed":
			sawFailure = entry["stage"] == "capture" && entry["source"] == "knowledge-hook"
		}
	}
	if !sawStart || !sawSnapshot || !sawRegion || !sawFailure {
		t.Fatalf("missing diagnostics (start=%v snapshot=%v region=%v failure=%v):\n%s", sawStart, sawSnapshot, sawRegion, sawFailure, buf.String())
	}
}

func TestProgressHookIsInert(t *testing.T) {
	calls := 0
	progressed := false
	ds, err := New(Options{
		Source:   source.Options{Progress: func(string, int, int) { progressed = true }},
		Producer: scriptedProducer(2, errors.New("done"), &calls),
		Logger:   discardLogger(),
		Sleeper:  func(context.Context, time.Duration) error { return nil },
	})
	if err != nil {
		t.Fatalf("new data source: %v", err)
	}
	_ = ds.Fetch(context.Background())
	if progressed {
		t.Fatalf("progress hook must not be invoked")
	}
}

func TestDescriptorQueries(t *testing.T) {
	calls := 0
	ds, err := New(Options{Producer: scriptedProducer(0, nil, &calls)})
	if err != nil {
		t.Fatalf("new data source: %v", err)
	}
	if ds.Icon() == "" || ds.Icon() != ds.Icon() {
		t.Fatalf("icon query must be stable and non-empty")
	}
	a, b := ds.ConnectionData(), ds.ConnectionData()
	if a.Type != b.Type || strings.Join(a.Fields, ",") != strings.Join(b.Fields, ",") {
		t.Fatalf("connection descriptor not idempotent: %+v vs %+v", a, b)
	}
}
