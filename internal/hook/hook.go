// Package hook implements the knowledge hook data source: a fetch loop that
// captures the desktop every few seconds and broadcasts each snapshot to the
// source's subscribers until the first fault.
package hook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/junsooki/deskhook/internal/capture"
	"github.com/junsooki/deskhook/internal/descriptor"
	"github.com/junsooki/deskhook/internal/logging"
	"github.com/junsooki/deskhook/internal/snapshot"
	"github.com/junsooki/deskhook/internal/source"
)

// DefaultFrequency is the capture period when the frequency param is unset.
const DefaultFrequency = 5 * time.Second

// Options configure a DataSource.
type Options struct {
	Source   source.Options
	Producer capture.Producer
	Logger   *slog.Logger
	Clock    func() time.Time
	Sleeper  func(context.Context, time.Duration) error
	IconPath string
}

// DataSource periodically snapshots the desktop.
type DataSource struct {
	*source.Base

	producer  capture.Producer
	logger    *slog.Logger
	clock     func() time.Time
	sleeper   func(context.Context, time.Duration) error
	frequency time.Duration
	iconPath  string

	state atomic.Int32
}

// New validates options and returns a DataSource in the NotStarted state.
func New(opts Options) (*DataSource, error) {
	if opts.Producer == nil {
		return nil, errors.New("producer is required")
	}
	base := source.NewBase(opts.Source)

	frequency, err := base.Params().Duration(descriptor.FieldFrequency, DefaultFrequency)
	if err != nil {
		return nil, err
	}
	if frequency <= 0 {
		return nil, fmt.Errorf("frequency must be positive, got %v", frequency)
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	sleeper := opts.Sleeper
	if sleeper == nil {
		sleeper = defaultSleeper
	}

	logger := logging.OrDefault(opts.Logger).With("source", base.Name(), "session", base.Session())

	return &DataSource{
		Base:      base,
		producer:  opts.Producer,
		logger:    logger,
		clock:     clock,
		sleeper:   sleeper,
		frequency: frequency,
		iconPath:  opts.IconPath,
	}, nil
}

// Frequency returns the delay between cycles.
func (d *DataSource) Frequency() time.Duration {
	return d.frequency
}

// State returns the current lifecycle state.
func (d *DataSource) State() State {
	return State(d.state.Load())
}

// Icon returns the SVG icon for this source.
func (d *DataSource) Icon() string {
	return descriptor.Icon(d.iconPath)
}

// ConnectionData describes how this source is configured.
func (d *DataSource) ConnectionData() descriptor.Connection {
	return descriptor.ConnectionData()
}

// Fetch runs the capture loop. It reports "started", then captures and
// broadcasts one snapshot per cycle, sleeping Frequency between cycles. The
// first fault is logged, reported as "error" and returned as a *CycleError;
// the source never runs again. Cancelling ctx stops the loop at the next
// cycle boundary or during the sleep and returns ctx.Err() without an error
// report.
func (d *DataSource) Fetch(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !d.state.CompareAndSwap(int32(NotStarted), int32(Running)) {
		return ErrAlreadyStarted
	}

	d.logger.Info("starting knowledge hook",
		"frequency", d.frequency.String(),
		"dependencies", d.Dependencies(),
		"subscribers", d.SubscriberCount(),
		"progress_hook", d.HasProgress(),
	)
	d.ReportStatus(source.StatusStarted)

	for cycle := 1; ; cycle++ {
		if err := ctx.Err(); err != nil {
			return d.stop(err)
		}
		if err := d.runCycle(ctx, cycle); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return d.stop(ctxErr)
			}
			return d.fail(err)
		}
	}
}

func (d *DataSource) runCycle(ctx context.Context, cycle int) (err error) {
	stage := StageCapture
	defer func() {
		if r := recover(); r != nil {
			err = &CycleError{Stage: stage, Cycle: cycle, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	out, err := d.producer.Capture(ctx)
	if err != nil {
		return &CycleError{Stage: stage, Cycle: cycle, Err: err}
	}
	ready := d.clock()

	stage = StageBuild
	snap, err := snapshot.Build(out.Image, out.Regions, ready)
	if err != nil {
		return &CycleError{Stage: stage, Cycle: cycle, Err: err}
	}
	d.logSnapshot(cycle, snap)

	stage = StageBroadcast
	if err := d.Update(ctx, snap); err != nil {
		return &CycleError{Stage: stage, Cycle: cycle, Err: err}
	}

	stage = StageWait
	if err := d.sleeper(ctx, d.frequency); err != nil {
		return &CycleError{Stage: stage, Cycle: cycle, Err: err}
	}
	return nil
}

func (d *DataSource) logSnapshot(cycle int, snap snapshot.Snapshot) {
	d.logger.Info("snapshot taken",
		"cycle", cycle,
		"timestamp", snap.Timestamp.Format(time.RFC3339Nano),
		"shape", snap.Shape().String(),
		"regions", len(snap.Regions),
	)
	for _, r := range snap.Regions {
		d.logger.Info("text region", "cycle", cycle, "text", r.Text, "rect", r.Rect[:])
	}
}

func (d *DataSource) fail(err error) error {
	d.state.Store(int32(Terminated))
	attrs := []any{"error", err}
	var cycleErr *CycleError
	if errors.As(err, &cycleErr) {
		attrs = append(attrs, "stage", string(cycleErr.Stage), "cycle", cycleErr.Cycle)
	}
	d.logger.Error("fetch failed", attrs...)
	d.ReportStatus(source.StatusError)
	return err
}

func (d *DataSource) stop(err error) error {
	d.state.Store(int32(Terminated))
	d.logger.Info("knowledge hook stopped", "reason", err.Error())
	return err
}

func defaultSleeper(ctx context.Context, wait time.Duration) error {
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
