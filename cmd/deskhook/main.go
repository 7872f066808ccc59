// deskhook captures the desktop on a fixed period, recognizes on-screen
// text and streams each snapshot to websocket and WebRTC subscribers.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/junsooki/deskhook/internal/capture"
	"github.com/junsooki/deskhook/internal/config"
	"github.com/junsooki/deskhook/internal/encoder"
	"github.com/junsooki/deskhook/internal/hook"
	"github.com/junsooki/deskhook/internal/hub"
	"github.com/junsooki/deskhook/internal/logging"
	"github.com/junsooki/deskhook/internal/ocr"
	"github.com/junsooki/deskhook/internal/peer"
	"github.com/junsooki/deskhook/internal/permissions"
	"github.com/junsooki/deskhook/internal/signaling"
	"github.com/junsooki/deskhook/internal/source"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.ParseHook(args)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}

	producer, err := newProducer(cfg, logger)
	if err != nil {
		return err
	}

	reporter := &statusReporter{logger: logger}
	ds, err := hook.New(hook.Options{
		Source: source.Options{
			Name:         cfg.Name,
			Session:      cfg.Session,
			Dependencies: cfg.Dependencies,
			Params:       cfg.Params,
			Status:       reporter.ReportStatus,
		},
		Producer: producer,
		Logger:   logger,
		IconPath: cfg.Icon,
	})
	if err != nil {
		return fmt.Errorf("configure hook: %w", err)
	}

	logger.Info("deskhook starting",
		"id", cfg.ID,
		"name", ds.Name(),
		"session", ds.Session(),
		"producer", cfg.Producer,
		"frequency", ds.Frequency().String(),
		"listen", cfg.Listen,
		"signaling", cfg.Signaling,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Both sinks encode the same snapshot image; the cache makes that one encode.
	enc := encoder.NewCached(encoder.NewJPEGEncoder(cfg.Quality))

	// flushers run after Fetch returns so the final status reaches subscribers.
	var flushers []func(context.Context) error

	if cfg.Listen != "" {
		ln, err := net.Listen("tcp", cfg.Listen)
		if err != nil {
			return fmt.Errorf("hub listen: %w", err)
		}
		h := hub.New(ds.Name(), logger)
		go h.Run(ctx)
		sink := hub.NewSink(h, enc, ds.Name(), ds.Session())
		ds.Subscribe(sink)
		reporter.add(sink)
		flushers = append(flushers, h.Close)

		srv := &http.Server{Handler: newMux(ds, h), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("hub server failed", "error", err)
			}
		}()
		defer shutdown(srv, logger)
	}

	if cfg.Signaling != "" {
		host, sig, err := startWebRTC(ctx, cfg, ds, enc, logger)
		if err != nil {
			return err
		}
		defer sig.Close()
		defer host.Close()
		ds.Subscribe(host)
		reporter.add(host)
		flushers = append(flushers, host.Flush)
	}

	err = ds.Fetch(ctx)
	flush(flushers, logger)
	if errors.Is(err, context.Canceled) {
		logger.Info("deskhook stopped")
		return nil
	}
	return err
}

func newProducer(cfg *config.HookConfig, logger *slog.Logger) (capture.Producer, error) {
	if cfg.Producer == config.ProducerSynthetic {
		return capture.NewSynthetic(), nil
	}

	if !permissions.HasScreenRecording() {
		logger.Warn("screen recording permission not granted, requesting")
		permissions.RequestScreenRecording()
		return nil, errors.New("grant Screen Recording permission in System Settings and restart")
	}
	grabber, err := capture.NewScreenGrabber(cfg.Display)
	if err != nil {
		return nil, fmt.Errorf("capture init: %w", err)
	}
	logger.Info("capturing display", "display", grabber.Display())
	recognizer, err := ocr.NewTesseract(ocr.Options{Binary: cfg.OCR.Binary, Languages: cfg.OCR.Languages})
	if err != nil {
		return nil, fmt.Errorf("ocr init: %w", err)
	}
	if !recognizer.Available() {
		return nil, fmt.Errorf("%w: %s not found in PATH", ocr.ErrUnavailable, cfg.OCR.Binary)
	}
	return capture.NewDesktop(grabber, recognizer)
}

func startWebRTC(ctx context.Context, cfg *config.HookConfig, ds *hook.DataSource, enc encoder.Encoder, logger *slog.Logger) (*peer.Host, *signaling.Client, error) {
	var host *peer.Host
	sig := signaling.NewClient(cfg.Signaling, cfg.ID, signaling.ClientTypeHook, signaling.Handler{
		OnRegistered: func() {
			logger.Info("registered with signaling server", "id", cfg.ID)
		},
		OnOffer: func(from string, payload json.RawMessage) {
			logger.Info("received offer", "viewer", from)
			go func() {
				if err := host.HandleOffer(ctx, from, payload); err != nil {
					logger.Warn("handle offer", "viewer", from, "error", err)
				}
			}()
		},
		OnICECandidate: func(from string, payload json.RawMessage) {
			if err := host.HandleICECandidate(from, payload); err != nil {
				logger.Debug("handle ice candidate", "viewer", from, "error", err)
			}
		},
		OnError: func(msg string) {
			logger.Warn("signaling error", "message", msg)
		},
	}, logger)
	host = peer.NewHost(peer.HostOptions{
		Signaler: sig,
		Encoder:  enc,
		Source:   ds.Name(),
		Session:  ds.Session(),
		Logger:   logger,
	})

	if err := sig.Connect(ctx); err != nil {
		host.Close()
		return nil, nil, err
	}
	return host, sig, nil
}

func newMux(ds *hook.DataSource, h *hub.Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	mux.HandleFunc("/icon.svg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/svg+xml")
		fmt.Fprint(w, ds.Icon())
	})
	mux.HandleFunc("/connection", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ds.ConnectionData())
	})
	return mux
}

func flush(flushers []func(context.Context) error, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, f := range flushers {
		if err := f(ctx); err != nil {
			logger.Warn("flush subscribers", "error", err)
		}
	}
}

func shutdown(srv *http.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("hub server shutdown", "error", err)
	}
}

type statusSink interface {
	ReportStatus(name string, status source.Status)
}

// statusReporter logs lifecycle transitions and forwards them to every
// registered sink.
type statusReporter struct {
	logger *slog.Logger
	sinks  []statusSink
}

func (r *statusReporter) add(s statusSink) {
	r.sinks = append(r.sinks, s)
}

func (r *statusReporter) ReportStatus(name string, status source.Status) {
	r.logger.Info("source status", "source", name, "status", string(status))
	for _, s := range r.sinks {
		s.ReportStatus(name, status)
	}
}
