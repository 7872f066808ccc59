// viewer connects to a deskhook over WebRTC and shows its snapshots with the
// recognized text regions outlined.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/junsooki/deskhook/internal/config"
	"github.com/junsooki/deskhook/internal/decoder"
	"github.com/junsooki/deskhook/internal/display"
	"github.com/junsooki/deskhook/internal/logging"
	"github.com/junsooki/deskhook/internal/peer"
	"github.com/junsooki/deskhook/internal/signaling"
	"github.com/junsooki/deskhook/internal/wire"
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
	cfg, err := config.ParseViewer(args)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: "text"})
	if err != nil {
		return err
	}
	logger.Info("viewer starting", "id", cfg.ViewerID, "signaling", cfg.SignalingURL, "hook", cfg.HookID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dec := decoder.NewImageDecoder()
	var disp display.Display = display.NewEbitenDisplay("deskhook " + cfg.HookID)

	var v *peer.Viewer
	var sig *signaling.Client
	sig = signaling.NewClient(cfg.SignalingURL, cfg.ViewerID, signaling.ClientTypeViewer, signaling.Handler{
		OnRegistered: func() {
			logger.Info("registered with signaling server")
			if err := sig.RequestHookList(); err != nil {
				logger.Warn("request hook list", "error", err)
			}
			go func() {
				if err := v.Connect(ctx); err != nil {
					logger.Error("viewer connect", "error", err)
					disp.SetStatus("connect failed")
				}
			}()
		},
		OnAnswer: func(from string, payload json.RawMessage) {
			if err := v.HandleAnswer(payload); err != nil {
				logger.Warn("handle answer", "error", err)
			}
		},
		OnICECandidate: func(from string, payload json.RawMessage) {
			if err := v.HandleICECandidate(payload); err != nil {
				logger.Warn("handle ice candidate", "error", err)
			}
		},
		OnHooksUpdated: func(hooks []signaling.HookInfo) {
			for _, h := range hooks {
				if h.ID == cfg.HookID && !h.Online {
					disp.SetStatus("hook offline")
				}
			}
		},
		OnHookDisconnected: func(hookID string) {
			if hookID == cfg.HookID {
				disp.SetStatus("hook disconnected")
			}
		},
		OnError: func(msg string) {
			logger.Warn("signaling error", "message", msg)
		},
	}, logger)

	v, err = peer.NewViewer(sig, cfg.HookID, peer.Config{}, logger)
	if err != nil {
		return err
	}
	defer v.Close()

	v.OnMessage(func(msg wire.Message) {
		switch msg.Type {
		case wire.TypeStatus:
			disp.SetStatus(msg.Status)
		case wire.TypeSnapshot:
			snap, err := msg.Snapshot(dec)
			if err != nil {
				logger.Warn("decode snapshot", "error", err)
				return
			}
			disp.SetStatus("running")
			disp.SetSnapshot(snap)
		}
	})

	if err := sig.Connect(ctx); err != nil {
		return err
	}
	defer sig.Close()

	// Ebitengine RunGame must be on the main goroutine (macOS requirement).
	return disp.Run()
}
