// Package config parses command-line flags and the optional YAML file for
// the deskhook and viewer binaries.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Producer names.
const (
	ProducerDesktop   = "desktop"
	ProducerSynthetic = "synthetic"
)

// LogConfig selects the log level and handler format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// OCRConfig selects the tesseract binary and recognition languages.
type OCRConfig struct {
	Binary    string   `yaml:"binary"`
	Languages []string `yaml:"languages"`
}

// HookConfig holds all runtime configuration for the deskhook binary.
type HookConfig struct {
	Name         string         `yaml:"name"`
	Session      string         `yaml:"session"`
	Dependencies []string       `yaml:"dependencies"`
	Params       map[string]any `yaml:"params"`
	Producer     string         `yaml:"producer"`
	Display      int            `yaml:"display"`
	OCR          OCRConfig      `yaml:"ocr"`
	Listen       string         `yaml:"listen"`
	Signaling    string         `yaml:"signaling"`
	ID           string         `yaml:"id"`
	Quality      int            `yaml:"quality"`
	Icon         string         `yaml:"icon"`
	Log          LogConfig      `yaml:"log"`
}

func defaultHookConfig() HookConfig {
	return HookConfig{
		Name:     "desktop",
		Producer: ProducerDesktop,
		OCR:      OCRConfig{Binary: "tesseract", Languages: []string{"eng"}},
		Listen:   "127.0.0.1:8090",
		Quality:  70,
		Log:      LogConfig{Level: "info", Format: "json"},
	}
}

// ParseHook parses args (without the program name) for the deskhook binary.
// Values from --config are applied first; flags set on the command line win.
func ParseHook(args []string) (*HookConfig, error) {
	var (
		path      string
		frequency float64
		flags     = defaultHookConfig()
	)

	fs := pflag.NewFlagSet("deskhook", pflag.ContinueOnError)
	fs.StringVar(&path, "config", "", "YAML config file")
	fs.StringVar(&flags.Name, "name", flags.Name, "Data source name")
	fs.StringVar(&flags.Session, "session", "", "Session id (generated if empty)")
	fs.StringSliceVar(&flags.Dependencies, "dependency", nil, "Names of sources this one depends on")
	fs.Float64Var(&frequency, "frequency", 0, "Seconds between snapshots (default 5)")
	fs.StringVar(&flags.Producer, "producer", flags.Producer, "Snapshot producer: desktop or synthetic")
	fs.IntVar(&flags.Display, "display", 0, "Display index to capture (0 = primary)")
	fs.StringVar(&flags.OCR.Binary, "ocr-binary", flags.OCR.Binary, "Tesseract executable")
	fs.StringSliceVar(&flags.OCR.Languages, "ocr-lang", flags.OCR.Languages, "OCR languages")
	fs.StringVar(&flags.Listen, "listen", flags.Listen, "Websocket hub listen address (empty disables)")
	fs.StringVar(&flags.Signaling, "signaling", "", "Signaling server websocket URL (empty disables WebRTC)")
	fs.StringVar(&flags.ID, "id", "", "Hook ID announced to the signaling server (generated if empty)")
	fs.IntVar(&flags.Quality, "quality", flags.Quality, "JPEG quality (1-100)")
	fs.StringVar(&flags.Icon, "icon", "", "SVG icon file")
	fs.StringVar(&flags.Log.Level, "log-level", flags.Log.Level, "Log level: debug, info, warn, error")
	fs.StringVar(&flags.Log.Format, "log-format", flags.Log.Format, "Log format: json or text")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	cfg := defaultHookConfig()
	if path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return nil, err
		}
	}

	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "name":
			cfg.Name = flags.Name
		case "session":
			cfg.Session = flags.Session
		case "dependency":
			cfg.Dependencies = flags.Dependencies
		case "frequency":
			if cfg.Params == nil {
				cfg.Params = map[string]any{}
			}
			cfg.Params["frequency"] = frequency
		case "producer":
			cfg.Producer = flags.Producer
		case "display":
			cfg.Display = flags.Display
		case "ocr-binary":
			cfg.OCR.Binary = flags.OCR.Binary
		case "ocr-lang":
			cfg.OCR.Languages = flags.OCR.Languages
		case "listen":
			cfg.Listen = flags.Listen
		case "signaling":
			cfg.Signaling = flags.Signaling
		case "id":
			cfg.ID = flags.ID
		case "quality":
			cfg.Quality = flags.Quality
		case "icon":
			cfg.Icon = flags.Icon
		case "log-level":
			cfg.Log.Level = flags.Log.Level
		case "log-format":
			cfg.Log.Format = flags.Log.Format
		}
	})

	if cfg.Producer != ProducerDesktop && cfg.Producer != ProducerSynthetic {
		return nil, fmt.Errorf("unknown producer %q (want %s or %s)", cfg.Producer, ProducerDesktop, ProducerSynthetic)
	}
	if cfg.ID == "" {
		cfg.ID = fmt.Sprintf("hook-%s", randomID())
	}
	return &cfg, nil
}

// ViewerConfig holds configuration for the viewer binary.
type ViewerConfig struct {
	SignalingURL string
	ViewerID     string
	HookID       string
	LogLevel     string
}

// ParseViewer parses args (without the program name) for the viewer binary.
func ParseViewer(args []string) (*ViewerConfig, error) {
	cfg := &ViewerConfig{}
	fs := pflag.NewFlagSet("viewer", pflag.ContinueOnError)
	fs.StringVar(&cfg.SignalingURL, "signaling", "ws://localhost:8080", "Signaling server websocket URL")
	fs.StringVar(&cfg.ViewerID, "id", "", "Viewer ID (generated if empty)")
	fs.StringVar(&cfg.HookID, "hook", "", "Hook ID to connect to (required)")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.HookID == "" {
		return nil, errors.New("--hook is required")
	}
	if cfg.ViewerID == "" {
		cfg.ViewerID = fmt.Sprintf("viewer-%s", randomID())
	}
	return cfg, nil
}

func loadYAML(path string, cfg *HookConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func randomID() string {
	b := make([]byte, 4)
	rand.Read(b)
	return hex.EncodeToString(b)
}
