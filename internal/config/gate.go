package config

import (
	"errors"
	"io/fs"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// GateHints holds the upgrade copy shown next to blocked or upsold features.
// Keys are permission tokens; viper lower-cases them on load.
type GateHints struct {
	DefaultHint string            `mapstructure:"defaultHint"`
	Features    map[string]string `mapstructure:"features"`
}

func DefaultGateHints() GateHints {
	return GateHints{
		DefaultHint: "Upgrade your plan to unlock this feature.",
		Features: map[string]string{
			"advancedanalytics":    "Available on Growth and Enterprise plans.",
			"unlimitedconnections": "Available on Enterprise plans.",
			"advancedcampaigns":    "Available on Growth and Enterprise plans.",
			"prioritysupport":      "Available on Growth and Enterprise plans.",
			"dedicatedmanager":     "Available on Enterprise plans.",
			"whitelabel":           "Available on Enterprise plans after business verification.",
			"advancedapiaccess":    "Available on Enterprise plans after business verification.",
			"customintegrations":   "Available on Enterprise plans after business verification.",
		},
	}
}

type GateHintsHolder struct {
	current atomic.Value // holds GateHints
}

// NewGateHintsHolder loads gate.yml and keeps it fresh while the process runs.
func NewGateHintsHolder(cfg Config, log *zap.Logger) (*GateHintsHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.gate")

	v := viper.New()
	if cfg.GateHintsPath != "" {
		v.SetConfigFile(cfg.GateHintsPath)
	} else {
		v.SetConfigName("gate")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/marketplace")
		v.AddConfigPath(".")
	}

	defaults := DefaultGateHints()
	v.SetDefault("gate.defaultHint", defaults.DefaultHint)

	holder := &GateHintsHolder{}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		log.Info("gate hints file not found, using defaults")
		holder.current.Store(defaults)
		return holder, nil
	}

	hints, err := decodeGateHints(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(hints)

	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeGateHints(v)
		if err != nil {
			log.Warn("gate hints reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("gate hints reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()

	return holder, nil
}

// NewStaticGateHints returns a holder that never reloads.
func NewStaticGateHints(hints GateHints) *GateHintsHolder {
	holder := &GateHintsHolder{}
	holder.current.Store(normalizeGateHints(hints))
	return holder
}

func (h *GateHintsHolder) Get() GateHints {
	if h == nil {
		return DefaultGateHints()
	}
	hints, ok := h.current.Load().(GateHints)
	if !ok {
		return DefaultGateHints()
	}
	return hints
}

// Hint returns the upgrade copy for a feature token, falling back to the default hint.
func (h *GateHintsHolder) Hint(feature string) string {
	hints := h.Get()
	if hint, ok := hints.Features[strings.ToLower(strings.TrimSpace(feature))]; ok && hint != "" {
		return hint
	}
	return hints.DefaultHint
}

func decodeGateHints(v *viper.Viper) (GateHints, error) {
	var hints GateHints
	if err := v.UnmarshalKey("gate", &hints); err != nil {
		return GateHints{}, err
	}
	if strings.TrimSpace(hints.DefaultHint) == "" {
		return GateHints{}, errors.New("gate.defaultHint cannot be empty")
	}
	return normalizeGateHints(hints), nil
}

func normalizeGateHints(hints GateHints) GateHints {
	features := make(map[string]string, len(hints.Features))
	for key, hint := range hints.Features {
		features[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(hint)
	}
	hints.Features = features
	hints.DefaultHint = strings.TrimSpace(hints.DefaultHint)
	return hints
}
