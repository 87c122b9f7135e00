package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
)

// serviceName is the "service" attribute carried by every entry.
const serviceName = "graylogic-hub"

// Logger wraps slog.Logger with Gray Logic Hub defaults.
//
// Every entry carries "service" and "version". Subsystems add "component",
// and integration code adds "vendor", so one poll cycle can be followed
// across the poller, client and notification logs.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing to the configured output ("stdout" or
// "stderr"; anything else means stdout).
//
// Parameters:
//   - cfg: Logging configuration from config.yaml
//   - version: Build version, attached to every entry
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		output = os.Stderr
	}
	return NewWithWriter(cfg, version, output)
}

// NewWithWriter is New with an explicit destination. cfg.Output is ignored.
func NewWithWriter(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(handler)}
}

// parseLevel maps debug, info, warn (or warning) and error to slog levels.
// Unknown values log at info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child Logger with additional default attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is the pre-config logger: JSON on stdout at info.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json"}, "dev")
}

// Component returns a child logger tagged with a subsystem name.
//
//	orch := orchestrator.New(orchestrator.Config{Logger: log.Component("orchestrator"), ...})
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// Integration returns a child logger for a vendor client, tagged
// component=integration and vendor=<vendor>.
func (l *Logger) Integration(vendor string) *Logger {
	return l.With("component", "integration", "vendor", vendor)
}
