package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/njrgourav11/service-buddy-sub000/internal/config"

	"github.com/rs/zerolog"
)

// New constructs a zerolog logger from config. Output is a comma separated
// list of stdout, stderr and file; empty fields mean JSON at info level on
// stdout. The returned closer is non-nil only when a log file was opened.
func New(cfg config.LoggingConfig, app config.AppConfig) (*zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level))); err == nil {
			level = parsed
		}
	}

	console := strings.EqualFold(strings.TrimSpace(cfg.Format), "console")

	var (
		writers []io.Writer
		closer  io.Closer
	)
	for _, target := range splitOutputs(cfg.Output) {
		var w io.Writer
		switch target {
		case "stdout":
			w = os.Stdout
		case "stderr":
			w = os.Stderr
		case "file":
			file, err := openLogFile(cfg.FilePath)
			if err != nil {
				return nil, nil, err
			}
			// files stay JSON so they can be shipped as-is
			writers = append(writers, file)
			closer = file
			continue
		default:
			if closer != nil {
				_ = closer.Close()
			}
			return nil, nil, fmt.Errorf("unknown logging output %q", target)
		}
		if console {
			w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		}
		writers = append(writers, w)
	}

	var output io.Writer = writers[0]
	if len(writers) > 1 {
		output = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	base := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("app", app.Name).
		Str("env", app.Environment).
		Str("version", app.Version).
		Logger()

	return &base, closer, nil
}

func splitOutputs(raw string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	if len(out) == 0 {
		return []string{"stdout"}
	}
	return out
}

func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return nil, errors.New("logging output file requires logging.file_path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}

// Component returns a child logger tagged with the component name. A nil
// parent yields a disabled logger.
func Component(parent *zerolog.Logger, name string) *zerolog.Logger {
	if parent == nil {
		nop := zerolog.Nop()
		return &nop
	}
	child := parent.With().Str("component", name).Logger()
	return &child
}
