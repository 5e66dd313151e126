package binding

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// LoggingConfig configures the engine logger.
type LoggingConfig struct {
	Level   string `yaml:"level" env:"LEVEL" validate:"omitempty,oneof=trace debug info warn error disabled"`
	Format  string `yaml:"format" env:"FORMAT" validate:"omitempty,oneof=json console"`
	Output  string `yaml:"output" env:"OUTPUT" validate:"omitempty,oneof=stdout stderr"`
	NoColor bool   `yaml:"no_color" env:"NO_COLOR"`
}

// ApplyDefaults fills unset logging fields.
func (c *LoggingConfig) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = LogFormatJSON
	}
	if c.Output == "" {
		c.Output = "stderr"
	}
}

// NewLogger builds a zerolog logger tagged with component.
func NewLogger(cfg LoggingConfig, component string) (zerolog.Logger, error) {
	cfg.ApplyDefaults()
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("binding: parse log level %q: %w", cfg.Level, err)
	}
	return newLoggerTo(outputWriter(cfg.Output), cfg, component).Level(level), nil
}

func newLoggerTo(w io.Writer, cfg LoggingConfig, component string) zerolog.Logger {
	if strings.EqualFold(cfg.Format, LogFormatConsole) {
		w = zerolog.ConsoleWriter{Out: w, NoColor: cfg.NoColor, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).With().Timestamp().Str("component", component).Logger()
}

func outputWriter(output string) io.Writer {
	if strings.EqualFold(output, "stdout") {
		return os.Stdout
	}
	return os.Stderr
}
