package logger

import (
	"io"
	"log/slog"
	"os"

	"ghostrecon/internal/config"
	"ghostrecon/pkg/logging"
)

// NewLogger builds the process logger and installs it as slog.Default.
// A nil writer means stdout.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	handler := logging.NewHandler(w, cfg.Logger.Format, logging.ParseLevel(cfg.Logger.Level))
	logger := slog.New(handler).With(
		slog.String("service", cfg.Service.Name),
		slog.String("env", cfg.Service.Env),
		slog.String("address", cfg.Service.Add),
		slog.Int("pid", os.Getpid()),
	)
	slog.SetDefault(logger)
	return logger
}
