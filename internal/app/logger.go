package app

import (
	"io"
	"log/slog"
	"strings"

	"github.com/forgo/craftlink/internal/config"
)

// NewLogger builds the process logger from the log settings
func NewLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
