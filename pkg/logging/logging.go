// Package logging builds the slog handler shared by obs-agent and
// obs-server.
//
// Two formats are supported: "json" writes one JSON object per line through
// slog.NewJSONHandler, "text" writes colourised console lines through
// github.com/lmittmann/tint. The level lives in a slog.LevelVar so a config
// hot reload can change it without rebuilding the logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/lmittmann/tint"
)

// Setup builds a logger writing to w and installs it as the slog default.
// The returned LevelVar controls the level of that logger.
func Setup(w io.Writer, format, level string) (*slog.LevelVar, error) {
	lv := new(slog.LevelVar)
	if err := SetLevel(lv, level); err != nil {
		return nil, err
	}

	var h slog.Handler
	switch format {
	case "", "json":
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lv})
	case "text":
		h = tint.NewHandler(w, &tint.Options{
			Level:      lv,
			TimeFormat: "15:04:05",
		})
	default:
		return nil, fmt.Errorf("logging: unknown format %q: want json|text", format)
	}

	slog.SetDefault(slog.New(h))
	return lv, nil
}

// SetLevel parses level (debug|info|warn|error, case-insensitive) into lv.
// An empty level means info.
func SetLevel(lv *slog.LevelVar, level string) error {
	if level == "" {
		lv.Set(slog.LevelInfo)
		return nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	lv.Set(l)
	return nil
}
