package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/apex/log"
	"github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
)

// New builds a logger writing to w. format is "text" or "json".
func New(w io.Writer, level, format string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	var h log.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		h = text.New(w)
	case "json":
		h = json.New(w)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return &log.Logger{Handler: h, Level: lvl}, nil
}

// Setup makes the logger the package-level default as well.
func Setup(w io.Writer, level, format string) (*log.Logger, error) {
	l, err := New(w, level, format)
	if err != nil {
		return nil, err
	}
	log.Log = l
	return l, nil
}
