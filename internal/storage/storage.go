// Package storage is the optional alert history: one record per dispatched
// event, useful for auditing what was (not) delivered and why. The pipeline
// itself never reads this back — the only reader is the heartbeat summary;
// nothing here is pipeline state.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "github.com/oslabbie/frigate-alerts/pkg/logx"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the history store.
//
// Driver values:
//   - "file": dependency-free JSON Lines file
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", history is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Record is one dispatched event's outcome. Keep it compact and
// schema-stable.
type Record struct {
	At         time.Time `json:"at"`
	EventID    string    `json:"event_id"`
	Camera     string    `json:"camera"`
	Label      string    `json:"label"`
	MediaKind  string    `json:"media_kind"` // clip|snapshot|thumbnail|none|""
	Recipients int       `json:"recipients"`
	Failed     int       `json:"failed"`
	Outcome    string    `json:"outcome"` // delivered|partial|text_fallback|dropped
}

// Store is the minimal persistence API the dispatcher uses.
type Store interface {
	Append(ctx context.Context, r Record) error
	Recent(ctx context.Context, n int) ([]Record, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
