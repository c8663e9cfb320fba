package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field names shared by every package.
const (
	KeyProjectID  = "project_id"
	KeyRunID      = "run_id"
	KeyPipeline   = "pipeline"
	KeyStage      = "stage"
	KeyStageIndex = "stage_index"
	KeyItem       = "item_id"
	KeySource     = "source"
	KeyState      = "state"
	KeyPercent    = "percent"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

func ProjectID(id string) slog.Attr { return slog.String(KeyProjectID, id) }
func RunID(id string) slog.Attr     { return slog.String(KeyRunID, id) }
func Pipeline(p string) slog.Attr   { return slog.String(KeyPipeline, p) }
func Stage(name string) slog.Attr   { return slog.String(KeyStage, name) }
func StageIndex(i int) slog.Attr    { return slog.Int(KeyStageIndex, i) }
func Item(id string) slog.Attr      { return slog.String(KeyItem, id) }
func Source(s string) slog.Attr     { return slog.String(KeySource, s) }
func State(s string) slog.Attr      { return slog.String(KeyState, s) }
func Percent(p float64) slog.Attr   { return slog.Float64(KeyPercent, p) }

// Duration records d in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d)/float64(time.Millisecond))
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
