package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyStage      = "stage"
	KeyKey        = "key"
	KeyPrefix     = "prefix"
	KeyTemplate   = "template"
	KeyURL        = "url"
	KeyBucket     = "bucket"
	KeyTarget     = "target"
	KeyDurationMS = "duration_ms"
	KeyCount      = "count"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Key(k string) slog.Attr          { return slog.String(KeyKey, k) }
func Prefix(p string) slog.Attr       { return slog.String(KeyPrefix, p) }
func Template(name string) slog.Attr  { return slog.String(KeyTemplate, name) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Bucket(b string) slog.Attr       { return slog.String(KeyBucket, b) }
func Target(t string) slog.Attr       { return slog.String(KeyTarget, t) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
