package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyRepo       = "repository"
	KeyRef        = "ref"
	KeyPath       = "path"
	KeyFile       = "file"
	KeyPage       = "page"
	KeyEnv        = "env"
	KeyPrefix     = "prefix"
	KeyCount      = "count"
	KeyErrCode    = "errcode"
	KeyURL        = "url"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Repository(r string) slog.Attr   { return slog.String(KeyRepo, r) }
func Ref(r string) slog.Attr          { return slog.String(KeyRef, r) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func File(name string) slog.Attr      { return slog.String(KeyFile, name) }
func Page(name string) slog.Attr      { return slog.String(KeyPage, name) }
func Env(e string) slog.Attr          { return slog.String(KeyEnv, e) }
func Prefix(p string) slog.Attr       { return slog.String(KeyPrefix, p) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func ErrCode(code int) slog.Attr      { return slog.Int(KeyErrCode, code) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
