package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyRunKind    = "run_kind"
	KeyBackend    = "backend"
	KeyCollection = "collection"
	KeyEntryID    = "entry_id"
	KeyTitle      = "title"
	KeyArtifact   = "artifact"
	KeyRecipient  = "recipient"
	KeyPath       = "path"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func RunKind(k string) slog.Attr      { return slog.String(KeyRunKind, k) }
func Backend(b string) slog.Attr      { return slog.String(KeyBackend, b) }
func Collection(c string) slog.Attr   { return slog.String(KeyCollection, c) }
func EntryID(id string) slog.Attr     { return slog.String(KeyEntryID, id) }
func Title(t string) slog.Attr        { return slog.String(KeyTitle, t) }
func Artifact(a string) slog.Attr     { return slog.String(KeyArtifact, a) }
func Recipient(r string) slog.Attr    { return slog.String(KeyRecipient, r) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
