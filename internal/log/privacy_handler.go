package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"strings"
)

// sensitiveKeys contains attribute keys that are always masked.
// These keys commonly carry credentials or session material that must not
// reach log output.
var sensitiveKeys = map[string]bool{
	"authorization": true,
	"cookie":        true,
	"set-cookie":    true,
	"password":      true,
	"passwd":        true,
	"secret":        true,
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"api-key":       true,
	"access_token":  true,
	"refresh_token": true,
	"session":       true,
	"session_id":    true,
	"sessionid":     true,
	"credential":    true,
	"credentials":   true,
	"auth":          true,
}

// urlKeys contains attribute keys whose string values are treated as URLs
// and stripped of query string and fragment.
var urlKeys = map[string]bool{
	"url":      true,
	"from":     true,
	"to":       true,
	"referrer": true,
	"page":     true,
}

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// maxTitleLen bounds logged page titles. Titles occasionally embed the
// full document content of web apps; 80 runes is enough for debugging.
const maxTitleLen = 80

// PrivacyHandler is a slog.Handler that sanitizes browsing data before
// delegating to an underlying handler.
//
// Design decision: We sanitize at the handler level rather than at each
// call site because call-site discipline does not survive refactoring.
// A handler guarantees that no code path can leak a full URL, whatever
// the logging call looks like.
type PrivacyHandler struct {
	handler slog.Handler
}

// NewPrivacyHandler creates a PrivacyHandler wrapping the given handler.
func NewPrivacyHandler(handler slog.Handler) *PrivacyHandler {
	return &PrivacyHandler{handler: handler}
}

// Enabled reports whether the underlying handler handles records at the
// given level.
func (h *PrivacyHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle sanitizes the record's attributes and passes it on.
func (h *PrivacyHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(h.sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a new handler with the given attributes added.
// Attributes are sanitized before being added.
func (h *PrivacyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitizedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitizedAttrs[i] = h.sanitizeAttr(a)
	}
	return &PrivacyHandler{handler: h.handler.WithAttrs(sanitizedAttrs)}
}

// WithGroup returns a new handler with the given group name.
func (h *PrivacyHandler) WithGroup(name string) slog.Handler {
	return &PrivacyHandler{handler: h.handler.WithGroup(name)}
}

// sanitizeAttr sanitizes a single attribute, recursively handling groups.
func (h *PrivacyHandler) sanitizeAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		sanitizedAttrs := make([]slog.Attr, len(attrs))
		for i, groupAttr := range attrs {
			sanitizedAttrs[i] = h.sanitizeAttr(groupAttr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitizedAttrs...)}
	}

	keyLower := strings.ToLower(a.Key)
	if sensitiveKeys[keyLower] || containsSensitiveKeyword(keyLower) {
		return slog.String(a.Key, MaskValue)
	}

	if a.Value.Kind() == slog.KindString {
		val := a.Value.String()
		switch {
		case urlKeys[keyLower]:
			return slog.String(a.Key, StripURL(val))
		case keyLower == "title":
			return slog.String(a.Key, truncate(val, maxTitleLen))
		}
	}

	return a
}

// containsSensitiveKeyword checks if the key contains credential keywords.
// The bare keyword "key" is intentionally excluded because it causes false
// positives ("primary_key", "hotkey"); specific forms are covered by the
// sensitiveKeys map.
func containsSensitiveKeyword(key string) bool {
	for _, keyword := range []string{"password", "passwd", "secret", "token", "credential"} {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

// StripURL reduces a URL to scheme://host/path, removing query string,
// fragment, and userinfo. Unparseable values are masked entirely rather
// than passed through.
func StripURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return MaskValue
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil
	return u.String()
}

// truncate shortens s to at most n runes, appending an ellipsis marker
// when truncation happened.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// NewLogger creates a *slog.Logger with text output and privacy handling.
// When verbose is true the level is Debug, otherwise Info.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewPrivacyHandler(slog.NewTextHandler(w, handlerOptions(verbose))))
}

// NewJSONLogger creates a *slog.Logger with JSON output and privacy
// handling. Useful for structured log aggregation.
func NewJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewPrivacyHandler(slog.NewJSONHandler(w, handlerOptions(verbose))))
}

func handlerOptions(verbose bool) *slog.HandlerOptions {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}
