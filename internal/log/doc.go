// Package log provides privacy-aware structured logging for webtrail.
//
// Browsing history is sensitive by nature: full URLs carry search queries,
// session tokens, and document identifiers in their query strings. The
// PrivacyHandler wraps a standard slog.Handler and sanitizes records before
// they reach any output:
//
//   - URL-valued attributes are reduced to scheme://host/path, dropping
//     query string and fragment
//   - attributes whose key or value looks credential-bearing are replaced
//     with a mask
//   - page titles are truncated to a bounded length
//
// Use NewLogger (text) or NewJSONLogger to construct a ready-to-use
// *slog.Logger. Components receive the logger via dependency injection; the
// handler is exported for callers that compose their own handler chain.
package log
