// Package blocklist filters unwanted URLs out of the ingestion pipeline.
//
// The filter loads a remote rule list exactly once per process lifetime.
// Concurrent first callers share a single in-flight load via
// golang.org/x/sync/singleflight; an explicit Reload rebuilds the snapshot.
// Until a load has succeeded the filter fails closed: every URL is treated
// as blocked so that unvetted traffic never reaches storage.
//
// Two rule formats are supported and auto-detected from a header marker:
// plain hostname lists (one domain per line, comments and IPv4 literals
// discarded) and regex lists where each non-comment line is compiled and
// tested against the full hostname.
//
// Matching is suffix-chain aware: a hostname is blocked if a regex matches
// it, if the hostname itself is listed, if its effective root domain
// (public-suffix aware) is listed, or if any intermediate parent suffix
// between the hostname and its root is listed. The last rule matters
// because published lists commonly name an intermediate ad-serving
// subdomain rather than the leaf hostname or the bare root.
package blocklist
