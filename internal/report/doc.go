// Package report assembles and renders browsing-analytics summaries.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: GitHub-flavored markdown for documentation
//
// Design decision: We separate report rendering from the analytics
// computations (which live in the analytics package) so that new output
// formats can be added without touching the aggregation logic. The
// Builder collects one Summary snapshot; writers render it.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
