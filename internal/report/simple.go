package report

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// SimpleWriter outputs human-readable text summaries.
// This format is designed for terminal display with clear section
// formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no data are shown.
	showEmpty bool

	printer *message.Printer
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		printer:    message.NewPrinter(language.English),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write renders the summary in human-readable format.
func (w *SimpleWriter) Write(summary *Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeDomains(&sb, summary)
	w.writeEngagement(&sb, summary)
	w.writeTransitions(&sb, summary)
	w.writeCategories(&sb, summary)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with window information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                    BROWSING ACTIVITY REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Generated:     %s\n", summary.GeneratedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Window:        %d days\n", summary.WindowDays)
	fmt.Fprintf(sb, "Unique Sites:  %s\n", w.printer.Sprintf("%d", summary.UniqueSites))
	if summary.Stats != nil {
		fmt.Fprintf(sb, "Stored Events: %s (%s visits, %s classified)\n",
			w.printer.Sprintf("%d", summary.Stats.HistoryItems),
			w.printer.Sprintf("%d", summary.Stats.VisitDetails),
			w.printer.Sprintf("%d", summary.Stats.Categories))
	}
	sb.WriteString("\n")
}

// writeDomains writes the domain rankings.
func (w *SimpleWriter) writeDomains(sb *strings.Builder, summary *Summary) {
	if len(summary.TopDomains) == 0 && !w.showEmpty {
		return
	}

	w.sectionHeader(sb, "TOP DOMAINS BY TIME")
	if len(summary.TopDomains) == 0 {
		sb.WriteString("  No domain activity\n\n")
		return
	}
	for _, d := range summary.TopDomains {
		fmt.Fprintf(sb, "  %-40s %6s visits  %8s\n",
			d.Domain, w.printer.Sprintf("%d", d.Visits), d.DurationText)
	}
	sb.WriteString("\n")
}

// writeEngagement writes the per-URL engagement section.
func (w *SimpleWriter) writeEngagement(sb *strings.Builder, summary *Summary) {
	if len(summary.Engagement) == 0 && !w.showEmpty {
		return
	}

	w.sectionHeader(sb, "MOST ENGAGED PAGES")
	if len(summary.Engagement) == 0 {
		sb.WriteString("  No visit sequences\n\n")
		return
	}
	for _, e := range summary.Engagement {
		fmt.Fprintf(sb, "  * %s\n", truncateString(e.URL, 64))
		fmt.Fprintf(sb, "    %d visits in %d session(s), %s total\n",
			e.Visits, e.Sessions, e.TotalTime.Round(0))
	}
	sb.WriteString("\n")
}

// writeTransitions writes the cross-site navigation section.
func (w *SimpleWriter) writeTransitions(sb *strings.Builder, summary *Summary) {
	t := summary.Transitions
	if (t == nil || t.Total == 0) && !w.showEmpty {
		return
	}

	w.sectionHeader(sb, "CROSS-SITE TRANSITIONS")
	if t == nil || t.Total == 0 {
		sb.WriteString("  No cross-site transitions\n\n")
		return
	}
	fmt.Fprintf(sb, "  %s transitions, %s distinct pairs\n\n",
		w.printer.Sprintf("%d", t.Total), w.printer.Sprintf("%d", t.UniquePairs))
	for _, p := range t.Top {
		fmt.Fprintf(sb, "  [%d] %s\n      -> %s\n",
			p.Count, truncateString(p.From, 58), truncateString(p.To, 58))
	}
	sb.WriteString("\n")
}

// writeCategories writes the trend section.
func (w *SimpleWriter) writeCategories(sb *strings.Builder, summary *Summary) {
	if len(summary.Trends) == 0 && !w.showEmpty {
		return
	}

	w.sectionHeader(sb, "DAILY CATEGORY TRENDS")
	if len(summary.Trends) == 0 {
		sb.WriteString("  No classified pages\n\n")
		return
	}
	for _, day := range summary.Trends {
		fmt.Fprintf(sb, "  %s  %s\n", day.Date, formatLabelCounts(day))
	}
	sb.WriteString("\n")
}

// sectionHeader writes a dashed section heading.
func (w *SimpleWriter) sectionHeader(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by webtrail\n")
	sb.WriteString("https://github.com/nao1215/webtrail\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
