package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/nao1215/webtrail/internal/analytics"
)

// MarkdownWriter outputs summaries in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter

	printer *message.Printer
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		printer:    message.NewPrinter(language.English),
	}
}

// Write renders the full summary in Markdown format.
func (w *MarkdownWriter) Write(summary *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeDomains(md, summary)
	w.writeEngagement(md, summary)
	w.writeTransitions(md, summary)
	w.writeCategories(md, summary)
	w.writeHistograms(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with window and store information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *Summary) {
	md.H1("Browsing Activity Report")
	md.PlainText("")

	rows := [][]string{
		{"Generated", summary.GeneratedAt.UTC().Format("2006-01-02 15:04:05 MST")},
		{"Window", strconv.Itoa(summary.WindowDays) + " days"},
		{"Unique Sites", w.printer.Sprintf("%d", summary.UniqueSites)},
	}
	if summary.Stats != nil {
		rows = append(rows,
			[]string{"Stored Events", w.printer.Sprintf("%d", summary.Stats.HistoryItems)},
			[]string{"Stored Visits", w.printer.Sprintf("%d", summary.Stats.VisitDetails)},
			[]string{"Classified URLs", w.printer.Sprintf("%d", summary.Stats.Categories)},
		)
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeDomains writes the two domain rankings.
func (w *MarkdownWriter) writeDomains(md *markdown.Markdown, summary *Summary) {
	md.H2("Top Domains by Time")
	md.PlainText("")

	if len(summary.TopDomains) == 0 {
		md.PlainText("No domain activity in the window.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(summary.TopDomains))
	for i, d := range summary.TopDomains {
		rows[i] = []string{
			"`" + d.Domain + "`",
			w.printer.Sprintf("%d", d.Visits),
			d.DurationText,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Domain", "Visits", "Time"},
		Rows:   rows,
	})
	md.PlainText("")

	md.H2("Frequent Domains")
	md.PlainText("")

	rows = make([][]string, len(summary.FrequentDomains))
	for i, d := range summary.FrequentDomains {
		rows[i] = []string{
			"`" + d.Domain + "`",
			w.printer.Sprintf("%d", d.Visits),
			strconv.FormatFloat(d.Score, 'f', 2, 64),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Domain", "Visits", "Score"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeEngagement writes the per-URL engagement table.
func (w *MarkdownWriter) writeEngagement(md *markdown.Markdown, summary *Summary) {
	md.H2("Most Engaged Pages")
	md.PlainText("")

	if len(summary.Engagement) == 0 {
		md.PlainText("No visit sequences in the window.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(summary.Engagement))
	for i, e := range summary.Engagement {
		rows[i] = []string{
			truncateString(e.URL, 60),
			strconv.Itoa(e.Visits),
			strconv.Itoa(e.Sessions),
			e.TotalTime.Round(0).String(),
			e.AvgSession.Round(0).String(),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Visits", "Sessions", "Total", "Avg Session"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeTransitions writes the cross-site navigation section.
func (w *MarkdownWriter) writeTransitions(md *markdown.Markdown, summary *Summary) {
	md.H2("Cross-Site Transitions")
	md.PlainText("")

	t := summary.Transitions
	if t == nil || t.Total == 0 {
		md.PlainText("No cross-site transitions in the window.")
		md.PlainText("")
		return
	}

	md.PlainTextf("%s transitions across %s distinct pairs.",
		w.printer.Sprintf("%d", t.Total), w.printer.Sprintf("%d", t.UniquePairs))
	md.PlainText("")

	rows := make([][]string, len(t.Top))
	for i, p := range t.Top {
		rows[i] = []string{
			truncateString(p.From, 45),
			truncateString(p.To, 45),
			strconv.Itoa(p.Count),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"From", "To", "Count"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeCategories writes the co-occurrence and trend sections.
func (w *MarkdownWriter) writeCategories(md *markdown.Markdown, summary *Summary) {
	md.H2("Category Pairings")
	md.PlainText("")

	if len(summary.CoOccurrence) == 0 {
		md.PlainText("No classified pages with multiple labels.")
		md.PlainText("")
	} else {
		rows := make([][]string, len(summary.CoOccurrence))
		for i, p := range summary.CoOccurrence {
			rows[i] = []string{p.A, p.B, strconv.Itoa(p.Count)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Category", "Category", "Count"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	md.H2("Daily Category Trends")
	md.PlainText("")

	if len(summary.Trends) == 0 {
		md.PlainText("No classified pages in the window.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(summary.Trends))
	for i, day := range summary.Trends {
		rows[i] = []string{day.Date, formatLabelCounts(day)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Date", "Categories"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeHistograms writes the weekday pie chart and the hour table.
func (w *MarkdownWriter) writeHistograms(md *markdown.Markdown, summary *Summary) {
	md.H2("Activity by Weekday")
	md.PlainText("")

	if weekdayTotal(summary.Weekdays) == 0 {
		md.PlainText("No visits in the window.")
		md.PlainText("")
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Visits per Weekday"),
		piechart.WithShowData(true),
	)
	for _, d := range summary.Weekdays {
		if d.Count > 0 {
			chart.LabelAndIntValue(d.Day, uint64(d.Count))
		}
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")

	md.H2("Activity by Hour")
	md.PlainText("")

	var rows [][]string
	for hour, avg := range summary.Hours {
		if avg == 0 {
			continue
		}
		rows = append(rows, []string{
			fmt.Sprintf("%02d:00", hour),
			strconv.FormatFloat(avg, 'f', 1, 64),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Hour", "Avg Visits/Day"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [webtrail](https://github.com/nao1215/webtrail)*")
}

// formatLabelCounts renders a day's label tallies as "News (3), Sports (1)".
func formatLabelCounts(day analytics.DayTrend) string {
	parts := make([]string, len(day.Labels))
	for i, lc := range day.Labels {
		parts[i] = fmt.Sprintf("%s (%d)", lc.Label, lc.Count)
	}
	return strings.Join(parts, ", ")
}

// weekdayTotal sums a weekday histogram.
func weekdayTotal(days []analytics.WeekdayCount) int {
	total := 0
	for _, d := range days {
		total += d.Count
	}
	return total
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
