package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

// logJSON logs one record through a PrivacyHandler-wrapped JSON handler
// and decodes the resulting line.
func logJSON(t *testing.T, msg string, args ...any) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, true)
	logger.Info(msg, args...)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("failed to decode log line %q: %v", buf.String(), err)
	}
	return record
}

// TestPrivacyHandlerStripsURLs tests that URL attributes lose their query
// string and fragment.
func TestPrivacyHandlerStripsURLs(t *testing.T) {
	t.Parallel()

	record := logJSON(t, "visited",
		"url", "https://example.com/search?q=private+thing#frag",
	)

	got, _ := record["url"].(string)
	if got != "https://example.com/search" {
		t.Errorf("expected stripped url, got %q", got)
	}
}

// TestPrivacyHandlerMasksSensitiveKeys tests credential attribute masking.
func TestPrivacyHandlerMasksSensitiveKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		key  string
	}{
		{name: "cookie", key: "cookie"},
		{name: "token substring", key: "refresh_token"},
		{name: "password substring", key: "user_password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			record := logJSON(t, "event", tt.key, "hunter2")
			if got, _ := record[tt.key].(string); got != MaskValue {
				t.Errorf("expected %q masked, got %q", tt.key, got)
			}
		})
	}
}

// TestPrivacyHandlerTruncatesTitles tests title truncation.
func TestPrivacyHandlerTruncatesTitles(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 200)
	record := logJSON(t, "event", "title", long)

	got, _ := record["title"].(string)
	if len([]rune(got)) > maxTitleLen+3 {
		t.Errorf("title not truncated: %d runes", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix, got %q", got)
	}
}

// TestPrivacyHandlerPassesPlainAttrs tests that ordinary attributes
// survive untouched.
func TestPrivacyHandlerPassesPlainAttrs(t *testing.T) {
	t.Parallel()

	record := logJSON(t, "event", "domain", "example.com", "count", 42)

	if got, _ := record["domain"].(string); got != "example.com" {
		t.Errorf("domain altered: %q", got)
	}
	if got, _ := record["count"].(float64); got != 42 {
		t.Errorf("count altered: %v", got)
	}
}

// TestStripURL tests the URL reduction helper directly.
func TestStripURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "query removed", in: "https://a.example.com/p?x=1", want: "https://a.example.com/p"},
		{name: "userinfo removed", in: "https://user:pw@example.com/", want: "https://example.com/"},
		{name: "hostless masked", in: "about:blank", want: MaskValue},
		{name: "garbage masked", in: "::::", want: MaskValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := StripURL(tt.in); got != tt.want {
				t.Errorf("StripURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
