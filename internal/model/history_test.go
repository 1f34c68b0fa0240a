package model

import (
	"testing"
	"time"
)

// TestHistoryItemKey tests the deduplication key derivation.
func TestHistoryItemKey(t *testing.T) {
	t.Parallel()

	t.Run("same url different timestamps differ", func(t *testing.T) {
		t.Parallel()

		a := HistoryItem{URL: "https://example.com/a", LastVisitTime: 1000}
		b := HistoryItem{URL: "https://example.com/a", LastVisitTime: 2000}

		if a.Key() == b.Key() {
			t.Error("expected distinct keys for distinct timestamps")
		}
	})

	t.Run("identical items share key", func(t *testing.T) {
		t.Parallel()

		a := HistoryItem{URL: "https://example.com/a", LastVisitTime: 1000, Title: "first"}
		b := HistoryItem{URL: "https://example.com/a", LastVisitTime: 1000, Title: "second"}

		if a.Key() != b.Key() {
			t.Error("expected equal keys regardless of title")
		}
	})
}

// TestUncategorized tests the fallback category record.
func TestUncategorized(t *testing.T) {
	t.Parallel()

	got := Uncategorized()
	if len(got) != 1 {
		t.Fatalf("expected exactly one fallback category, got %d", len(got))
	}
	if got[0].Label != UncategorizedLabel || got[0].Score != 0 {
		t.Errorf("unexpected fallback category: %+v", got[0])
	}
}

// TestTimeConversion tests epoch millisecond round-tripping.
func TestTimeConversion(t *testing.T) {
	t.Parallel()

	want := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	ms := MillisFromTime(want)

	if got := TimeFromMillis(ms); !got.Equal(want) {
		t.Errorf("round trip mismatch: want %v, got %v", want, got)
	}
}

// TestHostnameOf tests hostname extraction edge cases.
func TestHostnameOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rawURL  string
		want    string
		wantErr bool
	}{
		{name: "plain https", rawURL: "https://Example.COM/path?q=1", want: "example.com"},
		{name: "with port", rawURL: "http://sub.example.com:8080/", want: "sub.example.com"},
		{name: "no host", rawURL: "about:blank", wantErr: true},
		{name: "empty", rawURL: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := HostnameOf(tt.rawURL)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.rawURL)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("want %q, got %q", tt.want, got)
			}
		})
	}
}

// TestCategoryRecordLabels tests label extraction preserves order.
func TestCategoryRecordLabels(t *testing.T) {
	t.Parallel()

	rec := CategoryRecord{
		URL: "https://example.com",
		Categories: []Category{
			{Label: "Technology", Score: 0.9},
			{Label: "News", Score: 0.6},
		},
	}

	labels := rec.Labels()
	if len(labels) != 2 || labels[0] != "Technology" || labels[1] != "News" {
		t.Errorf("unexpected labels: %v", labels)
	}
}
