package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// HistoryItem is a single browsing-history event supplied by a history
// provider. The pair (URL, LastVisitTime) uniquely identifies an item;
// a URL alone is not unique because the same page is revisited with
// different timestamps.
type HistoryItem struct {
	// URL is the full page URL including scheme and path.
	URL string `json:"url"`

	// Title is the page title at visit time. May be empty.
	Title string `json:"title"`

	// LastVisitTime is the visit timestamp in Unix epoch milliseconds.
	LastVisitTime int64 `json:"lastVisitTime"`

	// VisitCount is the provider's cumulative visit counter for this URL.
	VisitCount int `json:"visitCount"`

	// TypedCount is how often the URL was typed directly into the
	// address bar rather than reached by navigation.
	TypedCount int `json:"typedCount"`

	// Domain is the hostname of URL, filled during ingestion.
	Domain string `json:"domain"`
}

// Key returns the deduplication key for the item. Two items with the same
// key are the same logical event and must be stored at most once.
func (h HistoryItem) Key() string {
	return fmt.Sprintf("%s\x00%d", h.URL, h.LastVisitTime)
}

// VisitDetail is one entry in the visit sequence of a URL. Visit details
// are immutable once written; the provider's VisitID is globally unique.
type VisitDetail struct {
	// VisitID is the provider-assigned unique identifier of this visit.
	VisitID int64 `json:"visitId"`

	// URL is the visited page URL.
	URL string `json:"url"`

	// VisitTime is the visit timestamp in Unix epoch milliseconds.
	VisitTime int64 `json:"visitTime"`

	// ReferringVisitID is the VisitID of the visit that led here,
	// or 0 when the visit had no referrer.
	ReferringVisitID int64 `json:"referringVisitId"`

	// Transition describes how the navigation happened
	// (e.g. "link", "typed", "reload").
	Transition string `json:"transition"`
}

// Category is a single (label, score) pair returned by the classification
// service. Score is the service's confidence in [0, 1].
type Category struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// UncategorizedLabel is stored when no classification result clears the
// confidence threshold. A category record is never empty.
const UncategorizedLabel = "Uncategorized"

// Uncategorized returns the fallback category list stored when
// classification produced nothing above the threshold.
func Uncategorized() []Category {
	return []Category{{Label: UncategorizedLabel, Score: 0}}
}

// CategoryRecord holds the classification result for one URL. At most one
// record exists per URL; re-classification overwrites the previous record.
// Categories preserve the service's ranking order, highest confidence first.
type CategoryRecord struct {
	URL           string     `json:"url"`
	Categories    []Category `json:"categories"`
	LastVisitTime int64      `json:"lastVisitTime"`
}

// Labels returns the category labels in ranking order.
func (c CategoryRecord) Labels() []string {
	labels := make([]string, len(c.Categories))
	for i, cat := range c.Categories {
		labels[i] = cat.Label
	}
	return labels
}

// TimeFromMillis converts Unix epoch milliseconds to time.Time.
func TimeFromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// MillisFromTime converts time.Time to Unix epoch milliseconds.
func MillisFromTime(t time.Time) int64 {
	return t.UnixMilli()
}

// HostnameOf extracts the lowercase hostname from a raw URL.
// It returns an error for URLs without a parseable host, such as
// about:blank or data: URIs.
func HostnameOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("url %q has no hostname", rawURL)
	}
	return host, nil
}
