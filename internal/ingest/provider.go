package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/nao1215/webtrail/internal/model"
)

// Provider supplies raw browsing events. Implementations wrap a browser's
// history API or an exported history snapshot; the pipeline does not care
// which.
//
// Live visit notifications are push-based: the host environment calls
// Coordinator.IngestVisit directly when the provider reports a visit, so
// the interface only models the pull side.
type Provider interface {
	// Search returns history items whose visit time falls inside
	// [start, end).
	Search(ctx context.Context, start, end time.Time) ([]model.HistoryItem, error)

	// Visits returns the individual visit sequence for a URL.
	Visits(ctx context.Context, url string) ([]model.VisitDetail, error)
}

// FileProvider reads a browser history export from a JSON file. The
// export format matches the shapes emitted by browser history APIs:
//
//	{
//	  "items":  [{"url": ..., "title": ..., "lastVisitTime": ...,
//	              "visitCount": ..., "typedCount": ...}, ...],
//	  "visits": {"<url>": [{"visitId": ..., "visitTime": ...,
//	              "referringVisitId": ..., "transition": ...}, ...]}
//	}
type FileProvider struct {
	items  []model.HistoryItem
	visits map[string][]model.VisitDetail
}

// export is the JSON schema of a history export file.
type export struct {
	Items  []model.HistoryItem            `json:"items"`
	Visits map[string][]model.VisitDetail `json:"visits"`
}

// NewFileProvider loads a history export file.
func NewFileProvider(path string) (*FileProvider, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided export path is intentional
	if err != nil {
		return nil, fmt.Errorf("read history export: %w", err)
	}

	var ex export
	if err := json.Unmarshal(data, &ex); err != nil {
		return nil, fmt.Errorf("parse history export: %w", err)
	}
	if ex.Visits == nil {
		ex.Visits = make(map[string][]model.VisitDetail)
	}

	return &FileProvider{items: ex.Items, visits: ex.Visits}, nil
}

// Search returns exported items inside [start, end).
func (p *FileProvider) Search(_ context.Context, start, end time.Time) ([]model.HistoryItem, error) {
	startMS := model.MillisFromTime(start)
	endMS := model.MillisFromTime(end)

	var out []model.HistoryItem
	for _, item := range p.items {
		if item.LastVisitTime >= startMS && item.LastVisitTime < endMS {
			out = append(out, item)
		}
	}
	return out, nil
}

// Visits returns the exported visit sequence for a URL.
func (p *FileProvider) Visits(_ context.Context, url string) ([]model.VisitDetail, error) {
	return p.visits[url], nil
}
