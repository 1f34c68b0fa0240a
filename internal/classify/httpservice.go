package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nao1215/webtrail/internal/model"
)

// maxResponseSize limits classification service responses. A label list
// is tiny; anything larger indicates a misbehaving endpoint.
const maxResponseSize = 1 * 1024 * 1024

// HTTPService talks to a local classification sidecar over HTTP.
// The sidecar exposes:
//
//	GET  /readyz     -> 200 when the model is loaded
//	POST /capability -> {"granted": bool}
//	POST /activate   -> 200/204 once the engine is started
//	POST /classify   -> {"results": [{"label": ..., "score": ...}, ...]}
//
// Progress events are synthesized around the activation and
// classification calls; the sidecar protocol has no push channel.
type HTTPService struct {
	baseURL  string
	client   *http.Client
	progress func(ProgressEvent)
}

// HTTPServiceOption configures an HTTPService.
type HTTPServiceOption func(*HTTPService)

// WithServiceHTTPClient sets the HTTP client. The default has a
// 60 second timeout; classification of a single payload is fast, but the
// first call may block behind model loading inside the sidecar.
func WithServiceHTTPClient(client *http.Client) HTTPServiceOption {
	return func(s *HTTPService) {
		s.client = client
	}
}

// NewHTTPService creates an HTTPService for the given base URL.
func NewHTTPService(baseURL string, opts ...HTTPServiceOption) *HTTPService {
	s := &HTTPService{baseURL: strings.TrimSuffix(baseURL, "/")}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: 60 * time.Second}
	}
	return s
}

// IsReady probes the sidecar's readiness endpoint.
func (s *HTTPService) IsReady(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/readyz", nil)
	if err != nil {
		return false, fmt.Errorf("build readiness request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("readiness probe: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only body
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

	return resp.StatusCode == http.StatusOK, nil
}

// RequestCapability asks the sidecar for the classification grant.
func (s *HTTPService) RequestCapability(ctx context.Context) (bool, error) {
	var out struct {
		Granted bool `json:"granted"`
	}
	if err := s.post(ctx, "/capability", nil, &out); err != nil {
		return false, err
	}
	return out.Granted, nil
}

// Activate starts the engine. The sidecar treats repeated activation as a
// no-op.
func (s *HTTPService) Activate(ctx context.Context) error {
	s.emit(ProgressEvent{Stage: "activate"})
	return s.post(ctx, "/activate", nil, nil)
}

// Run classifies a text payload.
func (s *HTTPService) Run(ctx context.Context, text string) ([]model.Category, error) {
	in := struct {
		Text string `json:"text"`
	}{Text: text}
	var out struct {
		Results []model.Category `json:"results"`
	}
	if err := s.post(ctx, "/classify", in, &out); err != nil {
		return nil, err
	}
	s.emit(ProgressEvent{Stage: "classify", Loaded: 1, Total: 1})
	return out.Results, nil
}

// OnProgress registers the progress callback.
func (s *HTTPService) OnProgress(fn func(ProgressEvent)) {
	s.progress = fn
}

func (s *HTTPService) emit(ev ProgressEvent) {
	if s.progress != nil {
		s.progress(ev)
	}
}

// post sends a JSON request and decodes a JSON response into out
// (when out is non-nil).
func (s *HTTPService) post(ctx context.Context, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request for %s: %w", path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only body

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("call %s: unexpected status %d", path, resp.StatusCode)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response from %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}
