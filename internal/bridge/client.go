package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ScoreReply is the part of the scoring response the gate acts on, plus the
// raw body for the optional alert side-channel.
type ScoreReply struct {
	Prediction string  `json:"prediction"`
	Confidence float64 `json:"confidence"`
	Raw        []byte  `json:"-"`
}

// Scorer calls the scoring pipeline for one event payload. The call is
// expected to respect a hard deadline; the gate never retries it.
type Scorer interface {
	Score(ctx context.Context, payload []byte) (*ScoreReply, error)
}

// HTTPScorer calls the scoring service's inference endpoint over HTTP with
// a bounded timeout. A slow or failed call surfaces as an error, which the
// gate turns into a fail-closed block.
type HTTPScorer struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPScorer creates a scorer against url with the given hard timeout.
func NewHTTPScorer(url string, timeout time.Duration) *HTTPScorer {
	return &HTTPScorer{
		url:     url,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// Score posts the payload and parses the verdict fields.
func (s *HTTPScorer) Score(ctx context.Context, payload []byte) (*ScoreReply, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build scoring request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scoring call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read scoring response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scoring service returned %d: %s", resp.StatusCode, body)
	}

	var reply ScoreReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("failed to decode scoring response: %w", err)
	}
	reply.Raw = body
	return &reply, nil
}
