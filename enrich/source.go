package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// BatchResponse is the raw outcome of one batch request.
type BatchResponse struct {
	Status int
	Body   []byte
}

// BatchSource fetches metadata for a batch of item ids. A transport failure
// is returned as an error; any HTTP answer, including a non-200 one, is
// returned as a BatchResponse.
type BatchSource interface {
	FetchBatch(ctx context.Context, ids []int) (BatchResponse, error)
}

// HTTPSource posts {"item_id": [...]} to the lookup service.
type HTTPSource struct {
	url       string
	client    *http.Client
	userAgent string
}

// NewHTTPSource returns a source posting to url with client.
func NewHTTPSource(url string, client *http.Client, userAgent string) *HTTPSource {
	return &HTTPSource{url: url, client: client, userAgent: userAgent}
}

type batchRequest struct {
	ItemID []int `json:"item_id"`
}

func (s *HTTPSource) FetchBatch(ctx context.Context, ids []int) (BatchResponse, error) {
	payload, err := json.Marshal(batchRequest{ItemID: ids})
	if err != nil {
		return BatchResponse{}, fmt.Errorf("encode batch request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return BatchResponse{}, fmt.Errorf("build batch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return BatchResponse{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return BatchResponse{Status: resp.StatusCode}, fmt.Errorf("read batch response: %w", err)
	}
	return BatchResponse{Status: resp.StatusCode, Body: body}, nil
}
