package blog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/summitroofing/beacon/internal/wire"
)

// HTTPSender posts log batches as JSON to the remote sink endpoint.
type HTTPSender struct {
	Endpoint string
	Client   *http.Client
}

func (s *HTTPSender) Send(ctx context.Context, req *wire.LogRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("blog.HTTPSender.Send: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("blog.HTTPSender.Send: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("blog.HTTPSender.Send: %w", err)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("blog.HTTPSender.Send: sink returned %d", resp.StatusCode)
	}

	return nil
}
