package track

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/summitroofing/beacon/internal/wire"
)

// Sender delivers one flushed batch to the ingestion endpoint. A non-nil
// error means the batch was not accepted and will be requeued.
type Sender interface {
	Send(ctx context.Context, req *wire.BeaconRequest) error
}

// HTTPSender posts batches as JSON over HTTP. The request is sent with
// keepalive semantics: Send completes synchronously, so an unload-forced
// flush is not dropped by the host going away before the write finishes.
type HTTPSender struct {
	Endpoint string
	Client   *http.Client
}

func (s *HTTPSender) Send(ctx context.Context, req *wire.BeaconRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("track.HTTPSender.Send: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("track.HTTPSender.Send: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("track.HTTPSender.Send: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("track.HTTPSender.Send: endpoint returned %d", resp.StatusCode)
	}

	return nil
}
