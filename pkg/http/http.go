package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const (
	maxIdleConns     = 10
	timeoutInSeconds = 30
	maxErrorBody     = 1 << 10
	clientAgent      = "bowler-cli"
)

var (
	reqTransport = &http.Transport{
		MaxIdleConns:          maxIdleConns,
		IdleConnTimeout:       timeoutInSeconds * time.Second,
		DisableCompression:    true,
		DisableKeepAlives:     false,
		ResponseHeaderTimeout: time.Duration(timeoutInSeconds) * time.Second,
	}

	client = &http.Client{
		Timeout:   time.Duration(timeoutInSeconds) * time.Second,
		Transport: reqTransport,
	}
)

// StatusError is returned for responses outside the 2xx range. Body holds
// the start of the response body.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// GetJSON retrieves the HTTP content and decodes it into the passed target.
func GetJSON[T any](ctx context.Context, url string, target *T) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "error creating HTTP GET request")
	}
	return do(req, target)
}

// PostJSON sends body encoded as JSON and decodes the response into target.
// Non 2xx responses still decode into target when they carry JSON, and the
// returned error is a *StatusError.
func PostJSON[T any](ctx context.Context, url string, body any, target *T) error {
	b, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "error encoding request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return errors.Wrap(err, "error creating HTTP POST request")
	}
	req.Header.Set("Content-Type", "application/json")

	return do(req, target)
}

func do[T any](req *http.Request, target *T) error {
	req.Header.Set("User-Agent", clientAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "error executing %s %s", req.Method, req.URL)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "error reading response body")
	}

	decodeErr := json.Unmarshal(b, target)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		if len(b) > maxErrorBody {
			b = b[:maxErrorBody]
		}
		return &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(b))}
	}

	if decodeErr != nil {
		return errors.Wrap(decodeErr, "error decoding content")
	}
	return nil
}
