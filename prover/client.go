package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Client is the JSON-over-HTTP transport shared by the backends. It makes
// exactly one attempt per call.
type Client struct {
	endpoint string
	client   *http.Client
	log      *logrus.Logger
}

// NewClient creates a Client for endpoint. A zero timeout leaves requests
// bounded only by the caller's context.
func NewClient(endpoint string, timeout time.Duration, log *logrus.Logger) *Client {
	if log == nil {
		log = logrus.New()
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
		log:      log,
	}
}

func (c *Client) request(ctx context.Context, method, path string, body any) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("error encoding JSON body: %w", err)
		}
		reader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("error creating %s request: %w", method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("error reading response body: %w", err)
	}
	return bodyBytes, resp.StatusCode, nil
}

// call performs one request and decodes the JSON response into out. Errors
// are classified into the backend error taxonomy.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	res, statusCode, err := c.request(ctx, method, path, body)
	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
			return fmt.Errorf("%s %s cancelled: %w", method, path, ctxErr)
		}
		if isTimeout(err) {
			return fmt.Errorf("%w: %s %s: %v", ErrBackendTimeout, method, path, err)
		}
		return fmt.Errorf("%w: %s %s: %v", ErrBackendSubmission, method, path, err)
	}

	if statusCode < 200 || statusCode >= 300 {
		c.log.Warnf("Backend %s %s returned HTTP %d", method, path, statusCode)
		if statusCode == http.StatusGatewayTimeout || statusCode == http.StatusRequestTimeout {
			return fmt.Errorf("%w: HTTP %d: %s", ErrBackendTimeout, statusCode, strings.TrimSpace(string(res)))
		}
		return fmt.Errorf("%w: HTTP %d: %s", ErrBackendSubmission, statusCode, strings.TrimSpace(string(res)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(res, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
