package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/faishion/tryon-client/internal/constants"
	"github.com/faishion/tryon-client/internal/logging"
	"github.com/faishion/tryon-client/internal/models"
)

// client holds the request plumbing shared by the catalog and history
// clients. It never retries and never caches.
type client struct {
	httpClient *nethttp.Client
	baseURL    string
	timeout    time.Duration
	logger     *logging.Logger
}

func newClient(httpClient *nethttp.Client, baseURL string, timeout time.Duration, component string) (*client, error) {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%s base URL is empty", component)
	}
	if httpClient == nil {
		httpClient = &nethttp.Client{}
	}
	if timeout <= 0 {
		timeout = constants.FetchTimeout
	}
	return &client{
		httpClient: httpClient,
		baseURL:    baseURL,
		timeout:    timeout,
		logger:     logging.NewLogger(component, nil),
	}, nil
}

func validateQuery(q models.Query) error {
	if q.Page < 1 {
		return fmt.Errorf("%w: page %d must be at least 1", ErrInvalidQuery, q.Page)
	}
	if q.PageSize < 1 {
		return fmt.Errorf("%w: page size %d must be positive", ErrInvalidQuery, q.PageSize)
	}
	return nil
}

// get issues one GET with the fetch deadline applied and returns the body of
// a 2xx response. Every failure is a *FetchError except cancellation of ctx
// by the caller, which is returned as the context error.
func (c *client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	rawURL := c.baseURL + path
	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}
	requestID := uuid.NewString()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := nethttp.NewRequestWithContext(reqCtx, nethttp.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindNetwork, URL: rawURL, RequestID: requestID, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// Caller cancelled (superseded request or shutdown)
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		kind := KindNetwork
		if isTimeout(err) {
			kind = KindTimeout
		}
		c.logger.Debug().
			Str("request_id", requestID).
			Str("url", rawURL).
			Str("kind", kind.String()).
			Err(err).
			Msg("request failed")
		return nil, &FetchError{Kind: kind, URL: rawURL, RequestID: requestID, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		kind := KindNetwork
		if isTimeout(err) {
			kind = KindTimeout
		}
		return nil, &FetchError{Kind: kind, URL: rawURL, RequestID: requestID, Err: err}
	}

	c.logger.Debug().
		Str("request_id", requestID).
		Str("url", rawURL).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("elapsed", time.Since(start)).
		Msg("response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{
			Kind:      KindServer,
			Status:    resp.StatusCode,
			Body:      snippet(body),
			URL:       rawURL,
			RequestID: requestID,
		}
	}

	return body, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > constants.ErrorBodySnippetLimit {
		s = s[:constants.ErrorBodySnippetLimit] + "..."
	}
	return s
}

// envelope is the decoded outer shape of a page response.
type envelope struct {
	items   json.RawMessage // nil when absent or null
	hasNext bool
}

// decodeEnvelope finds the items array under field. A missing field is an
// empty page; a present non-array field, or a body that is not a JSON
// object, is a parse error. With allowBareArray a top-level array is taken
// as the items with no further pages.
func decodeEnvelope(body []byte, field string, allowBareArray bool) (envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return envelope{}, errors.New("empty body")
	}

	if trimmed[0] == '[' {
		if !allowBareArray {
			return envelope{}, errors.New("expected a JSON object, got an array")
		}
		return envelope{items: trimmed}, nil
	}
	if trimmed[0] != '{' {
		return envelope{}, errors.New("expected a JSON object")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return envelope{}, err
	}

	var env envelope
	if raw, ok := fields[field]; ok && !isNull(raw) {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '[' {
			return envelope{}, fmt.Errorf("%q is not an array", field)
		}
		env.items = raw
	}

	if raw, ok := fields["pagination"]; ok && !isNull(raw) {
		var p struct {
			HasNext *bool `json:"has_next"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return envelope{}, fmt.Errorf("pagination: %w", err)
		}
		if p.HasNext != nil {
			env.hasNext = *p.HasNext
		}
	}

	return env, nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func parseError(rawURL string, err error) error {
	return &FetchError{Kind: KindParse, URL: rawURL, Err: err}
}

func pageParams(q models.Query) url.Values {
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("limit", strconv.Itoa(q.PageSize))
	return params
}
