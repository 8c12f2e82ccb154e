package unicore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	rrberrors "github.com/stacklok/rrbroker/pkg/errors"
)

// restClient is the narrow HTTP slice the allocator needs against the
// UNICORE registry and grid REST API, abstracted for testability.
type restClient interface {
	do(ctx context.Context, method, url, contentType string, body io.Reader) (*http.Response, error)
}

type httpRESTClient struct {
	client      *http.Client
	bearerToken string
}

func (c *httpRESTClient) do(ctx context.Context, method, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.client.Do(req)
}

func decodeJSON(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

func drain(resp *http.Response) {
	if resp == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func unexpectedStatus(op string, resp *http.Response) error {
	defer drain(resp)
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return rrberrors.NewTransportError(fmt.Sprintf("%s: unexpected status %s", op, resp.Status), fmt.Errorf("%s", strings.TrimSpace(string(body))))
}
