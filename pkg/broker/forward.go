package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stacklok/rrbroker/pkg/allocator"
	rrberrors "github.com/stacklok/rrbroker/pkg/errors"
	"github.com/stacklok/rrbroker/pkg/session"
)

// ForwardClient performs the outbound HTTP call to a session's allocated
// backend; split out so tests can substitute a fake transport.
type ForwardClient struct {
	Timeout time.Duration
}

// Forward implements the opaque-command forwarding protocol: verify
// hostname, require RUNNING with an HTTP endpoint, proxy the request
// verbatim, read the whole response body, check it against Content-Length,
// and only then write it back.
func (b *Broker) Forward(ctx context.Context, id, command string, r *http.Request, w http.ResponseWriter, fc *ForwardClient) error {
	sess, err := b.manager.VerifyHostname(ctx, id)
	if err != nil {
		return err
	}
	if sess.HTTPHost == "" {
		return rrberrors.NewNotFoundError(fmt.Sprintf("job scheduled but %q not yet running", command), nil)
	}

	sess, err = b.manager.QueryStatus(ctx, id)
	if err != nil {
		return err
	}
	if sess.Status != session.StatusRunning {
		resp, err := b.Status(ctx, id)
		if err != nil {
			return err
		}
		return writeJSON(w, http.StatusOK, resp)
	}

	upstreamURL := fmt.Sprintf("http://%s:%d/%s", sess.HTTPHost, sess.HTTPPort, strings.TrimPrefix(command, "/"))

	reqCtx, cancel := context.WithTimeout(ctx, fc.Timeout)
	defer cancel()

	var bodyReader io.Reader
	if hasBody(r.Method) {
		bodyReader = r.Body
	}
	upstreamReq, err := http.NewRequestWithContext(reqCtx, r.Method, upstreamURL, bodyReader)
	if err != nil {
		return rrberrors.NewTransportError("building upstream request", err)
	}
	copyForwardHeaders(r.Header, upstreamReq.Header)
	if cookie, err := r.Cookie(CookieName); err == nil {
		upstreamReq.AddCookie(cookie)
	}

	client := &http.Client{Timeout: fc.Timeout}
	resp, err := client.Do(upstreamReq)
	if err != nil {
		return b.handleForwardTransportError(ctx, sess, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return b.handleForwardTransportError(ctx, sess, err)
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if want, convErr := strconv.Atoi(cl); convErr == nil && want != len(body) {
			return rrberrors.NewInvalidArgumentError(fmt.Sprintf("response missing %d bytes", want-len(body)), nil)
		}
	}

	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, bytes.NewReader(body))
	return nil
}

func (b *Broker) handleForwardTransportError(ctx context.Context, sess *session.Session, transportErr error) error {
	if sess.JobID != "" {
		a, err := b.allocatorFor()
		if err == nil {
			if host, hostErr := a.Hostname(ctx, sess); hostErr == nil && host == allocator.HostnameFailed {
				_ = b.manager.DeleteSession(ctx, sess.ID)
				return rrberrors.NewAllocationFailedError(fmt.Sprintf("%s is down", sess.ConfigID), transportErr)
			}
		}
	}
	return rrberrors.NewTransportError(transportErr.Error(), transportErr)
}

func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}

// copyForwardHeaders rewrites CGI-style HTTP_<NAME> headers back to
// their canonical form (Name) as it copies them to the upstream request.
func copyForwardHeaders(src, dst http.Header) {
	for k, vs := range src {
		name := k
		if strings.HasPrefix(strings.ToUpper(k), "HTTP_") {
			name = strings.ReplaceAll(strings.TrimPrefix(strings.ToUpper(k), "HTTP_"), "_", "-")
		}
		for _, v := range vs {
			dst.Add(name, v)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
