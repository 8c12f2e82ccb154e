package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ImageFeedHook is the external image-streaming-service collaborator
// registered on session create and unregistered on session destroy, per
// spec.md §1's "image-feed sidecar route registration" and §4.5's
// `imagefeed` command. The broker ships a no-op implementation and
// accepts an injected HTTP-backed one in production.
type ImageFeedHook interface {
	Register(ctx context.Context, cookie, host string, port int) error
	Unregister(ctx context.Context, cookie string) error
}

// NoopImageFeedHook is the default hook used when no image streaming
// service is configured.
type NoopImageFeedHook struct{}

// Register is a no-op.
func (NoopImageFeedHook) Register(context.Context, string, string, int) error { return nil }

// Unregister is a no-op.
func (NoopImageFeedHook) Unregister(context.Context, string) error { return nil }

// HTTPImageFeedHook registers/unregisters routes against a real image
// streaming service, mirroring the source's ImageFeedManager's
// add_route/remove_route calls against "<base>/route".
type HTTPImageFeedHook struct {
	BaseURL string
	Timeout time.Duration
}

// NewHTTPImageFeedHook constructs an HTTPImageFeedHook.
func NewHTTPImageFeedHook(baseURL string, timeout time.Duration) *HTTPImageFeedHook {
	return &HTTPImageFeedHook{BaseURL: baseURL, Timeout: timeout}
}

// Register asks the image streaming service to create a route for
// cookie pointing at host:port.
func (h *HTTPImageFeedHook) Register(ctx context.Context, cookie, host string, port int) error {
	body, err := json.Marshal(map[string]string{"uri": fmt.Sprintf("http://%s:%d", host, port)})
	if err != nil {
		return err
	}
	return h.do(ctx, http.MethodPost, cookie, bytes.NewReader(body))
}

// Unregister asks the image streaming service to remove cookie's route.
func (h *HTTPImageFeedHook) Unregister(ctx context.Context, cookie string) error {
	return h.do(ctx, http.MethodDelete, cookie, nil)
}

func (h *HTTPImageFeedHook) do(ctx context.Context, method, cookie string, body *bytes.Reader) error {
	reqCtx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	var reader *bytes.Reader
	if body != nil {
		reader = body
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, h.BaseURL+"/route", reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: CookieName, Value: cookie})

	client := &http.Client{Timeout: h.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("image streaming service returned status %d", resp.StatusCode)
	}
	return nil
}
