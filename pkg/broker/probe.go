package broker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// vocabularyPath is the well-known command the rendering resource
// exposes to signal it is ready to serve REST requests.
const vocabularyPath = "registry"

// probeRateLimit bounds how often a single VocabularyProber issues probes,
// so a burst of status polls against a slow-starting backend doesn't turn
// into a request storm.
const probeRateLimit = 2 // per second

// VocabularyProber implements manager.Prober by issuing the PUT
// request_vocabulary call against a session's resolved backend.
type VocabularyProber struct {
	Timeout time.Duration
	limiter *rate.Limiter
}

// NewVocabularyProber constructs a VocabularyProber with the given
// per-call timeout.
func NewVocabularyProber(timeout time.Duration) *VocabularyProber {
	return &VocabularyProber{
		Timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(probeRateLimit), 1),
	}
}

// Probe issues a short-timeout PUT to host:port/registry; a non-2xx
// response or transport error both count as "not yet serving".
func (p *VocabularyProber) Probe(ctx context.Context, host string, port int) error {
	if host == "" {
		return fmt.Errorf("no host resolved yet")
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	url := fmt.Sprintf("http://%s:%d/%s", host, port, vocabularyPath)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPut, url, nil)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: p.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("vocabulary probe returned status %d", resp.StatusCode)
	}
	return nil
}
