// Package unicore implements the UNICORE REST grid allocator: job
// submission, start, hostname discovery, teardown, and log retrieval
// against a UNICORE registry over HTTPS.
package unicore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/stacklok/rrbroker/pkg/allocator"
	rrberrors "github.com/stacklok/rrbroker/pkg/errors"
	"github.com/stacklok/rrbroker/pkg/resourceconfig"
	"github.com/stacklok/rrbroker/pkg/session"
)

type sessionStore interface {
	Update(ctx context.Context, s *session.Session) error
}

type configLookup interface {
	Get(ctx context.Context, id string) (*resourceconfig.ResourceConfig, error)
}

// Config holds the broker-wide UNICORE allocator settings.
type Config struct {
	RegistryURL string
	DefaultSite string
	BearerToken string
	LogCapBytes int64
	HTTPTimeout time.Duration
}

// Allocator implements allocator.Allocator against a UNICORE grid.
//
// The Session fields job_id and cluster_node are repurposed here: job_id
// holds the normalized job resource URL (_links.self.href) and
// cluster_node holds the working directory URL
// (_links.workingDirectory.href) — both opaque to the core, per the data
// model's stated contract.
type Allocator struct {
	cfg    Config
	store  sessionStore
	registry configLookup
	rest   restClient

	mu sync.Mutex
}

// New constructs a UNICORE Allocator.
func New(cfg Config, store sessionStore, registry configLookup) *Allocator {
	return &Allocator{
		cfg:      cfg,
		store:    store,
		registry: registry,
		rest: &httpRESTClient{
			client:      &http.Client{Timeout: cfg.HTTPTimeout},
			bearerToken: cfg.BearerToken,
		},
	}
}

func (a *Allocator) Schedule(ctx context.Context, sess *session.Session, info *allocator.JobInformation) (allocator.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rc, err := a.registry.Get(ctx, sess.ConfigID)
	if err != nil {
		return allocator.Result{}, err
	}

	siteCoreURL, err := a.resolveSiteCoreURL(ctx)
	if err != nil {
		return allocator.Result{}, err
	}

	a.clearStaleJobsBestEffort(ctx, siteCoreURL)

	nbNodes := rc.NbNodes
	if info != nil && info.NbNodes != 0 {
		nbNodes = info.NbNodes
	}
	if nbNodes < 1 {
		nbNodes = 1
	}

	submission := jobSubmission{
		ApplicationName: "Bash shell",
		Parameters:      map[string]string{"SOURCE": "input.sh"},
		Resources:       jobResources{Nodes: nbNodes},
		HaveClientStageIn: true,
	}
	jobURL, err := a.submitJob(ctx, siteCoreURL, submission)
	if err != nil {
		return allocator.Result{}, err
	}

	links, err := a.fetchJobLinks(ctx, jobURL)
	if err != nil {
		return allocator.Result{}, err
	}

	script := buildInputScript(rc, info)
	if err := a.uploadInputScript(ctx, links.WorkingDirectory.Href, script); err != nil {
		return allocator.Result{}, err
	}

	sess.JobID = links.Self.Href
	sess.ClusterNode = links.WorkingDirectory.Href
	sess.Status = session.StatusScheduled
	if err := a.store.Update(ctx, sess); err != nil {
		return allocator.Result{}, err
	}
	return allocator.Result{StatusCode: http.StatusOK, Body: links.Self.Href}, nil
}

func (a *Allocator) Start(ctx context.Context, sess *session.Session, _ *allocator.JobInformation) (allocator.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startLocked(ctx, sess)
}

func (a *Allocator) startLocked(ctx context.Context, sess *session.Session) (allocator.Result, error) {
	rc, err := a.registry.Get(ctx, sess.ConfigID)
	if err != nil {
		return allocator.Result{}, err
	}

	links, err := a.fetchJobLinks(ctx, sess.JobID)
	if err != nil {
		return allocator.Result{}, err
	}
	if links.ActionStart.Href == "" {
		return allocator.Result{}, rrberrors.NewInternalError("job resource has no action:start link", nil)
	}

	resp, err := a.rest.do(ctx, http.MethodPost, links.ActionStart.Href, "", nil)
	if err != nil {
		return allocator.Result{}, rrberrors.NewTransportError("starting unicore job", err)
	}
	defer drain(resp)
	if resp.StatusCode >= 300 {
		return allocator.Result{}, unexpectedStatus("start job", resp)
	}

	if rc.WaitUntilRunning {
		sess.Status = session.StatusStarting
	} else {
		sess.Status = session.StatusRunning
	}
	if err := a.store.Update(ctx, sess); err != nil {
		return allocator.Result{}, err
	}
	return allocator.Result{StatusCode: http.StatusOK}, nil
}

var hostnamePattern = regexp.MustCompile(`(?m)^HOSTNAME=(\S+)`)

func (a *Allocator) Hostname(ctx context.Context, sess *session.Session) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	status, err := a.jobStatus(ctx, sess.JobID)
	if err != nil {
		return "", err
	}

	switch status {
	case jobStatusReady:
		if _, err := a.startLocked(ctx, sess); err != nil {
			return "", err
		}
		return "", nil
	case jobStatusSuccessful, jobStatusFailed:
		if _, err := a.stopLocked(ctx, sess); err != nil {
			return "", err
		}
		return allocator.HostnameFailed, nil
	default:
		stderr, err := a.readWorkdirFile(ctx, sess.ClusterNode, "stderr", 0)
		if err != nil {
			return "", err
		}
		match := hostnamePattern.FindStringSubmatch(stderr)
		if len(match) != 2 {
			return "", nil
		}
		sess.Status = session.StatusStarting
		if err := a.store.Update(ctx, sess); err != nil {
			return "", err
		}
		return match[1], nil
	}
}

func (a *Allocator) Stop(ctx context.Context, sess *session.Session) (allocator.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopLocked(ctx, sess)
}

func (a *Allocator) stopLocked(ctx context.Context, sess *session.Session) (allocator.Result, error) {
	resp, err := a.rest.do(ctx, http.MethodDelete, sess.JobID, "", nil)
	if err != nil {
		return allocator.Result{}, rrberrors.NewTransportError("deleting unicore job", err)
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusNoContent {
		return allocator.Result{StatusCode: resp.StatusCode}, unexpectedStatus("stop job", resp)
	}
	return allocator.Result{StatusCode: http.StatusOK}, nil
}

func (a *Allocator) Kill(ctx context.Context, sess *session.Session) (allocator.Result, error) {
	return a.Stop(ctx, sess)
}

func (a *Allocator) JobInformationText(ctx context.Context, sess *session.Session) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	status, err := a.jobStatus(ctx, sess.JobID)
	if err != nil {
		return "", err
	}
	return status, nil
}

func (a *Allocator) OutLog(ctx context.Context, sess *session.Session) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.readWorkdirFile(ctx, sess.ClusterNode, "stdout", a.cfg.LogCapBytes)
}

func (a *Allocator) ErrLog(ctx context.Context, sess *session.Session) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.readWorkdirFile(ctx, sess.ClusterNode, "stderr", a.cfg.LogCapBytes)
}

func (a *Allocator) resolveSiteCoreURL(ctx context.Context) (string, error) {
	resp, err := a.rest.do(ctx, http.MethodGet, a.cfg.RegistryURL+"/rest/core", "", nil)
	if err != nil {
		return "", rrberrors.NewTransportError("listing unicore sites", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", unexpectedStatus("list sites", resp)
	}
	var listing registryListing
	if err := decodeJSON(resp, &listing); err != nil {
		return "", rrberrors.NewTransportError("decoding unicore site listing", err)
	}
	for _, site := range listing.Sites {
		if site.Name == a.cfg.DefaultSite {
			return site.Href, nil
		}
	}
	return "", rrberrors.NewInternalError(fmt.Sprintf("unicore site %q not found in registry", a.cfg.DefaultSite), nil)
}

func (a *Allocator) clearStaleJobsBestEffort(ctx context.Context, siteCoreURL string) {
	resp, err := a.rest.do(ctx, http.MethodGet, siteCoreURL, "", nil)
	if err != nil {
		return
	}
	drain(resp)
}

func (a *Allocator) submitJob(ctx context.Context, siteCoreURL string, submission jobSubmission) (string, error) {
	body, err := json.Marshal(submission)
	if err != nil {
		return "", rrberrors.NewInternalError("encoding job submission", err)
	}
	resp, err := a.rest.do(ctx, http.MethodPost, siteCoreURL+"/jobs", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", rrberrors.NewTransportError("submitting unicore job", err)
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusCreated {
		return "", unexpectedStatus("submit job", resp)
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return "", rrberrors.NewTransportError("unicore job submission response had no Location header", nil)
	}
	return location, nil
}

func (a *Allocator) fetchJobLinks(ctx context.Context, jobURL string) (jobLinks, error) {
	resp, err := a.rest.do(ctx, http.MethodGet, jobURL, "", nil)
	if err != nil {
		return jobLinks{}, rrberrors.NewTransportError("fetching unicore job resource", err)
	}
	if resp.StatusCode != http.StatusOK {
		return jobLinks{}, unexpectedStatus("fetch job", resp)
	}
	var job jobResource
	if err := decodeJSON(resp, &job); err != nil {
		return jobLinks{}, rrberrors.NewTransportError("decoding unicore job resource", err)
	}
	return job.Links, nil
}

func (a *Allocator) jobStatus(ctx context.Context, jobURL string) (string, error) {
	resp, err := a.rest.do(ctx, http.MethodGet, jobURL, "", nil)
	if err != nil {
		return "", rrberrors.NewTransportError("fetching unicore job properties", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", unexpectedStatus("fetch job properties", resp)
	}
	var props jobProperties
	if err := decodeJSON(resp, &props); err != nil {
		return "", rrberrors.NewTransportError("decoding unicore job properties", err)
	}
	return props.Status, nil
}

func (a *Allocator) readWorkdirFile(ctx context.Context, workdirURL, name string, capBytes int64) (string, error) {
	if capBytes > 0 {
		propsResp, err := a.rest.do(ctx, http.MethodGet, workdirURL+"/files/"+name+"/properties", "", nil)
		if err == nil && propsResp.StatusCode == http.StatusOK {
			var props fileProperties
			if decErr := decodeJSON(propsResp, &props); decErr == nil && props.Size > capBytes {
				return "", rrberrors.NewInvalidArgumentError(fmt.Sprintf("log file %q exceeds cap of %d bytes", name, capBytes), nil)
			}
		} else {
			drain(propsResp)
		}
	}

	resp, err := a.rest.do(ctx, http.MethodGet, workdirURL+"/files/"+name, "", nil)
	if err != nil {
		return "", rrberrors.NewTransportError(fmt.Sprintf("fetching %s", name), err)
	}
	defer drain(resp)
	if resp.StatusCode == http.StatusNotFound {
		return "", rrberrors.NewNotFoundError(fmt.Sprintf("%s not yet available", name), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return "", unexpectedStatus("fetch "+name, resp)
	}
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return "", rrberrors.NewTransportError(fmt.Sprintf("reading %s", name), err)
	}
	return buf.String(), nil
}

func (a *Allocator) uploadInputScript(ctx context.Context, workdirURL, script string) error {
	resp, err := a.rest.do(ctx, http.MethodPut, workdirURL+"/files/input.sh", "application/octet-stream", strings.NewReader(script))
	if err != nil {
		return rrberrors.NewTransportError("uploading input.sh", err)
	}
	defer drain(resp)
	if resp.StatusCode >= 300 {
		return unexpectedStatus("upload input.sh", resp)
	}
	return nil
}

// buildInputScript assembles the shell program staged into the job's
// working directory, identical in shape to the SSH-batch allocator's
// start script: module loads, environment, then the formatted command
// line.
func buildInputScript(rc *resourceconfig.ResourceConfig, info *allocator.JobInformation) string {
	var b strings.Builder
	b.WriteString("module purge; ")
	for _, m := range strings.Fields(rc.Modules) {
		fmt.Fprintf(&b, "module load %s; ", m)
	}
	for _, kv := range strings.Fields(rc.EnvironmentVariables) {
		fmt.Fprintf(&b, "%s ", kv)
	}
	extraParams := ""
	if info != nil {
		extraParams = info.Params
	}
	restParams := resourceconfig.FormatRESTParameters(rc.SchedulerRESTParametersFormat, "", "", "", "")
	fmt.Fprintf(&b, "%s %s %s\n", rc.CommandLine, restParams, extraParams)
	return b.String()
}

var _ allocator.Allocator = (*Allocator)(nil)
