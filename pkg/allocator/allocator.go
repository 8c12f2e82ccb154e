// Package allocator defines the uniform contract shared by the SSH-batch,
// UNICORE, and local-process backends, plus the closed dispatch table
// that selects among them at startup.
package allocator

import (
	"context"
	"fmt"

	rrberrors "github.com/stacklok/rrbroker/pkg/errors"
	"github.com/stacklok/rrbroker/pkg/session"
)

// JobInformation carries per-call overrides on top of a ResourceConfig's
// defaults, as described in §4.3 of the design spec.
type JobInformation struct {
	Name             string
	Params           string
	Environment      string
	Reservation      string
	Project          string
	Exclusive        bool
	NbNodes          int
	NbCPUs           int
	NbGPUs           int
	Memory           int
	Queue            string
	AllocationTime   string
}

// Result is the (status_code, body) pair every allocator call returns,
// per §4.3. StatusCode follows the broker's HTTP status taxonomy; Body is
// a short diagnostic or payload string.
type Result struct {
	StatusCode int    `json:"status_code"`
	Body       string `json:"body"`
}

// Allocator is the capability set every backend variant implements. Each
// method serializes internally (one mutex per allocator instance) so two
// concurrent calls against the same allocator observe a total order.
type Allocator interface {
	// Schedule allocates and starts the rendering resource for sess,
	// mutating sess's status and allocator fields as it progresses.
	Schedule(ctx context.Context, sess *session.Session, info *JobInformation) (Result, error)
	// Start launches the rendering binary on an already-allocated
	// resource (used directly by the local-process "open" path).
	Start(ctx context.Context, sess *session.Session, info *JobInformation) (Result, error)
	// Stop tears down the rendering resource gracefully where configured,
	// then cancels the underlying allocation.
	Stop(ctx context.Context, sess *session.Session) (Result, error)
	// Kill forcibly terminates the allocation without graceful exit.
	Kill(ctx context.Context, sess *session.Session) (Result, error)
	// Hostname asks the allocator which concrete host now serves the
	// session's job; returns "" if not yet known, the sentinel "FAILED"
	// if the allocation died.
	Hostname(ctx context.Context, sess *session.Session) (string, error)
	// JobInformationText returns scheduler-specific status text verbatim;
	// no parsing contract is defined over it.
	JobInformationText(ctx context.Context, sess *session.Session) (string, error)
	// OutLog returns the captured stdout of the rendering process.
	OutLog(ctx context.Context, sess *session.Session) (string, error)
	// ErrLog returns the captured stderr of the rendering process.
	ErrLog(ctx context.Context, sess *session.Session) (string, error)
}

// HostnameFailed is the sentinel Hostname() returns when the allocation
// has died and the session should be torn down rather than retried.
const HostnameFailed = "FAILED"

// Kind names one of the supported allocator backends.
type Kind string

// Supported allocator kinds, mirroring config.AllocatorKind.
const (
	KindSSH          Kind = "ssh"
	KindUNICORE      Kind = "unicore"
	KindLocalProcess Kind = "local"
)

// Factory constructs an Allocator on demand; used by Dispatch so callers
// don't need to import every concrete backend package.
type Factory func() (Allocator, error)

// Dispatch is the closed, startup-constructed mapping from Kind to
// Allocator, per the design spec's "Dynamic dispatch over allocators"
// note. It holds a single constructed instance per configured kind,
// avoiding a package-level singleton.
type Dispatch struct {
	allocators map[Kind]Allocator
}

// NewDispatch builds a Dispatch from a set of already-constructed
// allocators.
func NewDispatch(allocators map[Kind]Allocator) *Dispatch {
	return &Dispatch{allocators: allocators}
}

// For returns the Allocator registered for kind.
func (d *Dispatch) For(kind Kind) (Allocator, error) {
	a, ok := d.allocators[kind]
	if !ok {
		return nil, rrberrors.NewInternalError(fmt.Sprintf("no allocator registered for kind %q", kind), nil)
	}
	return a, nil
}
