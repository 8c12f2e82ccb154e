package v1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/stacklok/rrbroker/pkg/api/errors"
	"github.com/stacklok/rrbroker/pkg/broker"
	rrberrors "github.com/stacklok/rrbroker/pkg/errors"
)

// AdminRoutes implements the `/admin/{cmd}` surface of §6: suspend and
// resume the session-creation admission gate.
type AdminRoutes struct {
	broker *broker.Broker
}

// AdminRouter mounts the admin command routes.
func AdminRouter(b *broker.Broker) http.Handler {
	routes := &AdminRoutes{broker: b}

	r := chi.NewRouter()
	r.Put("/{cmd}", apierrors.ErrorHandler(routes.command))
	return r
}

func (a *AdminRoutes) command(w http.ResponseWriter, r *http.Request) error {
	cmd := chi.URLParam(r, "cmd")
	switch cmd {
	case "suspend":
		if err := a.broker.Suspend(r.Context()); err != nil {
			return err
		}
	case "resume":
		if err := a.broker.Resume(r.Context()); err != nil {
			return err
		}
	case "keepalive":
		id, err := sessionIDFromCookie(r)
		if err != nil {
			return err
		}
		if err := a.broker.KeepAlive(r.Context(), id); err != nil {
			return err
		}
	default:
		return rrberrors.NewInvalidArgumentError("unknown admin command "+cmd, nil)
	}
	w.WriteHeader(http.StatusOK)
	return nil
}
