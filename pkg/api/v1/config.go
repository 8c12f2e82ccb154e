package v1

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/stacklok/rrbroker/pkg/api/errors"
	rrberrors "github.com/stacklok/rrbroker/pkg/errors"
	"github.com/stacklok/rrbroker/pkg/resourceconfig"
)

// ConfigRegistry is the slice of *resourceconfig.Registry the config
// routes depend on.
type ConfigRegistry interface {
	Get(ctx context.Context, id string) (*resourceconfig.ResourceConfig, error)
	Create(ctx context.Context, rc *resourceconfig.ResourceConfig) error
	Update(ctx context.Context, rc *resourceconfig.ResourceConfig) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*resourceconfig.ResourceConfig, error)
}

// ConfigRoutes implements the `/config/` resource family of §6.
type ConfigRoutes struct {
	registry ConfigRegistry
}

// ConfigRouter mounts the resource-config CRUD routes.
func ConfigRouter(registry ConfigRegistry) http.Handler {
	routes := &ConfigRoutes{registry: registry}

	r := chi.NewRouter()
	r.Get("/", apierrors.ErrorHandler(routes.list))
	r.Post("/", apierrors.ErrorHandler(routes.create))
	r.Put("/", apierrors.ErrorHandler(routes.update))
	r.Delete("/{id}/", apierrors.ErrorHandler(routes.destroy))
	return r
}

func (c *ConfigRoutes) list(w http.ResponseWriter, r *http.Request) error {
	configs, err := c.registry.List(r.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, configs)
}

func (c *ConfigRoutes) create(w http.ResponseWriter, r *http.Request) error {
	var rc resourceconfig.ResourceConfig
	if err := json.NewDecoder(r.Body).Decode(&rc); err != nil {
		return rrberrors.NewInvalidArgumentError("decoding resource config", err)
	}
	if err := c.registry.Create(r.Context(), &rc); err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, &rc)
}

func (c *ConfigRoutes) update(w http.ResponseWriter, r *http.Request) error {
	var rc resourceconfig.ResourceConfig
	if err := json.NewDecoder(r.Body).Decode(&rc); err != nil {
		return rrberrors.NewInvalidArgumentError("decoding resource config", err)
	}
	if err := c.registry.Update(r.Context(), &rc); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, &rc)
}

func (c *ConfigRoutes) destroy(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	if err := c.registry.Delete(r.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}
