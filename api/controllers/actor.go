package controllers

import (
	"net/http"

	"github.com/sppg-platform/budget-engine/api/middleware"
	"github.com/sppg-platform/budget-engine/api/responses"
	"github.com/sppg-platform/budget-engine/internal/tenancy"
	pkgerrors "github.com/sppg-platform/budget-engine/pkg/errors"
	"github.com/sppg-platform/budget-engine/pkg/logger"
)

// requireActor loads the authenticated actor, writing the error response when
// the context carries no usable identity.
func requireActor(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (tenancy.Actor, bool) {
	actor := middleware.ActorFromContext(r.Context())
	if err := actor.Validate(); err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return tenancy.Actor{}, false
	}
	return actor, true
}

func serviceUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger, name string) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable"))
}
