package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kiramarket/kirama-backend/api/middleware"
	pkgerrors "github.com/kiramarket/kirama-backend/pkg/errors"
)

type actor struct {
	UserID uuid.UUID
	Role   string
}

// requestActor pulls the authenticated principal out of the request context.
func requestActor(r *http.Request) (actor, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return actor{UserID: userID, Role: middleware.RoleFromContext(r.Context())}, nil
}

// optionalActor returns whatever identity the request carries. Public
// endpoints accept anonymous callers, so a missing principal is not an error.
func optionalActor(r *http.Request) actor {
	act, err := requestActor(r)
	if err != nil {
		return actor{}
	}
	return act
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	raw := chi.URLParam(r, param)
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "missing path parameter").WithDetails(map[string]any{"field": param})
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "path parameter must be a UUID").WithDetails(map[string]any{"field": param})
	}
	return id, nil
}
