// Package service implements the prepaidrecon.v1 Connect services on top of
// the reconciliation engine and storage.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"connectrpc.com/connect"
	"github.com/go-playground/validator/v10"

	"github.com/mmynk/prepaidrecon/internal/ingest"
	"github.com/mmynk/prepaidrecon/internal/middleware"
	"github.com/mmynk/prepaidrecon/internal/models"
	"github.com/mmynk/prepaidrecon/internal/recon"
	"github.com/mmynk/prepaidrecon/internal/storage"
	"github.com/mmynk/prepaidrecon/pkg/api"
)

// Roles allowed per action.
var (
	proposerRoles = []models.Role{models.RoleMaker, models.RoleAdmin, models.RoleAppAdministrator, models.RoleEntityUser}
	checkerRoles  = []models.Role{models.RoleChecker, models.RoleAdmin, models.RoleAppAdministrator}
	adminRoles    = []models.Role{models.RoleAdmin, models.RoleAppAdministrator}
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// requireUser returns the authenticated user ID.
func requireUser(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, fmt.Errorf("authentication required"))
	}
	return userID, nil
}

// requireRole checks that the caller holds one of allowed.
func requireRole(ctx context.Context, allowed []models.Role) error {
	role := middleware.GetRole(ctx)
	for _, r := range allowed {
		if role == r {
			return nil
		}
	}
	return connect.NewError(connect.CodePermissionDenied, fmt.Errorf("role %q may not perform this action", role))
}

// validateMsg runs struct tag validation on a request message.
func validateMsg(msg any) error {
	err := validate.Struct(msg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return connect.NewError(connect.CodeInvalidArgument, err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
	}
	return connect.NewError(connect.CodeInvalidArgument, errors.New(strings.Join(parts, ", ")))
}

// toConnectError maps engine and storage errors onto Connect codes.
func toConnectError(err error) error {
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		return cerr
	}
	switch {
	case errors.Is(err, recon.ErrValidation), errors.Is(err, ingest.ErrMalformed):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, recon.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, recon.ErrConflict), errors.Is(err, storage.ErrStatusConflict):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, storage.ErrVersionConflict):
		return connect.NewError(connect.CodeAborted, err)
	case errors.Is(err, recon.ErrPermission):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

func notFound(kind, id string) error {
	return connect.NewError(connect.CodeNotFound, fmt.Errorf("%s %s not found", kind, id))
}

func toAPIUser(u *models.User) *api.User {
	return &api.User{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		EntityIDs:   u.EntityIDs,
		CreatedAt:   u.CreatedAt,
	}
}
