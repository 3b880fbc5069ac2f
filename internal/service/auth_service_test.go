package service

import (
	"context"
	"testing"

	"connectrpc.com/connect"

	"github.com/mmynk/prepaidrecon/internal/auth"
	"github.com/mmynk/prepaidrecon/internal/models"
	"github.com/mmynk/prepaidrecon/pkg/api"
)

func TestAuthService_LoginAndCurrentUser(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	_, err := env.authenticator.Register(ctx, auth.Registration{
		Email:       "Ana@Example.com ",
		DisplayName: "Ana",
		Credential:  "password123",
		Role:        models.RoleChecker,
		EntityIDs:   []string{"E1"},
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	resp, err := env.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{Email: "ana@example.com", Password: "password123"}))
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if resp.Msg.Token == "" || resp.Msg.User.Role != models.RoleChecker {
		t.Fatalf("login response = %+v", resp.Msg)
	}

	claims, err := env.jwt.Validate(resp.Msg.Token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.Role != models.RoleChecker || len(claims.Scope()) != 1 {
		t.Errorf("claims = %+v", claims)
	}

	req := connect.NewRequest(&api.GetCurrentUserRequest{})
	req.Header().Set("Authorization", "Bearer "+resp.Msg.Token)
	me, err := env.auth.GetCurrentUser(ctx, req)
	if err != nil {
		t.Fatalf("GetCurrentUser failed: %v", err)
	}
	if me.Msg.User.DisplayName != "Ana" || me.Msg.User.Email != "ana@example.com" {
		t.Errorf("current user = %+v", me.Msg.User)
	}

	trail, err := env.store.ListAuditEntries(ctx, "user", resp.Msg.User.ID)
	if err != nil || len(trail) != 1 || trail[0].Action != "LOGIN" {
		t.Errorf("login audit trail = %+v, %v", trail, err)
	}
}

func TestAuthService_LoginFailures(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	if _, err := env.authenticator.Register(ctx, auth.Registration{Email: "bo@example.com", DisplayName: "Bo", Credential: "password123", Role: models.RoleMaker}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tests := []struct {
		name string
		req  *api.LoginRequest
		code connect.Code
	}{
		{"wrong password", &api.LoginRequest{Email: "bo@example.com", Password: "nope-nope"}, connect.CodeUnauthenticated},
		{"unknown user", &api.LoginRequest{Email: "ghost@example.com", Password: "password123"}, connect.CodeUnauthenticated},
		{"missing password", &api.LoginRequest{Email: "bo@example.com"}, connect.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.auth.Login(ctx, connect.NewRequest(tt.req))
			assertCode(t, err, tt.code)
		})
	}
}

func TestAuthService_RequiresToken(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	_, err := env.auth.GetCurrentUser(ctx, connect.NewRequest(&api.GetCurrentUserRequest{}))
	assertCode(t, err, connect.CodeUnauthenticated)

	req := connect.NewRequest(&api.GetCurrentUserRequest{})
	req.Header().Set("Authorization", "Bearer not-a-token")
	_, err = env.auth.GetCurrentUser(ctx, req)
	assertCode(t, err, connect.CodeUnauthenticated)

	// A valid token for a user that is not stored.
	_, err = env.auth.GetCurrentUser(ctx, as(t, env, makerUser, &api.GetCurrentUserRequest{}))
	assertCode(t, err, connect.CodeNotFound)
}

func TestAuthService_Register(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	valid := &api.RegisterRequest{
		Email:       "cy@example.com",
		DisplayName: "Cy",
		Password:    "password123",
		Role:        models.RoleEntityUser,
		EntityIDs:   []string{"E2"},
	}

	_, err := env.auth.Register(ctx, as(t, env, makerUser, valid))
	assertCode(t, err, connect.CodePermissionDenied)

	resp, err := env.auth.Register(ctx, as(t, env, adminUser, valid))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if resp.Msg.User.ID == "" || resp.Msg.User.Role != models.RoleEntityUser {
		t.Errorf("registered user = %+v", resp.Msg.User)
	}

	tests := []struct {
		name string
		req  *api.RegisterRequest
		code connect.Code
	}{
		{"duplicate email", valid, connect.CodeAlreadyExists},
		{"weak password", &api.RegisterRequest{Email: "dee@example.com", DisplayName: "Dee", Password: "short", Role: models.RoleMaker}, connect.CodeInvalidArgument},
		{"unknown role", &api.RegisterRequest{Email: "eve@example.com", DisplayName: "Eve", Password: "password123", Role: "OWNER"}, connect.CodeInvalidArgument},
		{"bad email", &api.RegisterRequest{Email: "not-an-email", DisplayName: "Fay", Password: "password123", Role: models.RoleMaker}, connect.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.auth.Register(ctx, as(t, env, adminUser, tt.req))
			assertCode(t, err, tt.code)
		})
	}
}
