package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/prepaidrecon/internal/audit"
	"github.com/mmynk/prepaidrecon/internal/auth"
	"github.com/mmynk/prepaidrecon/internal/ingest"
	"github.com/mmynk/prepaidrecon/internal/middleware"
	"github.com/mmynk/prepaidrecon/internal/models"
	"github.com/mmynk/prepaidrecon/internal/recon"
	"github.com/mmynk/prepaidrecon/internal/storage/sqlite"
	"github.com/mmynk/prepaidrecon/pkg/api/apiconnect"
)

const testSecret = "test-secret-key-0123456789"

// Test identities. Tokens are minted directly; only Login needs a stored user.
var (
	adminUser   = &models.User{ID: "u-admin", Email: "admin@example.com", Role: models.RoleAdmin}
	makerUser   = &models.User{ID: "u-maker", Email: "maker@example.com", Role: models.RoleMaker}
	checkerUser = &models.User{ID: "u-checker", Email: "checker@example.com", Role: models.RoleChecker}
	scopedUser  = &models.User{ID: "u-e2", Email: "e2@example.com", Role: models.RoleEntityUser, EntityIDs: []string{"E2"}}
)

type testEnv struct {
	store         *sqlite.SQLiteStore
	jwt           *auth.JWTManager
	authenticator *auth.PasswordAuthenticator

	auth            apiconnect.AuthServiceClient
	reconciliations apiconnect.ReconciliationServiceClient
	adjustments     apiconnect.AdjustmentServiceClient
	lines           apiconnect.LineServiceClient
	settings        apiconnect.SettingsServiceClient
}

// setupTestServer wires every service over a temporary SQLite database
// behind the real auth interceptor.
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "recon.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	jwtManager := auth.NewJWTManager(testSecret, time.Hour)
	authenticator := auth.NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost)
	recorder := audit.NewStoreRecorder(store)
	engine := recon.NewEngine(store)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	interceptors := connect.WithInterceptors(
		middleware.RequireAuth(jwtManager, apiconnect.AuthServiceLoginProcedure),
		middleware.LoggingInterceptor(),
	)

	mux := http.NewServeMux()
	mux.Handle(apiconnect.NewAuthServiceHandler(NewAuthService(authenticator, store, jwtManager, recorder, logger), interceptors))
	mux.Handle(apiconnect.NewReconciliationServiceHandler(NewReconciliationService(engine, store, recorder), interceptors))
	mux.Handle(apiconnect.NewAdjustmentServiceHandler(NewAdjustmentService(recon.NewWorkflow(engine), store, recorder), interceptors))
	mux.Handle(apiconnect.NewLineServiceHandler(NewLineService(ingest.NewImporter(store), recorder), interceptors))
	mux.Handle(apiconnect.NewSettingsServiceHandler(NewSettingsService(store, recorder), interceptors))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testEnv{
		store:           store,
		jwt:             jwtManager,
		authenticator:   authenticator,
		auth:            apiconnect.NewAuthServiceClient(http.DefaultClient, server.URL),
		reconciliations: apiconnect.NewReconciliationServiceClient(http.DefaultClient, server.URL),
		adjustments:     apiconnect.NewAdjustmentServiceClient(http.DefaultClient, server.URL),
		lines:           apiconnect.NewLineServiceClient(http.DefaultClient, server.URL),
		settings:        apiconnect.NewSettingsServiceClient(http.DefaultClient, server.URL),
	}
}

// as builds a request carrying a bearer token for user.
func as[T any](t *testing.T, env *testEnv, user *models.User, msg *T) *connect.Request[T] {
	t.Helper()
	req := connect.NewRequest(msg)
	if user != nil {
		token, err := env.jwt.Generate(user)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header().Set("Authorization", "Bearer "+token)
	}
	return req
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// seedExample loads the 2024_12 lines of entity E1: account 1400 has a
// subsystem total of 1200 against a GL balance of 1150, 1500 only has a
// schedule line and 1600 only a zero TB line.
func seedExample(t *testing.T, env *testEnv) {
	t.Helper()
	ctx := context.Background()

	err := env.store.AddWorkingLines(ctx, []models.WorkingLine{
		{ID: "w0", EntityID: "E1", FiscalYear: "2023", FiscalPeriod: "2023_12", PrepaidAccount: "1400", Additions: dec("1000")},
		{
			ID: "w1", EntityID: "E1", FiscalYear: "2024", FiscalPeriod: "2024_12", PrepaidAccount: "1400",
			OpeningBalance: dec("1000"), Additions: dec("500"), Amortization: decimal.NewNullDecimal(dec("300")),
		},
	})
	if err != nil {
		t.Fatalf("AddWorkingLines failed: %v", err)
	}
	err = env.store.AddScheduleLines(ctx, []models.ScheduleLine{
		{ID: "s1", EntityID: "E1", FiscalYear: "2024", FiscalPeriod: "2024_06", Account: "1400", ApplyDate: "2024-06-30", CreditAmount: dec("300"), PrepaidStartYear: "2023"},
		{ID: "s2", EntityID: "E1", FiscalYear: "2024", FiscalPeriod: "2024_12", Account: "1500", ApplyDate: "2024-12-15", CreditAmount: dec("25")},
	})
	if err != nil {
		t.Fatalf("AddScheduleLines failed: %v", err)
	}
	err = env.store.AddTrialBalanceLines(ctx, []models.TrialBalanceLine{
		{ID: "t1", EntityID: "E1", FiscalYear: "2024", FiscalPeriod: "2024_12", Account: "1400", ClosingBalance: dec("1150")},
		{ID: "t2", EntityID: "E1", FiscalYear: "2024", FiscalPeriod: "2024_12", Account: "1600", ClosingBalance: dec("0")},
	})
	if err != nil {
		t.Fatalf("AddTrialBalanceLines failed: %v", err)
	}
}

// assertCode fails the test unless err is a Connect error with code.
func assertCode(t *testing.T, err error, code connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v, got no error", code)
	}
	var cerr *connect.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected a connect error, got %T: %v", err, err)
	}
	if cerr.Code() != code {
		t.Errorf("code = %v, want %v (%v)", cerr.Code(), code, err)
	}
}
