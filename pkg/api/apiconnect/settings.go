package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/prepaidrecon/pkg/api"
)

// SettingsServiceName is the fully-qualified name of the SettingsService.
const SettingsServiceName = "prepaidrecon.v1.SettingsService"

const (
	SettingsServiceListToleranceRulesProcedure = "/prepaidrecon.v1.SettingsService/ListToleranceRules"
	SettingsServicePutToleranceRuleProcedure   = "/prepaidrecon.v1.SettingsService/PutToleranceRule"
	SettingsServicePutPeriodProcedure          = "/prepaidrecon.v1.SettingsService/PutPeriod"
	SettingsServiceListAuditEntriesProcedure   = "/prepaidrecon.v1.SettingsService/ListAuditEntries"
)

// SettingsServiceClient is a client for the prepaidrecon.v1.SettingsService service.
type SettingsServiceClient interface {
	ListToleranceRules(context.Context, *connect.Request[api.ListToleranceRulesRequest]) (*connect.Response[api.ListToleranceRulesResponse], error)
	PutToleranceRule(context.Context, *connect.Request[api.PutToleranceRuleRequest]) (*connect.Response[api.PutToleranceRuleResponse], error)
	PutPeriod(context.Context, *connect.Request[api.PutPeriodRequest]) (*connect.Response[api.PutPeriodResponse], error)
	ListAuditEntries(context.Context, *connect.Request[api.ListAuditEntriesRequest]) (*connect.Response[api.ListAuditEntriesResponse], error)
}

// NewSettingsServiceClient constructs a client for the prepaidrecon.v1.SettingsService service.
func NewSettingsServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) SettingsServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &settingsServiceClient{
		listToleranceRules: connect.NewClient[api.ListToleranceRulesRequest, api.ListToleranceRulesResponse](
			httpClient, baseURL+SettingsServiceListToleranceRulesProcedure, opts...),
		putToleranceRule: connect.NewClient[api.PutToleranceRuleRequest, api.PutToleranceRuleResponse](
			httpClient, baseURL+SettingsServicePutToleranceRuleProcedure, opts...),
		putPeriod: connect.NewClient[api.PutPeriodRequest, api.PutPeriodResponse](
			httpClient, baseURL+SettingsServicePutPeriodProcedure, opts...),
		listAuditEntries: connect.NewClient[api.ListAuditEntriesRequest, api.ListAuditEntriesResponse](
			httpClient, baseURL+SettingsServiceListAuditEntriesProcedure, opts...),
	}
}

type settingsServiceClient struct {
	listToleranceRules *connect.Client[api.ListToleranceRulesRequest, api.ListToleranceRulesResponse]
	putToleranceRule   *connect.Client[api.PutToleranceRuleRequest, api.PutToleranceRuleResponse]
	putPeriod          *connect.Client[api.PutPeriodRequest, api.PutPeriodResponse]
	listAuditEntries   *connect.Client[api.ListAuditEntriesRequest, api.ListAuditEntriesResponse]
}

func (c *settingsServiceClient) ListToleranceRules(ctx context.Context, req *connect.Request[api.ListToleranceRulesRequest]) (*connect.Response[api.ListToleranceRulesResponse], error) {
	return c.listToleranceRules.CallUnary(ctx, req)
}

func (c *settingsServiceClient) PutToleranceRule(ctx context.Context, req *connect.Request[api.PutToleranceRuleRequest]) (*connect.Response[api.PutToleranceRuleResponse], error) {
	return c.putToleranceRule.CallUnary(ctx, req)
}

func (c *settingsServiceClient) PutPeriod(ctx context.Context, req *connect.Request[api.PutPeriodRequest]) (*connect.Response[api.PutPeriodResponse], error) {
	return c.putPeriod.CallUnary(ctx, req)
}

func (c *settingsServiceClient) ListAuditEntries(ctx context.Context, req *connect.Request[api.ListAuditEntriesRequest]) (*connect.Response[api.ListAuditEntriesResponse], error) {
	return c.listAuditEntries.CallUnary(ctx, req)
}

// SettingsServiceHandler is implemented by the server.
type SettingsServiceHandler interface {
	ListToleranceRules(context.Context, *connect.Request[api.ListToleranceRulesRequest]) (*connect.Response[api.ListToleranceRulesResponse], error)
	PutToleranceRule(context.Context, *connect.Request[api.PutToleranceRuleRequest]) (*connect.Response[api.PutToleranceRuleResponse], error)
	PutPeriod(context.Context, *connect.Request[api.PutPeriodRequest]) (*connect.Response[api.PutPeriodResponse], error)
	ListAuditEntries(context.Context, *connect.Request[api.ListAuditEntriesRequest]) (*connect.Response[api.ListAuditEntriesResponse], error)
}

// NewSettingsServiceHandler returns the mount path and HTTP handler for svc.
func NewSettingsServiceHandler(svc SettingsServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	listToleranceRulesHandler := connect.NewUnaryHandler(SettingsServiceListToleranceRulesProcedure, svc.ListToleranceRules, opts...)
	putToleranceRuleHandler := connect.NewUnaryHandler(SettingsServicePutToleranceRuleProcedure, svc.PutToleranceRule, opts...)
	putPeriodHandler := connect.NewUnaryHandler(SettingsServicePutPeriodProcedure, svc.PutPeriod, opts...)
	listAuditEntriesHandler := connect.NewUnaryHandler(SettingsServiceListAuditEntriesProcedure, svc.ListAuditEntries, opts...)
	return "/" + SettingsServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SettingsServiceListToleranceRulesProcedure:
			listToleranceRulesHandler.ServeHTTP(w, r)
		case SettingsServicePutToleranceRuleProcedure:
			putToleranceRuleHandler.ServeHTTP(w, r)
		case SettingsServicePutPeriodProcedure:
			putPeriodHandler.ServeHTTP(w, r)
		case SettingsServiceListAuditEntriesProcedure:
			listAuditEntriesHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
