package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/prepaidrecon/pkg/api"
)

// ReconciliationServiceName is the fully-qualified name of the ReconciliationService.
const ReconciliationServiceName = "prepaidrecon.v1.ReconciliationService"

const (
	ReconciliationServiceRunReconciliationsProcedure   = "/prepaidrecon.v1.ReconciliationService/RunReconciliations"
	ReconciliationServiceGetReconciliationProcedure    = "/prepaidrecon.v1.ReconciliationService/GetReconciliation"
	ReconciliationServiceListReconciliationsProcedure  = "/prepaidrecon.v1.ReconciliationService/ListReconciliations"
	ReconciliationServiceDeleteReconciliationProcedure = "/prepaidrecon.v1.ReconciliationService/DeleteReconciliation"
)

// ReconciliationServiceClient is a client for the prepaidrecon.v1.ReconciliationService service.
type ReconciliationServiceClient interface {
	RunReconciliations(context.Context, *connect.Request[api.RunReconciliationsRequest]) (*connect.Response[api.RunReconciliationsResponse], error)
	GetReconciliation(context.Context, *connect.Request[api.GetReconciliationRequest]) (*connect.Response[api.GetReconciliationResponse], error)
	ListReconciliations(context.Context, *connect.Request[api.ListReconciliationsRequest]) (*connect.Response[api.ListReconciliationsResponse], error)
	DeleteReconciliation(context.Context, *connect.Request[api.DeleteReconciliationRequest]) (*connect.Response[api.DeleteReconciliationResponse], error)
}

// NewReconciliationServiceClient constructs a client for the
// prepaidrecon.v1.ReconciliationService service. baseURL is the server root,
// e.g. http://localhost:8080.
func NewReconciliationServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) ReconciliationServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &reconciliationServiceClient{
		runReconciliations: connect.NewClient[api.RunReconciliationsRequest, api.RunReconciliationsResponse](
			httpClient, baseURL+ReconciliationServiceRunReconciliationsProcedure, opts...),
		getReconciliation: connect.NewClient[api.GetReconciliationRequest, api.GetReconciliationResponse](
			httpClient, baseURL+ReconciliationServiceGetReconciliationProcedure, opts...),
		listReconciliations: connect.NewClient[api.ListReconciliationsRequest, api.ListReconciliationsResponse](
			httpClient, baseURL+ReconciliationServiceListReconciliationsProcedure, opts...),
		deleteReconciliation: connect.NewClient[api.DeleteReconciliationRequest, api.DeleteReconciliationResponse](
			httpClient, baseURL+ReconciliationServiceDeleteReconciliationProcedure, opts...),
	}
}

type reconciliationServiceClient struct {
	runReconciliations   *connect.Client[api.RunReconciliationsRequest, api.RunReconciliationsResponse]
	getReconciliation    *connect.Client[api.GetReconciliationRequest, api.GetReconciliationResponse]
	listReconciliations  *connect.Client[api.ListReconciliationsRequest, api.ListReconciliationsResponse]
	deleteReconciliation *connect.Client[api.DeleteReconciliationRequest, api.DeleteReconciliationResponse]
}

func (c *reconciliationServiceClient) RunReconciliations(ctx context.Context, req *connect.Request[api.RunReconciliationsRequest]) (*connect.Response[api.RunReconciliationsResponse], error) {
	return c.runReconciliations.CallUnary(ctx, req)
}

func (c *reconciliationServiceClient) GetReconciliation(ctx context.Context, req *connect.Request[api.GetReconciliationRequest]) (*connect.Response[api.GetReconciliationResponse], error) {
	return c.getReconciliation.CallUnary(ctx, req)
}

func (c *reconciliationServiceClient) ListReconciliations(ctx context.Context, req *connect.Request[api.ListReconciliationsRequest]) (*connect.Response[api.ListReconciliationsResponse], error) {
	return c.listReconciliations.CallUnary(ctx, req)
}

func (c *reconciliationServiceClient) DeleteReconciliation(ctx context.Context, req *connect.Request[api.DeleteReconciliationRequest]) (*connect.Response[api.DeleteReconciliationResponse], error) {
	return c.deleteReconciliation.CallUnary(ctx, req)
}

// ReconciliationServiceHandler is implemented by the server.
type ReconciliationServiceHandler interface {
	RunReconciliations(context.Context, *connect.Request[api.RunReconciliationsRequest]) (*connect.Response[api.RunReconciliationsResponse], error)
	GetReconciliation(context.Context, *connect.Request[api.GetReconciliationRequest]) (*connect.Response[api.GetReconciliationResponse], error)
	ListReconciliations(context.Context, *connect.Request[api.ListReconciliationsRequest]) (*connect.Response[api.ListReconciliationsResponse], error)
	DeleteReconciliation(context.Context, *connect.Request[api.DeleteReconciliationRequest]) (*connect.Response[api.DeleteReconciliationResponse], error)
}

// NewReconciliationServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewReconciliationServiceHandler(svc ReconciliationServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	run := connect.NewUnaryHandler(ReconciliationServiceRunReconciliationsProcedure, svc.RunReconciliations, opts...)
	get := connect.NewUnaryHandler(ReconciliationServiceGetReconciliationProcedure, svc.GetReconciliation, opts...)
	list := connect.NewUnaryHandler(ReconciliationServiceListReconciliationsProcedure, svc.ListReconciliations, opts...)
	del := connect.NewUnaryHandler(ReconciliationServiceDeleteReconciliationProcedure, svc.DeleteReconciliation, opts...)
	return "/" + ReconciliationServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ReconciliationServiceRunReconciliationsProcedure:
			run.ServeHTTP(w, r)
		case ReconciliationServiceGetReconciliationProcedure:
			get.ServeHTTP(w, r)
		case ReconciliationServiceListReconciliationsProcedure:
			list.ServeHTTP(w, r)
		case ReconciliationServiceDeleteReconciliationProcedure:
			del.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
