package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/prepaidrecon/pkg/api"
)

// AdjustmentServiceName is the fully-qualified name of the AdjustmentService.
const AdjustmentServiceName = "prepaidrecon.v1.AdjustmentService"

const (
	AdjustmentServiceProposeAdjustmentProcedure = "/prepaidrecon.v1.AdjustmentService/ProposeAdjustment"
	AdjustmentServiceApproveAdjustmentProcedure = "/prepaidrecon.v1.AdjustmentService/ApproveAdjustment"
	AdjustmentServiceRejectAdjustmentProcedure  = "/prepaidrecon.v1.AdjustmentService/RejectAdjustment"
	AdjustmentServiceGetAdjustmentProcedure     = "/prepaidrecon.v1.AdjustmentService/GetAdjustment"
	AdjustmentServiceListAdjustmentsProcedure   = "/prepaidrecon.v1.AdjustmentService/ListAdjustments"
	AdjustmentServiceListApprovalsProcedure     = "/prepaidrecon.v1.AdjustmentService/ListApprovals"
)

// AdjustmentServiceClient is a client for the prepaidrecon.v1.AdjustmentService service.
type AdjustmentServiceClient interface {
	ProposeAdjustment(context.Context, *connect.Request[api.ProposeAdjustmentRequest]) (*connect.Response[api.ProposeAdjustmentResponse], error)
	ApproveAdjustment(context.Context, *connect.Request[api.ApproveAdjustmentRequest]) (*connect.Response[api.ApproveAdjustmentResponse], error)
	RejectAdjustment(context.Context, *connect.Request[api.RejectAdjustmentRequest]) (*connect.Response[api.RejectAdjustmentResponse], error)
	GetAdjustment(context.Context, *connect.Request[api.GetAdjustmentRequest]) (*connect.Response[api.GetAdjustmentResponse], error)
	ListAdjustments(context.Context, *connect.Request[api.ListAdjustmentsRequest]) (*connect.Response[api.ListAdjustmentsResponse], error)
	ListApprovals(context.Context, *connect.Request[api.ListApprovalsRequest]) (*connect.Response[api.ListApprovalsResponse], error)
}

// NewAdjustmentServiceClient constructs a client for the prepaidrecon.v1.AdjustmentService service.
func NewAdjustmentServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) AdjustmentServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &adjustmentServiceClient{
		proposeAdjustment: connect.NewClient[api.ProposeAdjustmentRequest, api.ProposeAdjustmentResponse](
			httpClient, baseURL+AdjustmentServiceProposeAdjustmentProcedure, opts...),
		approveAdjustment: connect.NewClient[api.ApproveAdjustmentRequest, api.ApproveAdjustmentResponse](
			httpClient, baseURL+AdjustmentServiceApproveAdjustmentProcedure, opts...),
		rejectAdjustment: connect.NewClient[api.RejectAdjustmentRequest, api.RejectAdjustmentResponse](
			httpClient, baseURL+AdjustmentServiceRejectAdjustmentProcedure, opts...),
		getAdjustment: connect.NewClient[api.GetAdjustmentRequest, api.GetAdjustmentResponse](
			httpClient, baseURL+AdjustmentServiceGetAdjustmentProcedure, opts...),
		listAdjustments: connect.NewClient[api.ListAdjustmentsRequest, api.ListAdjustmentsResponse](
			httpClient, baseURL+AdjustmentServiceListAdjustmentsProcedure, opts...),
		listApprovals: connect.NewClient[api.ListApprovalsRequest, api.ListApprovalsResponse](
			httpClient, baseURL+AdjustmentServiceListApprovalsProcedure, opts...),
	}
}

type adjustmentServiceClient struct {
	proposeAdjustment *connect.Client[api.ProposeAdjustmentRequest, api.ProposeAdjustmentResponse]
	approveAdjustment *connect.Client[api.ApproveAdjustmentRequest, api.ApproveAdjustmentResponse]
	rejectAdjustment  *connect.Client[api.RejectAdjustmentRequest, api.RejectAdjustmentResponse]
	getAdjustment     *connect.Client[api.GetAdjustmentRequest, api.GetAdjustmentResponse]
	listAdjustments   *connect.Client[api.ListAdjustmentsRequest, api.ListAdjustmentsResponse]
	listApprovals     *connect.Client[api.ListApprovalsRequest, api.ListApprovalsResponse]
}

func (c *adjustmentServiceClient) ProposeAdjustment(ctx context.Context, req *connect.Request[api.ProposeAdjustmentRequest]) (*connect.Response[api.ProposeAdjustmentResponse], error) {
	return c.proposeAdjustment.CallUnary(ctx, req)
}

func (c *adjustmentServiceClient) ApproveAdjustment(ctx context.Context, req *connect.Request[api.ApproveAdjustmentRequest]) (*connect.Response[api.ApproveAdjustmentResponse], error) {
	return c.approveAdjustment.CallUnary(ctx, req)
}

func (c *adjustmentServiceClient) RejectAdjustment(ctx context.Context, req *connect.Request[api.RejectAdjustmentRequest]) (*connect.Response[api.RejectAdjustmentResponse], error) {
	return c.rejectAdjustment.CallUnary(ctx, req)
}

func (c *adjustmentServiceClient) GetAdjustment(ctx context.Context, req *connect.Request[api.GetAdjustmentRequest]) (*connect.Response[api.GetAdjustmentResponse], error) {
	return c.getAdjustment.CallUnary(ctx, req)
}

func (c *adjustmentServiceClient) ListAdjustments(ctx context.Context, req *connect.Request[api.ListAdjustmentsRequest]) (*connect.Response[api.ListAdjustmentsResponse], error) {
	return c.listAdjustments.CallUnary(ctx, req)
}

func (c *adjustmentServiceClient) ListApprovals(ctx context.Context, req *connect.Request[api.ListApprovalsRequest]) (*connect.Response[api.ListApprovalsResponse], error) {
	return c.listApprovals.CallUnary(ctx, req)
}

// AdjustmentServiceHandler is implemented by the server.
type AdjustmentServiceHandler interface {
	ProposeAdjustment(context.Context, *connect.Request[api.ProposeAdjustmentRequest]) (*connect.Response[api.ProposeAdjustmentResponse], error)
	ApproveAdjustment(context.Context, *connect.Request[api.ApproveAdjustmentRequest]) (*connect.Response[api.ApproveAdjustmentResponse], error)
	RejectAdjustment(context.Context, *connect.Request[api.RejectAdjustmentRequest]) (*connect.Response[api.RejectAdjustmentResponse], error)
	GetAdjustment(context.Context, *connect.Request[api.GetAdjustmentRequest]) (*connect.Response[api.GetAdjustmentResponse], error)
	ListAdjustments(context.Context, *connect.Request[api.ListAdjustmentsRequest]) (*connect.Response[api.ListAdjustmentsResponse], error)
	ListApprovals(context.Context, *connect.Request[api.ListApprovalsRequest]) (*connect.Response[api.ListApprovalsResponse], error)
}

// NewAdjustmentServiceHandler returns the mount path and HTTP handler for svc.
func NewAdjustmentServiceHandler(svc AdjustmentServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	proposeAdjustmentHandler := connect.NewUnaryHandler(AdjustmentServiceProposeAdjustmentProcedure, svc.ProposeAdjustment, opts...)
	approveAdjustmentHandler := connect.NewUnaryHandler(AdjustmentServiceApproveAdjustmentProcedure, svc.ApproveAdjustment, opts...)
	rejectAdjustmentHandler := connect.NewUnaryHandler(AdjustmentServiceRejectAdjustmentProcedure, svc.RejectAdjustment, opts...)
	getAdjustmentHandler := connect.NewUnaryHandler(AdjustmentServiceGetAdjustmentProcedure, svc.GetAdjustment, opts...)
	listAdjustmentsHandler := connect.NewUnaryHandler(AdjustmentServiceListAdjustmentsProcedure, svc.ListAdjustments, opts...)
	listApprovalsHandler := connect.NewUnaryHandler(AdjustmentServiceListApprovalsProcedure, svc.ListApprovals, opts...)
	return "/" + AdjustmentServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case AdjustmentServiceProposeAdjustmentProcedure:
			proposeAdjustmentHandler.ServeHTTP(w, r)
		case AdjustmentServiceApproveAdjustmentProcedure:
			approveAdjustmentHandler.ServeHTTP(w, r)
		case AdjustmentServiceRejectAdjustmentProcedure:
			rejectAdjustmentHandler.ServeHTTP(w, r)
		case AdjustmentServiceGetAdjustmentProcedure:
			getAdjustmentHandler.ServeHTTP(w, r)
		case AdjustmentServiceListAdjustmentsProcedure:
			listAdjustmentsHandler.ServeHTTP(w, r)
		case AdjustmentServiceListApprovalsProcedure:
			listApprovalsHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
