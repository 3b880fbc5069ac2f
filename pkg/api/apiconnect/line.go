package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/prepaidrecon/pkg/api"
)

// LineServiceName is the fully-qualified name of the LineService.
const LineServiceName = "prepaidrecon.v1.LineService"

const LineServiceImportLinesProcedure = "/prepaidrecon.v1.LineService/ImportLines"

// LineServiceClient is a client for the prepaidrecon.v1.LineService service.
type LineServiceClient interface {
	ImportLines(context.Context, *connect.Request[api.ImportLinesRequest]) (*connect.Response[api.ImportLinesResponse], error)
}

// NewLineServiceClient constructs a client for the prepaidrecon.v1.LineService service.
func NewLineServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) LineServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &lineServiceClient{
		importLines: connect.NewClient[api.ImportLinesRequest, api.ImportLinesResponse](
			httpClient, baseURL+LineServiceImportLinesProcedure, opts...),
	}
}

type lineServiceClient struct {
	importLines *connect.Client[api.ImportLinesRequest, api.ImportLinesResponse]
}

func (c *lineServiceClient) ImportLines(ctx context.Context, req *connect.Request[api.ImportLinesRequest]) (*connect.Response[api.ImportLinesResponse], error) {
	return c.importLines.CallUnary(ctx, req)
}

// LineServiceHandler is implemented by the server.
type LineServiceHandler interface {
	ImportLines(context.Context, *connect.Request[api.ImportLinesRequest]) (*connect.Response[api.ImportLinesResponse], error)
}

// NewLineServiceHandler returns the mount path and HTTP handler for svc.
func NewLineServiceHandler(svc LineServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	importLinesHandler := connect.NewUnaryHandler(LineServiceImportLinesProcedure, svc.ImportLines, opts...)
	return "/" + LineServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case LineServiceImportLinesProcedure:
			importLinesHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
