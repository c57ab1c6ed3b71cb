package server

import (
	"context"

	"github.com/alfredjeanlab/eventledger/internal/health"
	"github.com/alfredjeanlab/eventledger/internal/model"
	"github.com/alfredjeanlab/eventledger/internal/rpc"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// LedgerService is the server API of eventledger.v1.Ledger.
type LedgerService interface {
	Claim(context.Context, *rpc.ClaimRequest) (*rpc.ClaimResponse, error)
	ReportSuccess(context.Context, *rpc.ReportSuccessRequest) (*rpc.Empty, error)
	ReportFailure(context.Context, *rpc.ReportFailureRequest) (*rpc.Empty, error)
	GetEvent(context.Context, *rpc.GetEventRequest) (*model.Record, error)
	ListEvents(context.Context, *rpc.ListEventsRequest) (*rpc.ListEventsResponse, error)
	GetStats(context.Context, *rpc.Empty) (*model.Stats, error)
	CheckAlerts(context.Context, *rpc.Empty) (*health.Report, error)
}

var ledgerServiceDesc = grpc.ServiceDesc{
	ServiceName: rpc.ServiceName,
	HandlerType: (*LedgerService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Claim", Handler: unary(rpc.MethodClaim, LedgerService.Claim)},
		{MethodName: "ReportSuccess", Handler: unary(rpc.MethodReportSuccess, LedgerService.ReportSuccess)},
		{MethodName: "ReportFailure", Handler: unary(rpc.MethodReportFailure, LedgerService.ReportFailure)},
		{MethodName: "GetEvent", Handler: unary(rpc.MethodGetEvent, LedgerService.GetEvent)},
		{MethodName: "ListEvents", Handler: unary(rpc.MethodListEvents, LedgerService.ListEvents)},
		{MethodName: "GetStats", Handler: unary(rpc.MethodGetStats, LedgerService.GetStats)},
		{MethodName: "CheckAlerts", Handler: unary(rpc.MethodCheckAlerts, LedgerService.CheckAlerts)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "eventledger/v1/ledger",
}

// unary adapts a LedgerService method to a grpc.MethodHandler.
func unary[Req, Resp any](fullMethod string, call func(LedgerService, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerService), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerService), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RegisterLedgerService registers svc on s.
func RegisterLedgerService(s grpc.ServiceRegistrar, svc LedgerService) {
	s.RegisterService(&ledgerServiceDesc, svc)
}

// NewGRPCServer creates a gRPC server with standard interceptors, registers
// the Ledger service, the grpc.health.v1 service, and reflection. The
// returned health server reports SERVING until Shutdown is called on it.
func NewGRPCServer(ledgerServer *LedgerServer, authToken string) (*grpc.Server, *grpchealth.Server) {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor,
			LoggingInterceptor,
			AuthInterceptor(authToken),
		),
	)

	RegisterLedgerService(srv, ledgerServer)

	hs := grpchealth.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	reflection.Register(srv)

	return srv, hs
}
