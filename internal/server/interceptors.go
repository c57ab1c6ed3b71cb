package server

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/alfredjeanlab/eventledger/internal/idgen"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// requestIDKey is the metadata key carrying the request id, the gRPC
// counterpart of the X-Request-Id header.
const requestIDKey = "x-request-id"

// LoggingInterceptor logs the method name, request id, duration, and error
// (if any) for every unary RPC call. The request id is taken from incoming
// metadata or generated, and echoed back as a response header.
func LoggingInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	requestID := incomingRequestID(ctx)
	if requestID != "" {
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDKey, requestID))
		ctx = WithRequestID(ctx, requestID)
	}

	start := time.Now()
	resp, err := handler(ctx, req)
	duration := time.Since(start)

	if err != nil {
		slog.Error("rpc completed",
			"method", info.FullMethod,
			"request_id", requestID,
			"code", status.Code(err).String(),
			"duration", duration,
			"err", err,
		)
	} else {
		slog.Info("rpc completed",
			"method", info.FullMethod,
			"request_id", requestID,
			"duration", duration,
		)
	}

	return resp, err
}

func incomingRequestID(ctx context.Context) string {
	var provided string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(requestIDKey); len(vals) > 0 {
			provided = vals[0]
		}
	}
	id, err := idgen.FromCaller(provided)
	if err != nil {
		return ""
	}
	return id
}

// RecoveryInterceptor catches panics in downstream handlers, logs the stack
// trace, and returns a codes.Internal error instead of crashing the server.
func RecoveryInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic recovered in gRPC handler",
				"method", info.FullMethod,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = status.Errorf(codes.Internal, "internal server error")
		}
	}()
	return handler(ctx, req)
}
