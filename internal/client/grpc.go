package client

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/eventledger/internal/health"
	"github.com/alfredjeanlab/eventledger/internal/model"
	"github.com/alfredjeanlab/eventledger/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
)

// GRPCClient implements LedgerClient using the gRPC transport and the JSON codec.
type GRPCClient struct {
	conn  *grpc.ClientConn
	token string
}

// NewGRPCClient connects to the given gRPC address and returns a client.
// Extra dial options are applied after the insecure transport credentials.
func NewGRPCClient(addr, token string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{conn: conn, token: token}, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) invoke(ctx context.Context, method string, req, resp any) error {
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	return c.conn.Invoke(ctx, method, req, resp, grpc.CallContentSubtype(rpc.CodecName))
}

func (c *GRPCClient) Claim(ctx context.Context, eventID, eventType string) (*rpc.ClaimResponse, error) {
	var resp rpc.ClaimResponse
	if err := c.invoke(ctx, rpc.MethodClaim, &rpc.ClaimRequest{EventID: eventID, EventType: eventType}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *GRPCClient) ReportSuccess(ctx context.Context, eventID string) error {
	return c.invoke(ctx, rpc.MethodReportSuccess, &rpc.ReportSuccessRequest{EventID: eventID}, &rpc.Empty{})
}

func (c *GRPCClient) ReportFailure(ctx context.Context, eventID, errMsg string) error {
	return c.invoke(ctx, rpc.MethodReportFailure, &rpc.ReportFailureRequest{EventID: eventID, Error: errMsg}, &rpc.Empty{})
}

func (c *GRPCClient) GetEvent(ctx context.Context, eventID string) (*model.Record, error) {
	var rec model.Record
	if err := c.invoke(ctx, rpc.MethodGetEvent, &rpc.GetEventRequest{EventID: eventID}, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *GRPCClient) ListEvents(ctx context.Context, req *rpc.ListEventsRequest) ([]*model.Record, error) {
	var resp rpc.ListEventsResponse
	if err := c.invoke(ctx, rpc.MethodListEvents, req, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *GRPCClient) GetStats(ctx context.Context) (*model.Stats, error) {
	var stats model.Stats
	if err := c.invoke(ctx, rpc.MethodGetStats, &rpc.Empty{}, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *GRPCClient) CheckAlerts(ctx context.Context) (*health.Report, error) {
	var report health.Report
	if err := c.invoke(ctx, rpc.MethodCheckAlerts, &rpc.Empty{}, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Health queries the standard grpc.health.v1 service for the ledger service.
func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: rpc.ServiceName})
	if err != nil {
		return "", err
	}
	return resp.GetStatus().String(), nil
}
