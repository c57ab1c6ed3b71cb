// Package server exposes a Ledger over HTTP/JSON and gRPC.
package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/alfredjeanlab/eventledger/internal/health"
	"github.com/alfredjeanlab/eventledger/internal/ledger"
	"github.com/alfredjeanlab/eventledger/internal/model"
	"github.com/alfredjeanlab/eventledger/internal/rpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// LedgerServer implements LedgerService and serves the HTTP routes.
type LedgerServer struct {
	ledger  *ledger.Ledger
	monitor *health.Monitor
	logger  *slog.Logger
}

// NewLedgerServer returns a LedgerServer. monitor backs the alert check
// endpoints; logger defaults to slog.Default() when nil.
func NewLedgerServer(l *ledger.Ledger, monitor *health.Monitor, logger *slog.Logger) *LedgerServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerServer{ledger: l, monitor: monitor, logger: logger}
}

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

// errUnavailable is returned when a claim was denied because the store was down.
var errUnavailable = errors.New("ledger unavailable")

func (s *LedgerServer) claim(ctx context.Context, req *rpc.ClaimRequest) (*rpc.ClaimResponse, error) {
	d, err := s.ledger.Claim(ctx, req.EventID, req.EventType)
	if errors.Is(err, ledger.ErrInvalidEventID) {
		return nil, inputError("event_id is required")
	}
	if err != nil {
		return nil, err
	}
	resp := &rpc.ClaimResponse{
		Granted:   d.Granted,
		Duplicate: d.Duplicate(),
		Reason:    string(d.Reason),
		Attempts:  d.Attempts,
	}
	if d.Reason == ledger.ReasonStoreUnavailable {
		return resp, errUnavailable
	}
	return resp, nil
}

func (s *LedgerServer) listFilter(req *rpc.ListEventsRequest) (model.RecordFilter, error) {
	filter := model.RecordFilter{
		EventType: strings.TrimSpace(req.EventType),
		Newest:    req.Newest,
		Limit:     req.Limit,
		Offset:    req.Offset,
	}
	for _, v := range req.Status {
		st := model.Status(strings.TrimSpace(v))
		if st == "" {
			continue
		}
		if !st.IsValid() {
			return filter, inputError("invalid status " + string(st))
		}
		filter.Status = append(filter.Status, st)
	}
	if filter.Offset < 0 {
		return filter, inputError("offset must not be negative")
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultListLimit
	case filter.Limit > maxListLimit:
		filter.Limit = maxListLimit
	}
	return filter, nil
}

// --- gRPC ---

// Claim implements LedgerService.
func (s *LedgerServer) Claim(ctx context.Context, req *rpc.ClaimRequest) (*rpc.ClaimResponse, error) {
	resp, err := s.claim(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return resp, nil
}

// ReportSuccess implements LedgerService.
func (s *LedgerServer) ReportSuccess(ctx context.Context, req *rpc.ReportSuccessRequest) (*rpc.Empty, error) {
	if strings.TrimSpace(req.EventID) == "" {
		return nil, status.Error(codes.InvalidArgument, "event_id is required")
	}
	s.ledger.ReportSuccess(ctx, req.EventID)
	return &rpc.Empty{}, nil
}

// ReportFailure implements LedgerService.
func (s *LedgerServer) ReportFailure(ctx context.Context, req *rpc.ReportFailureRequest) (*rpc.Empty, error) {
	if strings.TrimSpace(req.EventID) == "" {
		return nil, status.Error(codes.InvalidArgument, "event_id is required")
	}
	s.ledger.ReportFailure(ctx, req.EventID, req.Error)
	return &rpc.Empty{}, nil
}

// GetEvent implements LedgerService.
func (s *LedgerServer) GetEvent(ctx context.Context, req *rpc.GetEventRequest) (*model.Record, error) {
	if strings.TrimSpace(req.EventID) == "" {
		return nil, status.Error(codes.InvalidArgument, "event_id is required")
	}
	rec, err := s.ledger.Get(ctx, req.EventID)
	if err != nil {
		return nil, toStatus(err)
	}
	return rec, nil
}

// ListEvents implements LedgerService.
func (s *LedgerServer) ListEvents(ctx context.Context, req *rpc.ListEventsRequest) (*rpc.ListEventsResponse, error) {
	filter, err := s.listFilter(req)
	if err != nil {
		return nil, toStatus(err)
	}
	recs, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.ListEventsResponse{Events: recs}, nil
}

// GetStats implements LedgerService.
func (s *LedgerServer) GetStats(ctx context.Context, _ *rpc.Empty) (*model.Stats, error) {
	stats := s.ledger.GetStats(ctx)
	return &stats, nil
}

// CheckAlerts implements LedgerService.
func (s *LedgerServer) CheckAlerts(ctx context.Context, _ *rpc.Empty) (*health.Report, error) {
	if s.monitor == nil {
		return nil, status.Error(codes.Unimplemented, "health monitor not configured")
	}
	report, err := s.monitor.Check(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "check health: %v", err)
	}
	return &report, nil
}

// toStatus maps ledger and input errors onto gRPC status codes.
func toStatus(err error) error {
	var ie inputError
	switch {
	case errors.As(err, &ie):
		return status.Error(codes.InvalidArgument, ie.Error())
	case errors.Is(err, model.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, errUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
