// Package client provides a transport-agnostic interface to the ledger
// service with HTTP/JSON and gRPC implementations.
package client

import (
	"context"

	"github.com/alfredjeanlab/eventledger/internal/health"
	"github.com/alfredjeanlab/eventledger/internal/model"
	"github.com/alfredjeanlab/eventledger/internal/rpc"
)

// LedgerClient is the interface that the ledger CLI commands use to
// communicate with the server. It is implemented by HTTPClient (default)
// and GRPCClient.
type LedgerClient interface {
	// Protocol
	Claim(ctx context.Context, eventID, eventType string) (*rpc.ClaimResponse, error)
	ReportSuccess(ctx context.Context, eventID string) error
	ReportFailure(ctx context.Context, eventID, errMsg string) error

	// Reads
	GetEvent(ctx context.Context, eventID string) (*model.Record, error)
	ListEvents(ctx context.Context, req *rpc.ListEventsRequest) ([]*model.Record, error)
	GetStats(ctx context.Context) (*model.Stats, error)
	CheckAlerts(ctx context.Context) (*health.Report, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}
