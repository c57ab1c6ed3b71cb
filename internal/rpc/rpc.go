// Package rpc defines the gRPC surface of the ledger: the service and method
// names, request and response messages, and a JSON codec those messages are
// carried with.
package rpc

import (
	"github.com/alfredjeanlab/eventledger/internal/model"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "eventledger.v1.Ledger"

// Full method names, as seen by interceptors.
const (
	MethodClaim         = "/" + ServiceName + "/Claim"
	MethodReportSuccess = "/" + ServiceName + "/ReportSuccess"
	MethodReportFailure = "/" + ServiceName + "/ReportFailure"
	MethodGetEvent      = "/" + ServiceName + "/GetEvent"
	MethodListEvents    = "/" + ServiceName + "/ListEvents"
	MethodGetStats      = "/" + ServiceName + "/GetStats"
	MethodCheckAlerts   = "/" + ServiceName + "/CheckAlerts"
)

type ClaimRequest struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
}

type ClaimResponse struct {
	Granted   bool   `json:"granted"`
	Duplicate bool   `json:"duplicate"`
	Reason    string `json:"reason"`
	Attempts  int    `json:"attempts,omitempty"`
}

type ReportSuccessRequest struct {
	EventID string `json:"event_id"`
}

type ReportFailureRequest struct {
	EventID string `json:"event_id"`
	Error   string `json:"error"`
}

type GetEventRequest struct {
	EventID string `json:"event_id"`
}

type ListEventsRequest struct {
	Status    []string `json:"status,omitempty"`
	EventType string   `json:"event_type,omitempty"`
	Newest    bool     `json:"newest,omitempty"`
	Limit     int      `json:"limit,omitempty"`
	Offset    int      `json:"offset,omitempty"`
}

type ListEventsResponse struct {
	Events []*model.Record `json:"events"`
}

// Empty is used for RPCs without a meaningful request or response.
type Empty struct{}
