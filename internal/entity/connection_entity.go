package entity

import "time"

type ConnectionKind string

const (
	ConnectionKindFollow  ConnectionKind = "follow"
	ConnectionKindConnect ConnectionKind = "connect"
)

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusAccepted RequestStatus = "accepted"
	RequestStatusRejected RequestStatus = "rejected"
	RequestStatusBlocked  RequestStatus = "blocked"
)

// ConnectionEdge is an accepted relationship, unique per (owner, counterpart).
type ConnectionEdge struct {
	ID          string         `json:"_id"`
	Counterpart UserSummary    `json:"user"`
	Kind        ConnectionKind `json:"type"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// ConnectionRequest is a request between two users. At most one pending
// request exists per ordered (requester, recipient) pair.
type ConnectionRequest struct {
	ID        string         `json:"_id"`
	Requester UserSummary    `json:"requester"`
	Recipient UserSummary    `json:"recipient"`
	Status    RequestStatus  `json:"status"`
	Kind      ConnectionKind `json:"type"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (r ConnectionRequest) IsPending() bool {
	return r.Status == RequestStatusPending || r.Status == ""
}
