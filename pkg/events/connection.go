package events

import "time"

const (
	ConnectionRequestSent      = "CONNECTION_REQUEST_SENT"
	ConnectionRequestAccepted  = "CONNECTION_REQUEST_ACCEPTED"
	ConnectionRequestRejected  = "CONNECTION_REQUEST_REJECTED"
	ConnectionRequestCancelled = "CONNECTION_REQUEST_CANCELLED"
	ConnectionRemoved          = "CONNECTION_REMOVED"
)

// Payload fields shared by the connection events.
const (
	FieldActorID       = "actor_id"
	FieldCounterpartID = "counterpart_id"
	FieldSubjectID     = "subject_id"
)

// NewConnectionEvent describes a change made by actorID that also affects counterpartID.
// subjectID is the request or connection id the change applied to.
func NewConnectionEvent(eventType, actorID, counterpartID, subjectID string) BaseEvent {
	return BaseEvent{
		Type: eventType,
		Data: map[string]interface{}{
			FieldActorID:       actorID,
			FieldCounterpartID: counterpartID,
			FieldSubjectID:     subjectID,
		},
		OccurredAt: time.Now(),
	}
}
