package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConnectionEvent(t *testing.T) {
	evt := NewConnectionEvent(ConnectionRequestAccepted, "u1", "u2", "r9")

	assert.Equal(t, ConnectionRequestAccepted, evt.EventType())
	assert.Equal(t, "u1", String(evt, FieldActorID))
	assert.Equal(t, "u2", String(evt, FieldCounterpartID))
	assert.Equal(t, "r9", String(evt, FieldSubjectID))
	assert.False(t, evt.Timestamp().IsZero())
}

func TestStringMissingOrWrongType(t *testing.T) {
	evt := BaseEvent{Type: "X", Data: map[string]interface{}{"n": 3}}

	assert.Empty(t, String(evt, "n"))
	assert.Empty(t, String(evt, "absent"))
}

func TestPublisherFunc(t *testing.T) {
	var got []string
	var p Publisher = PublisherFunc(func(_ context.Context, e Event) error {
		got = append(got, e.EventType())
		return nil
	})

	require.NoError(t, p.Publish(context.Background(), BaseEvent{Type: ConnectionRemoved}))
	assert.Equal(t, []string{ConnectionRemoved}, got)
}
