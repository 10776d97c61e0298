package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingConn struct {
	subject string
	data    []byte
	err     error
}

func (c *recordingConn) Publish(subject string, data []byte) error {
	c.subject, c.data = subject, data
	return c.err
}

func TestNATSPublisher_Publish(t *testing.T) {
	rc := &recordingConn{}
	p := &NATSPublisher{conn: rc}
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	err := p.Publish(context.Background(), Event{Kind: KindCompleted, TodoID: "t1", OwnerID: "u1", Actor: "boss@example.com", At: at})
	require.NoError(t, err)
	assert.Equal(t, "uptrack.todo.completed", rc.subject)

	var got Event
	require.NoError(t, json.Unmarshal(rc.data, &got))
	assert.Equal(t, "boss@example.com", got.Actor)
	assert.True(t, at.Equal(got.At))
}

func TestNATSPublisher_Errors(t *testing.T) {
	rc := &recordingConn{err: errors.New("nats: connection closed")}
	p := &NATSPublisher{conn: rc}
	assert.Error(t, p.Publish(context.Background(), Event{Kind: KindCreated}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, (&NATSPublisher{conn: &recordingConn{}}).Publish(ctx, Event{Kind: KindCreated}), context.Canceled)

	assert.NoError(t, (&NATSPublisher{conn: rc}).Close())
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Publish(context.Background(), Event{}))
}
