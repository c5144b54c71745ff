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
	subjects []string
	payloads [][]byte
	err      error
}

func (c *recordingConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.subjects = append(c.subjects, subject)
	c.payloads = append(c.payloads, data)
	return nil
}

func TestNATSPublisher_Publish(t *testing.T) {
	conn := &recordingConn{}
	p := newPublisher(conn, "team.decisions")
	at := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)

	err := p.Publish(context.Background(), Event{
		Action: ActionUpdated, DecisionID: "d1", Title: "Use React", Tag: "frontend",
		Channel: "C1", Thread: "1700.1", At: at,
	})
	require.NoError(t, err)

	require.Equal(t, []string{"team.decisions.updated"}, conn.subjects)
	var got Event
	require.NoError(t, json.Unmarshal(conn.payloads[0], &got))
	assert.Equal(t, "d1", got.DecisionID)
	assert.Equal(t, ActionUpdated, got.Action)
	assert.True(t, at.Equal(got.At))
}

func TestNATSPublisher_DefaultsAndErrors(t *testing.T) {
	conn := &recordingConn{}
	p := newPublisher(conn, "")
	assert.Equal(t, "decisions.deleted", p.Subject(ActionDeleted))

	require.NoError(t, p.Publish(context.Background(), Event{Action: ActionCreated, DecisionID: "d2"}))
	var got Event
	require.NoError(t, json.Unmarshal(conn.payloads[0], &got))
	assert.False(t, got.At.IsZero(), "timestamp stamped")

	conn.err = errors.New("nats: connection closed")
	err := p.Publish(context.Background(), Event{Action: ActionCreated})
	assert.ErrorContains(t, err, "publish created event")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, Event{Action: ActionCreated}), context.Canceled)
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Publish(context.Background(), Event{}))
}
