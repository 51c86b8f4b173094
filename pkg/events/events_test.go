package events

import (
	"context"
	"encoding/json"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope_CorrelationDefaultsToID(t *testing.T) {
	env, err := NewEnvelope("leadbot", TypeLeadCreated, "", LeadPayload{Phone: "+972500000001"})
	require.NoError(t, err)
	assert.NotEmpty(t, env.Meta.ID)
	assert.Equal(t, env.Meta.ID, env.Meta.CorrelationID)
	assert.False(t, env.Meta.OccurredAt.IsZero())
}

func TestNewEnvelope_RequiresType(t *testing.T) {
	_, err := NewEnvelope("leadbot", "", "", nil)
	assert.Error(t, err)
}

func TestEnvelope_Encode(t *testing.T) {
	env, err := NewEnvelope("leadbot", TypeLeadMeetingScheduled, "turn-1", LeadPayload{
		Phone:   "+972500000001",
		Meeting: "Sunday 10:00",
	})
	require.NoError(t, err)

	body, err := env.Encode()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	meta := decoded["meta"].(map[string]any)
	assert.Equal(t, "lead.meeting_scheduled", meta["type"])
	assert.Equal(t, "turn-1", meta["correlation_id"])
	data := decoded["data"].(map[string]any)
	assert.Equal(t, "Sunday 10:00", data["meeting"])
}

func TestPublishing_CarriesHeaders(t *testing.T) {
	env, err := NewEnvelope("leadbot", TypeLeadAnalyzed, "turn-9", nil)
	require.NoError(t, err)

	msg := publishing(env, []byte("{}"))
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, env.Meta.ID, msg.MessageId)
	assert.Equal(t, "turn-9", msg.CorrelationId)
	assert.Equal(t, TypeLeadAnalyzed, msg.Type)
	assert.Equal(t, "leadbot", msg.AppId)
}

func TestDialAMQP_RequiresURL(t *testing.T) {
	_, err := DialAMQP("", "leadbot.events", "leadbot")
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), TypeLeadCreated, "", nil))
	assert.NoError(t, p.Close())
}
