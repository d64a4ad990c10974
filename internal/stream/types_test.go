package stream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thruflo/slidesync/internal/identity"
	"github.com/thruflo/slidesync/internal/presentation"
)

func TestEnvelope_WireFormat(t *testing.T) {
	sender := identity.SessionID(17)
	env := NewEnvelope("chan-1", "s3cret", presentation.State{IndexH: 3}, &sender)

	data, err := env.Marshal()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "chan-1", raw["socketId"])
	assert.Equal(t, "s3cret", raw["secret"])
	assert.Equal(t, float64(17), raw["client_id"])

	state, ok := raw["state"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(3), state["indexh"])
}

func TestEnvelope_OmitsSenderWhenNil(t *testing.T) {
	env := NewEnvelope("chan-1", "s3cret", presentation.State{}, nil)

	data, err := env.Marshal()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "client_id")
}

func TestEnvelope_OmitsStrippedSecret(t *testing.T) {
	env := NewEnvelope("chan-1", "", presentation.State{}, nil)

	data, err := env.Marshal()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
}

func TestEnvelope_FromSender(t *testing.T) {
	a, b := identity.SessionID(1), identity.SessionID(2)

	assert.True(t, NewEnvelope("c", "", presentation.State{}, &a).FromSender(a))
	assert.False(t, NewEnvelope("c", "", presentation.State{}, &a).FromSender(b))
	assert.False(t, NewEnvelope("c", "", presentation.State{}, nil).FromSender(a))
}

func TestNewEnvelope_CopiesSender(t *testing.T) {
	sender := identity.SessionID(5)
	env := NewEnvelope("c", "", presentation.State{}, &sender)
	sender = 6

	assert.Equal(t, identity.SessionID(5), *env.SenderID)
}

func TestUnmarshalEnvelope(t *testing.T) {
	env, err := UnmarshalEnvelope([]byte(`{"socketId":"c1","state":{"indexh":5,"indexv":1},"client_id":999}`))
	require.NoError(t, err)
	assert.Equal(t, "c1", env.ChannelID)
	assert.Equal(t, 5, env.State.IndexH)
	assert.Equal(t, 1, env.State.IndexV)
	require.NotNil(t, env.SenderID)
	assert.Equal(t, identity.SessionID(999), *env.SenderID)

	env, err = UnmarshalEnvelope([]byte(`{"socketId":"c1","secret":null,"state":{}}`))
	require.NoError(t, err)
	assert.Nil(t, env.SenderID)
	assert.Empty(t, env.Secret)

	_, err = UnmarshalEnvelope([]byte(`not json`))
	assert.Error(t, err)
}
