package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_BroadcastSkipsSender(t *testing.T) {
	t.Parallel()

	h := NewHub(4)
	a := h.subscribe("c1")
	b := h.subscribe("c1")
	other := h.subscribe("c2")
	assert.NotEqual(t, a.id, b.id)
	assert.Equal(t, 2, h.Subscribers("c1"))
	assert.Equal(t, 2, h.Channels())

	n := h.Broadcast("c1", []byte(`{"x":1}`), a.id)
	assert.Equal(t, 1, n)
	assert.Len(t, a.frames, 0)
	require.Len(t, b.frames, 1)
	assert.Equal(t, `{"x":1}`, string(<-b.frames))
	assert.Len(t, other.frames, 0)
}

func TestHub_FullQueueDropsFrame(t *testing.T) {
	t.Parallel()

	h := NewHub(1)
	sub := h.subscribe("c1")

	assert.Equal(t, 1, h.Broadcast("c1", []byte("1"), ""))
	assert.Equal(t, 0, h.Broadcast("c1", []byte("2"), ""), "full queue")
	assert.Equal(t, "1", string(<-sub.frames))
}

func TestHub_Unsubscribe(t *testing.T) {
	t.Parallel()

	h := NewHub(0)
	sub := h.subscribe("c1")
	h.unsubscribe(sub)
	h.unsubscribe(sub)

	assert.Equal(t, 0, h.Subscribers("c1"))
	assert.Equal(t, 0, h.Channels())
	assert.Equal(t, 0, h.Broadcast("c1", []byte("x"), ""))
}
