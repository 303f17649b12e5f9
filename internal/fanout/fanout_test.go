package fanout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_LatestWins(t *testing.T) {
	var h Hub[int]

	ch, unsubscribe := h.Subscribe(0)
	defer unsubscribe()

	assert.Equal(t, 0, <-ch)

	h.Publish(1)
	h.Publish(2)
	h.Publish(3)

	assert.Equal(t, 3, <-ch)

	select {
	case v := <-ch:
		t.Fatalf("unexpected value %d", v)
	default:
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	var h Hub[string]

	ch, unsubscribe := h.Subscribe("a")
	require.Equal(t, 1, h.Len())

	<-ch
	unsubscribe()
	unsubscribe()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, h.Len())

	// publishing without subscribers is fine
	h.Publish("b")
}

func TestHub_Close(t *testing.T) {
	var h Hub[int]

	ch, _ := h.Subscribe(1)
	h.Close()

	v, open := <-ch
	// the primed value was not read yet, closing keeps it readable
	assert.True(t, open)
	assert.Equal(t, 1, v)
	_, open = <-ch
	assert.False(t, open)

	late, _ := h.Subscribe(5)
	v, open = <-late
	assert.True(t, open)
	assert.Equal(t, 5, v)
	_, open = <-late
	assert.False(t, open)
}
