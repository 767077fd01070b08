package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeAndPublish(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("topic")

	b.Publish("topic", "hello")

	select {
	case msg := <-ch:
		assert.Equal(t, "hello", msg)
	default:
		t.Fatal("expected a message on the subscriber channel")
	}
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := NewBroker()
	first := b.Subscribe("topic")
	second := b.Subscribe("topic")
	other := b.Subscribe("other")

	b.Publish("topic", 42)

	assert.Equal(t, 42, <-first)
	assert.Equal(t, 42, <-second)
	select {
	case <-other:
		t.Fatal("message leaked onto an unrelated topic")
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("topic")
	b.Unsubscribe("topic", ch)

	_, open := <-ch
	require.False(t, open)

	// Publishing after unsubscribe must not panic.
	b.Publish("topic", "ignored")
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("topic")

	// Overfill the buffer; extra messages are dropped, not queued.
	for i := 0; i < subscriberBuffer+10; i++ {
		b.Publish("topic", i)
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}
	assert.Equal(t, subscriberBuffer, received)
}
