package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_New(t *testing.T) {
	b := New(nil)

	assert.NotNil(t, b)
}

func Test_Bus_PublishSubscribe(t *testing.T) {
	b := New(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := b.Subscribe(ctx)

	b.Publish(Message{
		Type: EventOwnerChanged,
		Data: OwnerChanged{Service: "com.victronenergy.battery.ttyO1", NewOwner: ":1.5"},
	})

	select {
	case msg := <-ch:
		assert.Equal(t, EventOwnerChanged, msg.Type)
		data, ok := msg.Data.(OwnerChanged)
		assert.True(t, ok)
		assert.Equal(t, "com.victronenergy.battery.ttyO1", data.Service)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Expected message")
	}
}

func Test_Bus_MultipleSubscribers(t *testing.T) {
	b := New(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch1 := b.Subscribe(ctx)
	ch2 := b.Subscribe(ctx)

	b.Publish(Message{Type: EventCleanupTick})

	for _, ch := range []<-chan Message{ch1, ch2} {
		select {
		case msg := <-ch:
			assert.Equal(t, EventCleanupTick, msg.Type)
		case <-time.After(100 * time.Millisecond):
			t.Fatal("Expected message on subscriber")
		}
	}
}

func Test_Bus_Unsubscribe_OnContextCancel(t *testing.T) {
	b := New(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := b.Subscribe(ctx)

	cancel()
	time.Sleep(10 * time.Millisecond)

	_, ok := <-ch
	assert.False(t, ok, "Channel should be closed after context cancel")
}

func Test_Bus_Close(t *testing.T) {
	b := New(nil)

	ctx := context.Background()
	ch := b.Subscribe(ctx)

	b.Close()

	_, ok := <-ch
	assert.False(t, ok, "Channel should be closed")

	b.Publish(Message{Type: EventCleanupTick})
}

func Test_Bus_CriticalMessage_BlockingSubscriber(t *testing.T) {
	b := New(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := b.Subscribe(ctx)

	b.Publish(Message{Type: EventCleanupTick, Critical: false})
	b.Publish(Message{Type: EventOwnerChanged, Critical: true})

	received := 0
	timeout := time.After(100 * time.Millisecond)

loop:
	for {
		select {
		case <-ch:
			received++
			if received >= 2 {
				break loop
			}
		case <-timeout:
			break loop
		}
	}

	assert.GreaterOrEqual(t, received, 1)
}

func Test_NoOp(t *testing.T) {
	b := NoOp()

	assert.NotNil(t, b)

	ctx, cancel := context.WithCancel(context.Background())
	ch := b.Subscribe(ctx)

	b.Publish(Message{Type: EventCleanupTick})

	select {
	case <-ch:
		t.Fatal("NoOp should not deliver messages")
	case <-time.After(10 * time.Millisecond):
	}

	cancel()
	time.Sleep(10 * time.Millisecond)

	_, ok := <-ch
	assert.False(t, ok)

	b.Close()
}

func Test_Bus_Close_AlreadyClosed(t *testing.T) {
	b := New(nil)

	b.Close()
	b.Close() // Should not panic
}

func Test_NoOp_Methods(t *testing.T) {
	b := NoOp()

	// These should not panic
	b.Publish(Message{Type: EventCleanupTick})
	b.Close()
}

func Test_FormatData(t *testing.T) {
	tests := []struct {
		name     string
		data     interface{}
		contains string
	}{
		{
			name:     "OwnerChanged",
			data:     OwnerChanged{Service: "com.victronenergy.battery.ttyO1", NewOwner: ":1.5"},
			contains: "battery",
		},
		{
			name:     "PropertiesChanged",
			data:     PropertiesChanged{OwnerID: ":1.5", Path: "/Dc/0/Voltage"},
			contains: "Voltage",
		},
		{
			name:     "ItemsChanged",
			data:     ItemsChanged{OwnerID: ":1.5", Items: map[string]interface{}{"/Dc/0/Voltage": 12.6}},
			contains: "items: 1",
		},
		{
			name:     "BrokerMessage",
			data:     BrokerMessage{Topic: "R/d0ff500097c0/system/0/Serial", Payload: []byte{}},
			contains: "Serial",
		},
		{
			name:     "Signal",
			data:     Signal{Name: "SIGTERM"},
			contains: "SIGTERM",
		},
		{
			name:     "Unknown",
			data:     struct{ Foo string }{Foo: "bar"},
			contains: "bar",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatData(tt.data)
			assert.Contains(t, result, tt.contains)
		})
	}
}
