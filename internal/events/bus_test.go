package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case e := <-sub.Events:
		return e
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestBusFiltersByType(t *testing.T) {
	bus := NewEventBus(4)
	imports := bus.Subscribe(EventFilter{Types: ImportEventTypes})
	all := bus.Subscribe(EventFilter{})

	bus.Publish(ModuleEvent(EventModuleInitialized, "system.catalog", "Catalog", nil))
	bus.Publish(NewEvent(EventImportStarted, "import", map[string]interface{}{"run_id": 1}))

	assert.Equal(t, EventModuleInitialized, receive(t, all).Type)
	assert.Equal(t, EventImportStarted, receive(t, all).Type)

	got := receive(t, imports)
	assert.Equal(t, EventImportStarted, got.Type)
	assert.Equal(t, 1, got.Data["run_id"])
	assert.NotEmpty(t, got.ID)
	assert.Len(t, imports.Events, 0)
}

func TestBusDropsForSlowSubscriber(t *testing.T) {
	bus := NewEventBus(1)
	sub := bus.Subscribe(EventFilter{})

	bus.Publish(NewEvent(EventImportProgress, "import", nil))
	bus.Publish(NewEvent(EventImportCompleted, "import", nil))

	assert.Equal(t, EventImportProgress, receive(t, sub).Type)
	assert.Len(t, sub.Events, 0)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewEventBus(1)
	sub := bus.Subscribe(EventFilter{})
	require.Equal(t, 1, bus.Subscribers())

	bus.Unsubscribe(sub)
	bus.Unsubscribe(sub)

	_, open := <-sub.Events
	assert.False(t, open)
	assert.Equal(t, 0, bus.Subscribers())
	assert.NotPanics(t, func() { bus.Publish(NewEvent(EventImportFailed, "import", nil)) })
}

func TestGlobalBus(t *testing.T) {
	t.Cleanup(func() { SetGlobalEventBus(nil) })

	SetGlobalEventBus(nil)
	assert.Nil(t, GetGlobalEventBus())
	assert.NotPanics(t, func() { PublishGlobal(NewEvent(EventImportStarted, "import", nil)) })

	bus := NewEventBus(4)
	SetGlobalEventBus(bus)
	sub := bus.Subscribe(EventFilter{})
	defer bus.Unsubscribe(sub)

	PublishGlobal(NewEvent(EventImportCompleted, "import", nil))
	assert.Equal(t, EventImportCompleted, receive(t, sub).Type)
}
