package events

import "sync/atomic"

type busRef struct{ bus EventBus }

// process-wide bus, set once by main before modules load
var global atomic.Pointer[busRef]

// SetGlobalEventBus installs bus as the process-wide bus. nil clears it.
func SetGlobalEventBus(bus EventBus) {
	if bus == nil {
		global.Store(nil)
		return
	}
	global.Store(&busRef{bus: bus})
}

// GetGlobalEventBus returns the process-wide bus, or nil when none is set
func GetGlobalEventBus() EventBus {
	if ref := global.Load(); ref != nil {
		return ref.bus
	}
	return nil
}

// PublishGlobal publishes on the process-wide bus and drops the event otherwise
func PublishGlobal(event Event) {
	if bus := GetGlobalEventBus(); bus != nil {
		bus.Publish(event)
	}
}
