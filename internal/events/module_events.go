package events

// Module lifecycle events
const (
	EventModuleInitialized EventType = "module.initialized"
	EventModuleError       EventType = "module.error"
)

// Import job events
const (
	EventImportStarted   EventType = "import.started"
	EventImportProgress  EventType = "import.progress"
	EventImportCompleted EventType = "import.completed"
	EventImportFailed    EventType = "import.failed"
)

// ImportEventTypes lists every import event, for subscribers that want all of them
var ImportEventTypes = []EventType{
	EventImportStarted,
	EventImportProgress,
	EventImportCompleted,
	EventImportFailed,
}

// ModuleEvent builds a lifecycle event for the given module
func ModuleEvent(eventType EventType, moduleID, moduleName string, err error) Event {
	data := map[string]interface{}{
		"module_id":   moduleID,
		"module_name": moduleName,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	return NewEvent(eventType, "modulemanager", data)
}
