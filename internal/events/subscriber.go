package events

// Subscriber follows record changes from the event bus.
type Subscriber interface {
	// Changes delivers the changes to one collection, or to all of them
	// when resource is empty. cancel unsubscribes and closes the channel.
	Changes(resource string) (<-chan RecordChanged, func(), error)
	Close() error
}
