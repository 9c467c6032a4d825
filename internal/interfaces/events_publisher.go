package interfaces

// EventPublisher emits ledger lifecycle events to an external broker.
type EventPublisher interface {
	Publish(topic string, event any) error
}
