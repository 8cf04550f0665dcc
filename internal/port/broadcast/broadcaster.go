// Package broadcast defines the ports between event producers and the fan-out.
package broadcast

// Publisher accepts serialized events for distribution to every current
// subscriber. Publish must not block; it returns the number of subscribers
// the frame was made available to.
type Publisher interface {
	Publish(frame []byte) int
}

// Stats reports the state of the fan-out for health and metrics.
type Stats interface {
	SubscriberCount() int
	Published() uint64
}
