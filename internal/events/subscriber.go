package events

import "encoding/json"

// Message is one notification received from the bus.
type Message struct {
	Topic string
	Data  []byte
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Data, v)
}

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers notifications on the returned channel.
	// Call the returned cancel function to unsubscribe and close the channel.
	Subscribe(topic string) (<-chan Message, func(), error)
	Close() error
}
