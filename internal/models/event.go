package models

import "encoding/json"

// EventName identifies a push event on the socket wire.
type EventName string

const (
	EventSetup      EventName = "setup"
	EventConnected  EventName = "connected"
	EventJoinChat   EventName = "join chat"
	EventTyping     EventName = "typing"
	EventStopTyping EventName = "stop typing"
	EventNewMessage EventName = "new message"
	// EventMessageReceived keeps the historical wire spelling; existing
	// clients listen for it verbatim.
	EventMessageReceived EventName = "message recieved"
	EventMessageUpdated  EventName = "message updated"
	EventMessageDeleted  EventName = "message deleted"
)

// Event is one frame on the socket wire. Data stays raw so the fan-out
// engine can forward payloads without reserializing them.
type Event struct {
	Name EventName       `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent marshals v into an event frame.
func NewEvent(name EventName, v any) (Event, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Event{}, err
	}
	return Event{Name: name, Data: data}, nil
}
