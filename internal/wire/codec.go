// Package wire frames outbound messages for the two subscriber transports.
//
// The raw socket transport speaks flat JSON objects tagged by "type":
//
//	{"type":"earthquake-data","payload":{...}}
//	{"type":"confirmation","message":"...","data":[...]}
//	{"type":"error","message":"..."}
//
// The event channel transport wraps everything in named events:
//
//	{"event":"earthquake-data","data":{...}}
package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/svjp05/IEMS-SERVR/internal/domain"
	"github.com/svjp05/IEMS-SERVR/internal/ports"
)

// EventWelcome is the event name used for the greeting on the event channel.
const EventWelcome = "welcome"

type samplePush struct {
	Type    string         `json:"type"`
	Payload *domain.Sample `json:"payload"`
}

type confirmation struct {
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Data    []domain.Sample `json:"data"`
}

type textMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type greeting struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// EncodeRaw renders msg in the raw socket format.
func EncodeRaw(msg ports.Message) ([]byte, error) {
	switch msg.Type {
	case ports.MessageEarthquakeData:
		if msg.Payload == nil {
			return nil, fmt.Errorf("encode %s: missing payload", msg.Type)
		}
		return json.Marshal(samplePush{Type: msg.Type, Payload: msg.Payload})
	case ports.MessageConfirmation:
		data := msg.Data
		if data == nil {
			data = []domain.Sample{}
		}
		return json.Marshal(confirmation{Type: msg.Type, Message: msg.Text, Data: data})
	case ports.MessageError:
		return json.Marshal(textMessage{Type: msg.Type, Message: msg.Text})
	case ports.MessageConnection:
		return json.Marshal(greeting{Type: msg.Type, Message: msg.Text, Timestamp: msg.Timestamp})
	default:
		return nil, fmt.Errorf("encode: unknown message type %q", msg.Type)
	}
}

// Event is the envelope used on the event channel in both directions.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type eventText struct {
	Message string `json:"message"`
}

type eventGreeting struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type eventConfirmation struct {
	Message string          `json:"message"`
	Data    []domain.Sample `json:"data"`
}

// EncodeEvent renders msg as a named event.
func EncodeEvent(msg ports.Message) ([]byte, error) {
	var (
		name = msg.Type
		body any
	)
	switch msg.Type {
	case ports.MessageEarthquakeData:
		if msg.Payload == nil {
			return nil, fmt.Errorf("encode %s: missing payload", msg.Type)
		}
		body = msg.Payload
	case ports.MessageConfirmation:
		data := msg.Data
		if data == nil {
			data = []domain.Sample{}
		}
		body = eventConfirmation{Message: msg.Text, Data: data}
	case ports.MessageError:
		body = eventText{Message: msg.Text}
	case ports.MessageConnection:
		name = EventWelcome
		body = eventGreeting{Message: msg.Text, Timestamp: msg.Timestamp}
	default:
		return nil, fmt.Errorf("encode: unknown message type %q", msg.Type)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Event: name, Data: data})
}

// DecodeEvent parses one inbound event envelope.
func DecodeEvent(b []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.Event == "" {
		return Event{}, fmt.Errorf("decode event: missing event name")
	}
	return ev, nil
}

// InboundSample is the body of an "earthquake-data" event sent by a client.
type InboundSample struct {
	Amplitude *float64        `json:"amplitude"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
	Metadata  domain.Metadata `json:"metadata,omitempty"`
}

// DecodeSample turns an inbound event body into a sample. A missing
// timestamp is filled with now.
func DecodeSample(data json.RawMessage, now time.Time) (*domain.Sample, error) {
	var in InboundSample
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("decode sample: %w", err)
	}
	if in.Amplitude == nil {
		return nil, fmt.Errorf("decode sample: missing amplitude")
	}
	s := &domain.Sample{
		Amplitude: *in.Amplitude,
		Timestamp: now,
		Metadata:  in.Metadata,
	}
	if in.Timestamp != nil && !in.Timestamp.IsZero() {
		s.Timestamp = *in.Timestamp
	}
	if s.Metadata == nil {
		s.Metadata = domain.Metadata{}
	}
	return s, nil
}
