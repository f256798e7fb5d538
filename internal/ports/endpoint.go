package ports

import (
	"time"

	"github.com/svjp05/IEMS-SERVR/internal/domain"
)

// TransportKind tags a subscriber endpoint with the push mechanism it uses.
type TransportKind string

const (
	KindRawSocket    TransportKind = "raw-socket"
	KindEventChannel TransportKind = "event-channel"
)

// Endpoint is a live connection that can receive pushed messages.
// Send must not block on the network.
type Endpoint interface {
	ID() string
	Kind() TransportKind
	Send(msg Message) error
	Open() bool
	Close() error
}

// Message types shared by both transports.
const (
	MessageEarthquakeData = "earthquake-data"
	MessageConfirmation   = "confirmation"
	MessageError          = "error"
	MessageConnection     = "connection"
)

// Message is a transport-neutral outbound message. Each transport decides how
// it is framed on the wire.
type Message struct {
	Type      string
	Text      string
	Payload   *domain.Sample
	Data      []domain.Sample
	Timestamp time.Time
}

func SampleMessage(s *domain.Sample) Message {
	return Message{Type: MessageEarthquakeData, Payload: s}
}

func ConfirmationMessage(text string, saved []domain.Sample) Message {
	if saved == nil {
		saved = []domain.Sample{}
	}
	return Message{Type: MessageConfirmation, Text: text, Data: saved}
}

func ErrorMessage(text string) Message {
	return Message{Type: MessageError, Text: text}
}

func ConnectionMessage(text string, at time.Time) Message {
	return Message{Type: MessageConnection, Text: text, Timestamp: at}
}
