package iems

import (
	"github.com/svjp05/IEMS-SERVR/internal/domain"
	"github.com/svjp05/IEMS-SERVR/internal/ports"
)

// Sample is one persisted-or-pending amplitude reading.
type Sample = domain.Sample

// Metadata is the open key/value bag carried by every sample.
type Metadata = domain.Metadata

// Collector feeds locally produced samples (simulators, serial bridges) into
// the persist-and-broadcast path. Collected samples have no originator, so
// every subscriber receives them.
type Collector = ports.Collector

// SampleStore persists one sample at a time and returns its id and canonical
// timestamp.
type SampleStore = ports.SampleStore

// SavedSample is what a SampleStore returns for a persisted sample.
type SavedSample = ports.SavedSample

// Observability emits logs and metrics.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// Endpoint is a subscriber that can be registered for broadcasts.
type Endpoint = ports.Endpoint

// Message is a transport-neutral outbound message.
type Message = ports.Message

type TransportKind = ports.TransportKind

const (
	KindRawSocket    = ports.KindRawSocket
	KindEventChannel = ports.KindEventChannel
)
