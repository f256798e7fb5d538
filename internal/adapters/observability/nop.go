package observability

import "github.com/svjp05/IEMS-SERVR/internal/ports"

// Nop discards everything. Handy for embedding and tests.
type Nop struct{}

func (Nop) LogInfo(string, ...ports.Field)              {}
func (Nop) LogWarn(string, ...ports.Field)              {}
func (Nop) LogError(string, error, ...ports.Field)      {}
func (Nop) LogCritical(string, error, ...ports.Field)   {}
func (Nop) IncCounter(string, float64)                  {}
func (Nop) ObserveLatency(string, float64)              {}
func (Nop) SetGauge(string, float64)                    {}
func (Nop) RecordDropped(string, error, ...ports.Field) {}

var _ ports.Observability = Nop{}
