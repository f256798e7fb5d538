package domain

import (
	"math"
	"time"
)

// Metadata is the open key/value bag carried by every sample. Downstream
// consumers (history queries, reports, analysis) read arbitrary keys, so it is
// kept as a map rather than a fixed struct.
type Metadata map[string]any

// Well-known metadata keys.
const (
	MetaSource         = "source"
	MetaRaw            = "raw"
	MetaWaveformType   = "waveformType"
	MetaBatchIndex     = "batchIndex"
	MetaBatchSize      = "batchSize"
	MetaTemperature    = "temperature"
	MetaHumidity       = "humidity"
	MetaVoltage        = "voltage"
	MetaDataType       = "dataType"
	MetaSecondWaveform = "secondWaveform"
	MetaThirdWaveform  = "thirdWaveform"
)

// Values for MetaSource and MetaDataType.
const (
	SourceExternal  = "external"
	SourceSimulator = "simulator"

	DataTypeWaveform       = "waveform"
	DataTypeDualWaveform   = "dual-waveform"
	DataTypeTripleWaveform = "triple-waveform"
)

// Sample is one amplitude reading from a seismic sensor.
type Sample struct {
	ID        int64     `json:"id"`
	Amplitude float64   `json:"amplitude"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  Metadata  `json:"metadata"`
}

// Finite reports whether the amplitude is a usable number.
func (s *Sample) Finite() bool {
	return !math.IsNaN(s.Amplitude) && !math.IsInf(s.Amplitude, 0)
}

// WaveformType returns the X/Y/Z channel tag, or "" for untagged samples.
func (s *Sample) WaveformType() string {
	if s == nil {
		return ""
	}
	v, _ := s.Metadata[MetaWaveformType].(string)
	return v
}

// Clone returns a deep-enough copy: the metadata map is duplicated so the copy
// can be mutated independently.
func (s Sample) Clone() Sample {
	s.Metadata = s.Metadata.Clone()
	return s
}

// Clone copies the map. A nil map clones to nil.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge copies every entry of src into m, overwriting existing keys.
func (m Metadata) Merge(src Metadata) Metadata {
	if m == nil {
		m = make(Metadata, len(src))
	}
	for k, v := range src {
		m[k] = v
	}
	return m
}
