package ports

type Observability interface {
	LogInfo(msg string, fields ...Field)
	LogWarn(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)
	LogCritical(msg string, err error, fields ...Field)

	IncCounter(name string, v float64)
	ObserveLatency(name string, seconds float64)

	SetGauge(name string, v float64)

	// RecordDropped counts a sample lost at the given stage ("decode",
	// "persist") and logs why.
	RecordDropped(stage string, err error, fields ...Field)
}

type Field struct {
	Key   string
	Value any
}
