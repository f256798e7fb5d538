package ports

// Policy bounds the per-subscriber outbound queue.
type Policy struct {
	MaxQueueLen int `yaml:"max_queue_len"`

	OnQueueFull string `yaml:"on_queue_full"` // "drop", "disconnect"
}

const (
	OnQueueFullDrop       = "drop"
	OnQueueFullDisconnect = "disconnect"
)
