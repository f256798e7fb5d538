package ports

// MessageQueue buffers encoded outbound frames for one subscriber so a slow
// peer never stalls the goroutine that is broadcasting.
type MessageQueue interface {
	Enqueue(frame []byte) bool
	DequeueBatch(max int) [][]byte
	Len() int
	// Ready is signalled after an Enqueue. A single signal may cover many
	// frames, so consumers drain until DequeueBatch returns nothing.
	Ready() <-chan struct{}
}
