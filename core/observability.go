package core

// PoolStats represents runtime observability state for a thread pool.
type PoolStats struct {
	Name       string
	State      PoolState
	MaxThreads int
	QueueSize  int
	Allocated  int
	Active     int
	Queued     int
	Completed  uint64
	Overflowed uint64
	Discarded  uint64
	TaskErrors int
	// GeneralErrors counts worker join failures seen during Stop.
	GeneralErrors int
	Running       bool
}
