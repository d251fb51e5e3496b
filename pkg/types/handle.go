package types

import "time"

// ResourceHandle is a bounded concurrency slot issued by the resource pool.
// A handle is exclusively owned by its allocating run until released; release
// bookkeeping lives in the pool, the handle itself is an immutable receipt.
type ResourceHandle struct {
	ID           string               `json:"id"`
	SessionID    string               `json:"session_id"`
	AllocatedAt  time.Time            `json:"allocated_at"`
	Requirements ResourceRequirements `json:"requirements"`
}
