package gateway

// ReplayBuffer is a fixed-size ring of recent envelopes keyed by sequence
// number, used to backfill reconnecting clients. Callers synchronize access.
type ReplayBuffer struct {
	seqs []int64
	data [][]byte
	pos  int
	full bool
}

// NewReplayBuffer creates a replay buffer with the given capacity.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = 64
	}
	return &ReplayBuffer{
		seqs: make([]int64, capacity),
		data: make([][]byte, capacity),
	}
}

// Push stores an envelope, overwriting the oldest when full.
func (rb *ReplayBuffer) Push(seq int64, env []byte) {
	rb.seqs[rb.pos] = seq
	rb.data[rb.pos] = env
	rb.pos = (rb.pos + 1) % len(rb.seqs)
	if rb.pos == 0 {
		rb.full = true
	}
}

// Since returns envelopes with seq > after, oldest first.
func (rb *ReplayBuffer) Since(after int64) [][]byte {
	var out [][]byte
	n := rb.Len()
	for i := 0; i < n; i++ {
		idx := i
		if rb.full {
			idx = (rb.pos + i) % len(rb.seqs)
		}
		if rb.seqs[idx] > after {
			out = append(out, rb.data[idx])
		}
	}
	return out
}

// Len returns the number of buffered envelopes.
func (rb *ReplayBuffer) Len() int {
	if rb.full {
		return len(rb.seqs)
	}
	return rb.pos
}
