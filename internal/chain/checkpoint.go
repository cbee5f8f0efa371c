package chain

// Checkpoint marks the last durably processed position in the log stream.
// Checkpoints are written only at batch boundaries, so resume is always
// from the block after BlockNumber; LogIndex is informational (it tells an
// operator how deep into the last block the batch reached).
type Checkpoint struct {
	BlockNumber uint64
	LogIndex    uint32
}
