package kv

import (
	"context"

	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"
)

// Checkpoint is the last finalized block that pruning bookkeeping ran
// against.
type Checkpoint struct {
	Root   [32]byte `json:"root"`
	Number uint64   `json:"number"`
}

// SaveFinalizedCheckpoint persists the finality pointer next to the epoch
// tree, so a restarted node knows where pruning left off.
func (s *Store) SaveFinalizedCheckpoint(ctx context.Context, checkpoint *Checkpoint) error {
	ctx, span := trace.StartSpan(ctx, "KairosDB.SaveFinalizedCheckpoint")
	defer span.End()

	enc, err := encode(checkpoint)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(chainMetadataBucket).Put(finalizedCheckpointKey, enc)
	})
}

// FinalizedCheckpoint retrieves the persisted finality pointer, or nil when
// none has been saved yet.
func (s *Store) FinalizedCheckpoint(ctx context.Context) (*Checkpoint, error) {
	ctx, span := trace.StartSpan(ctx, "KairosDB.FinalizedCheckpoint")
	defer span.End()

	var enc []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		if data := tx.Bucket(chainMetadataBucket).Get(finalizedCheckpointKey); data != nil {
			enc = make([]byte, len(data))
			copy(enc, data)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, nil
	}
	checkpoint := &Checkpoint{}
	if err := decode(enc, checkpoint); err != nil {
		return nil, err
	}
	return checkpoint, nil
}
