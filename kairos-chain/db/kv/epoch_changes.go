package kv

import (
	"context"

	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"

	"github.com/kairosnetwork/kairos/kairos-chain/epochs"
)

// SaveEpochChanges persists the epoch-change forest. Callers save after
// every mutating operation so a restarted node resumes with the same fork
// view it shut down with.
func (s *Store) SaveEpochChanges(ctx context.Context, ec *epochs.EpochChanges) error {
	ctx, span := trace.StartSpan(ctx, "KairosDB.SaveEpochChanges")
	defer span.End()

	enc, err := encode(ec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(epochChangesBucket).Put(epochChangesKey, enc)
	})
}

// EpochChanges retrieves the persisted epoch-change forest, or nil when none
// has been saved yet.
func (s *Store) EpochChanges(ctx context.Context) (*epochs.EpochChanges, error) {
	ctx, span := trace.StartSpan(ctx, "KairosDB.EpochChanges")
	defer span.End()

	var enc []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		if data := tx.Bucket(epochChangesBucket).Get(epochChangesKey); data != nil {
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
	ec := epochs.New()
	if err := decode(enc, ec); err != nil {
		return nil, err
	}
	return ec, nil
}
