// Package kv defines the bolt-backed persistent store for the epoch-change
// tracking structures.
package kv

import (
	"os"
	"path"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	prombbolt "github.com/prysmaticlabs/prombbolt"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"github.com/kairosnetwork/kairos/config/params"
)

var log = logrus.WithField("prefix", "db")

// Store is a bolt-backed key-value store holding the persisted epoch-change
// forest and the chain metadata needed to resume pruning after a restart.
type Store struct {
	db           *bolt.DB
	databasePath string
}

// NewKVStore initializes a new bolt key-value store at the directory path
// specified, creates the buckets from the schema, and returns the open
// store.
func NewKVStore(dirPath string) (*Store, error) {
	if err := os.MkdirAll(dirPath, 0700); err != nil {
		return nil, err
	}
	datafile := path.Join(dirPath, params.KairosConfig().DatabaseFileName)
	boltDB, err := bolt.Open(datafile, 0600, &bolt.Options{Timeout: 1 * time.Second, InitialMmapSize: 10e6})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, errors.New("cannot obtain database lock, database may be in use by another process")
		}
		return nil, err
	}

	kv := &Store{
		db:           boltDB,
		databasePath: dirPath,
	}
	if err := kv.db.Update(func(tx *bolt.Tx) error {
		return createBuckets(
			tx,
			epochChangesBucket,
			chainMetadataBucket,
		)
	}); err != nil {
		return nil, err
	}
	if err := prometheus.Register(prombbolt.New("kairos_db", kv.db)); err != nil {
		log.WithError(err).Debug("Could not register database metrics collector")
	}
	return kv, nil
}

// Close closes the underlying bolt database.
func (s *Store) Close() error {
	prometheus.Unregister(prombbolt.New("kairos_db", s.db))
	return s.db.Close()
}

// DatabasePath at which this database writes files.
func (s *Store) DatabasePath() string {
	return s.databasePath
}

// ClearDB removes the previously stored database in the data directory.
func (s *Store) ClearDB() error {
	if _, err := os.Stat(s.databasePath); os.IsNotExist(err) {
		return nil
	}
	return os.Remove(path.Join(s.databasePath, params.KairosConfig().DatabaseFileName))
}

func createBuckets(tx *bolt.Tx, buckets ...[]byte) error {
	for _, bucket := range buckets {
		if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
			return err
		}
	}
	return nil
}
