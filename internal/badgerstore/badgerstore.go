// Package badgerstore persists elements and their metadata in BadgerDB.
// One Store serves as both the element store and the metadata store of a
// vault or a persistent cache.
package badgerstore

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/dustin/go-humanize"
	"github.com/i5heu/ouroboros-cascade/pkg/store"
	"github.com/shirou/gopsutil/disk"
)

// ErrInsufficientSpace is returned by Open when the volume holding the
// store has less free space than configured.
var ErrInsufficientSpace = errors.New("badgerstore: insufficient free space")

const (
	logKeyPath = "path"
	logKeyFree = "free"
)

// Options configures Open.
type Options struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string
	// InMemory keeps everything in memory, used for caches and tests.
	InMemory bool
	// MinimumFreeGB refuses to open when less space is free on Path.
	MinimumFreeGB uint
	// Logger receives lifecycle logs. nil discards them.
	Logger *slog.Logger
}

// Store is a BadgerDB backed store.ElementStore and store.MetadataStore.
type Store struct {
	db  *badger.DB
	log *slog.Logger

	closed    atomic.Bool
	closeOnce sync.Once
}

// Open opens or creates the database described by opts.
func Open(opts Options) (*Store, error) { // A
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, fmt.Errorf("badgerstore: empty path")
		}
		if err := os.MkdirAll(opts.Path, 0o700); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", opts.Path, err)
		}
		if err := checkFreeSpace(log, opts.Path, opts.MinimumFreeGB); err != nil {
			return nil, err
		}
		bopts = badger.DefaultOptions(opts.Path)
	}
	bopts = bopts.WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	log.Debug("badger store opened", logKeyPath, opts.Path)
	return &Store{db: db, log: log}, nil
}

func checkFreeSpace(log *slog.Logger, path string, minimumGB uint) error {
	usage, err := disk.Usage(path)
	if err != nil {
		return fmt.Errorf("disk usage of %s: %w", path, err)
	}
	required := uint64(minimumGB) * 1000 * 1000 * 1000
	log.Info("store volume",
		logKeyPath, path,
		logKeyFree, humanize.Bytes(usage.Free),
	)
	if usage.Free < required {
		return fmt.Errorf(
			"%w: %s free on %s, need %s",
			ErrInsufficientSpace,
			humanize.Bytes(usage.Free), path, humanize.Bytes(required),
		)
	}
	return nil
}

// Close flushes and closes the database. Later calls return nil.
func (s *Store) Close() error { // A
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		err = s.db.Close()
	})
	return err
}

func (s *Store) view(fn func(txn *badger.Txn) error) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	return s.db.View(fn)
}

func (s *Store) update(fn func(txn *badger.Txn) error) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	return s.db.Update(fn)
}

var (
	_ store.ElementStore  = (*Store)(nil)
	_ store.MetadataStore = (*Store)(nil)
)
