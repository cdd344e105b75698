package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/wamstack/wamstack/pkg/types"
)

// seqBandwidth is how many IDs the sequence leases at a time. A restart skips
// the unused part of the lease.
const seqBandwidth = 100

var (
	readingPrefix = []byte("r/")
	seqKey        = []byte("seq/readings")
	thresholdsKey = []byte("thresholds")
)

// Badger is a Store backed by BadgerDB. Readings are keyed by big-endian ID so
// key order is arrival order.
type Badger struct {
	db       *badger.DB
	seq      *badger.Sequence
	codec    *codec
	capacity int

	mu sync.Mutex // serializes Append so trims never conflict
}

// OpenBadger opens (or creates) a BadgerDB at path. An empty path keeps the
// database in memory.
func OpenBadger(path string, capacity int) (*Badger, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger: %w", err)
	}
	seq, err := db.GetSequence(seqKey, seqBandwidth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: lease sequence: %w", err)
	}
	c, err := newCodec()
	if err != nil {
		seq.Release() //nolint:errcheck
		db.Close()
		return nil, err
	}
	return &Badger{db: db, seq: seq, codec: c, capacity: capacity}, nil
}

// Append implements Store.
func (b *Badger) Append(_ context.Context, rec Record) (Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, err := b.seq.Next()
	if err != nil {
		return Record{}, fmt.Errorf("store: next id: %w", err)
	}
	rec.ID = n + 1

	val, err := b.codec.encode(rec)
	if err != nil {
		return Record{}, err
	}
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(readingKey(rec.ID), val)
	}); err != nil {
		return Record{}, fmt.Errorf("store: write reading: %w", err)
	}

	if rec.ID > uint64(b.capacity) {
		if err := b.trim(rec.ID - uint64(b.capacity)); err != nil {
			slog.Warn("store: trim failed", "err", err)
		}
	}
	return rec, nil
}

// trim deletes every reading with ID <= cutoff.
func (b *Badger) trim(cutoff uint64) error {
	return b.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = readingPrefix
		it := txn.NewIterator(opts)

		var stale [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			k := it.Item().KeyCopy(nil)
			if idFromKey(k) > cutoff {
				break
			}
			stale = append(stale, k)
		}
		it.Close()

		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Recent implements Store.
func (b *Badger) Recent(_ context.Context, n int) ([]Record, error) {
	out := make([]Record, 0, max(min(n, b.capacity), 0))
	if n <= 0 {
		return out, nil
	}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = readingPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seekLast()); it.Valid() && len(out) < n; it.Next() {
			err := it.Item().Value(func(val []byte) error {
				rec, err := b.codec.decode(val)
				if err != nil {
					return err
				}
				out = append(out, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: read readings: %w", err)
	}
	return out, nil
}

// Thresholds implements Store.
func (b *Badger) Thresholds(_ context.Context) (types.Thresholds, bool, error) {
	var th types.Thresholds
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(thresholdsKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &th)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return types.Thresholds{}, false, nil
	}
	if err != nil {
		return types.Thresholds{}, false, fmt.Errorf("store: read thresholds: %w", err)
	}
	return th, true, nil
}

// SaveThresholds implements Store.
func (b *Badger) SaveThresholds(_ context.Context, th types.Thresholds) error {
	val, err := json.Marshal(th)
	if err != nil {
		return fmt.Errorf("store: marshal thresholds: %w", err)
	}
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(thresholdsKey, val)
	}); err != nil {
		return fmt.Errorf("store: write thresholds: %w", err)
	}
	return nil
}

// Close releases the ID lease and closes the database.
func (b *Badger) Close() error {
	if err := b.seq.Release(); err != nil {
		slog.Warn("store: release sequence", "err", err)
	}
	b.codec.close()
	return b.db.Close()
}

func readingKey(id uint64) []byte {
	k := make([]byte, len(readingPrefix)+8)
	copy(k, readingPrefix)
	binary.BigEndian.PutUint64(k[len(readingPrefix):], id)
	return k
}

func idFromKey(k []byte) uint64 {
	if len(k) != len(readingPrefix)+8 {
		return 0
	}
	return binary.BigEndian.Uint64(k[len(readingPrefix):])
}

// seekLast is a key that sorts after every reading key.
func seekLast() []byte {
	return readingKey(^uint64(0))
}
