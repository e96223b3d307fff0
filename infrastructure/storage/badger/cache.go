package badger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ibmi-agents/db2i-go/domain/cache"
)

// Cache keeps tool results in an embedded badger database under BADGER_DIR.
// Entry expiry uses badger's own TTLs.
type Cache struct {
	db        *badger.DB
	gcStop    chan struct{}
	gcWg      sync.WaitGroup
	closeOnce sync.Once
}

// NewCache opens the database and, for on-disk databases, starts value-log GC.
func NewCache(cfg Config, opts ...Option) (*Cache, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	c := &Cache{db: db, gcStop: make(chan struct{})}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		c.startGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return c, nil
}

func (c *Cache) startGC(interval time.Duration, discardRatio float64) {
	c.gcWg.Add(1)
	go func() {
		defer c.gcWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-c.gcStop:
				return
			case <-ticker.C:
				for c.db.RunValueLogGC(discardRatio) == nil {
				}
			}
		}
	}()
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var result []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		result, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return result, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return cache.ErrInvalidKey
	}

	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// Invalidate deletes the live keys under prefix in one write batch.
func (c *Cache) Invalidate(ctx context.Context, prefix string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var keys [][]byte
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil || len(keys) == 0 {
		return 0, err
	}

	wb := c.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Close stops GC and closes the database. It is safe to call twice.
func (c *Cache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.gcStop)
		c.gcWg.Wait()
		err = c.db.Close()
	})
	return err
}

var _ cache.Cache = (*Cache)(nil)
