package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/gofiber/fiber/v2/log"
)

const keyPrefix = "prefs/"

// Badger is a Store persisted on disk with badger.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the preference database in dir.
func OpenBadger(dir string) (*Badger, error) {
	db, err := badger.Open(
		badger.DefaultOptions(dir).
			WithNumVersionsToKeep(1).
			WithValueLogFileSize(16 << 20).
			WithLogger(&badgerLogger{}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open preference store: %w", err)
	}

	return &Badger{db: db}, nil
}

func (b *Badger) Get(key string) (string, bool, error) {
	var value string
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if errors.Is(err, badger.ErrDBClosed) {
		return "", false, ErrClosed
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}

	return value, true, nil
}

func (b *Badger) Set(key, value string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+key), []byte(value))
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	return nil
}

// Close flushes pending writes. Calling it more than once is safe.
func (b *Badger) Close() error {
	return b.db.Close()
}

type badgerLogger struct{}

func (l *badgerLogger) Errorf(s string, i ...interface{}) {
	log.Errorf(s, i...)
}

func (l *badgerLogger) Warningf(s string, i ...interface{}) {
	log.Warnf(s, i...)
}

func (l *badgerLogger) Infof(s string, i ...interface{}) {
	log.Debugf(s, i...)
}

func (l *badgerLogger) Debugf(s string, i ...interface{}) {
	log.Tracef(s, i...)
}
