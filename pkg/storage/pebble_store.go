// Package storage persists the resting state of the order books in Pebble so
// a restarted node comes back with the same books and never reuses an id.
package storage

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/uhyunpark/matchbook/pkg/app/core/orderbook"
)

type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}
func (s *PebbleStore) Close() error { return s.db.Close() }

// SaveBook replaces the saved orders of symbol with orders, in the given
// order, in one atomic batch.
func (s *PebbleStore) SaveBook(symbol string, orders []orderbook.Order) error {
	prefix := bookPrefix(symbol)
	b := s.db.NewBatch()
	defer b.Close()

	if err := b.DeleteRange(prefix, keyUpperBound(prefix), nil); err != nil {
		return fmt.Errorf("failed to clear book: %w", err)
	}
	for i, o := range orders {
		val, err := encodeGob(o)
		if err != nil {
			return fmt.Errorf("encode order %d: %w", o.ID, err)
		}
		if err := b.Set(bookKey(symbol, uint64(i)), val, nil); err != nil {
			return fmt.Errorf("failed to save order %d: %w", o.ID, err)
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit book %s: %w", symbol, err)
	}
	return nil
}

// LoadBook returns the saved orders of symbol in the order they were saved.
// A symbol that was never saved has no orders.
func (s *PebbleStore) LoadBook(symbol string) ([]orderbook.Order, error) {
	prefix := bookPrefix(symbol)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var orders []orderbook.Order
	for iter.First(); iter.Valid(); iter.Next() {
		var o orderbook.Order
		if err := decodeGob(iter.Value(), &o); err != nil {
			return nil, fmt.Errorf("decode order in %s: %w", symbol, err)
		}
		orders = append(orders, o)
	}
	return orders, iter.Error()
}

// SaveIDFloor records the last issued order id.
func (s *PebbleStore) SaveIDFloor(id uint64) error {
	if err := s.db.Set([]byte(keyIDFloor), encodeUint64(id), pebble.Sync); err != nil {
		return fmt.Errorf("failed to save id floor: %w", err)
	}
	return nil
}

// LoadIDFloor returns the last saved order id, 0 if none was saved.
func (s *PebbleStore) LoadIDFloor() (uint64, error) {
	val, closer, err := s.db.Get([]byte(keyIDFloor))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	defer closer.Close()
	return decodeUint64(val)
}
