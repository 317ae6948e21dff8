package auction

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/database"
)

// Storage key prefixes for auction-manager state.
var (
	auctionPrefix    = []byte("am/a/")
	collateralPrefix = []byte("am/tc/")
	totalTargetKey   = []byte("am/tt")
	sweepCursorKey   = []byte("am/sweep/cursor")
	sweepLockKey     = []byte("am/sweep/lock")
	sweepBudgetKey   = []byte("am/sweep/budget")
)

// DefaultSweepBudget bounds how many auctions one unwind sweep
// invocation may process unless the durable override is set.
const DefaultSweepBudget = 1000

// Store persists auction records, aggregate counters, and the unwind
// sweeper's cursor, lock, and budget. Auction keys are big-endian ids
// so prefix iteration yields ascending id order.
type Store struct {
	db database.Database
}

func NewStore(db database.Database) *Store {
	return &Store{db: db}
}

func auctionKey(id AuctionID) []byte {
	key := make([]byte, len(auctionPrefix)+8)
	copy(key, auctionPrefix)
	binary.BigEndian.PutUint64(key[len(auctionPrefix):], uint64(id))
	return key
}

// PutAuction writes an auction record.
func (s *Store) PutAuction(a *CollateralAuction) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode auction %d: %w", a.ID, err)
	}
	return s.db.Put(auctionKey(a.ID), raw)
}

// GetAuction returns the auction record, or nil if it does not exist.
func (s *Store) GetAuction(id AuctionID) (*CollateralAuction, error) {
	raw, err := s.db.Get(auctionKey(id))
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a := new(CollateralAuction)
	if err := json.Unmarshal(raw, a); err != nil {
		return nil, fmt.Errorf("decode auction %d: %w", id, err)
	}
	return a, nil
}

// DeleteAuction removes the auction record.
func (s *Store) DeleteAuction(id AuctionID) error {
	return s.db.Delete(auctionKey(id))
}

// AscendAuctions walks live auctions in ascending id order starting at
// from, calling fn until it returns false or the set is exhausted. A
// cursor pointing at a removed id naturally resumes at the next live
// one.
func (s *Store) AscendAuctions(from AuctionID, fn func(*CollateralAuction) bool) error {
	it := s.db.NewIteratorWithStartAndPrefix(auctionKey(from), auctionPrefix)
	defer it.Release()
	for it.Next() {
		a := new(CollateralAuction)
		if err := json.Unmarshal(it.Value(), a); err != nil {
			return fmt.Errorf("decode auction record: %w", err)
		}
		if !fn(a) {
			return it.Error()
		}
	}
	return it.Error()
}

func (s *Store) getBalance(key []byte) (Balance, error) {
	raw, err := s.db.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return Balance(binary.BigEndian.Uint64(raw)), nil
}

func (s *Store) putBalance(key []byte, v Balance) error {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, uint64(v))
	return s.db.Put(key, raw)
}

func collateralKey(currency CurrencyID) []byte {
	return append(append([]byte{}, collateralPrefix...), currency...)
}

// TotalCollateralInAuction returns the aggregate collateral of the
// given currency across live auctions. Maintained incrementally, never
// recomputed by scan.
func (s *Store) TotalCollateralInAuction(currency CurrencyID) (Balance, error) {
	return s.getBalance(collateralKey(currency))
}

func (s *Store) SetTotalCollateralInAuction(currency CurrencyID, v Balance) error {
	return s.putBalance(collateralKey(currency), v)
}

// TotalTargetInAuction returns the aggregate outstanding target across
// live auctions.
func (s *Store) TotalTargetInAuction() (Balance, error) {
	return s.getBalance(totalTargetKey)
}

func (s *Store) SetTotalTargetInAuction(v Balance) error {
	return s.putBalance(totalTargetKey, v)
}

// SweepCursor returns the id the next unwind sweep resumes from.
func (s *Store) SweepCursor() (AuctionID, bool, error) {
	raw, err := s.db.Get(sweepCursorKey)
	if errors.Is(err, database.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return AuctionID(binary.BigEndian.Uint64(raw)), true, nil
}

func (s *Store) SetSweepCursor(id AuctionID) error {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, uint64(id))
	return s.db.Put(sweepCursorKey, raw)
}

func (s *Store) ClearSweepCursor() error {
	return s.db.Delete(sweepCursorKey)
}

// TryAcquireSweepLock takes the time-boxed sweep lock. The lock is not
// explicitly released; it lapses when its duration passes, which also
// suppresses delayed redeliveries of the same step's work.
func (s *Store) TryAcquireSweepLock(now time.Time, d time.Duration) (bool, error) {
	raw, err := s.db.Get(sweepLockKey)
	if err == nil {
		expiry := time.Unix(0, int64(binary.BigEndian.Uint64(raw)))
		if now.Before(expiry) {
			return false, nil
		}
	} else if !errors.Is(err, database.ErrNotFound) {
		return false, err
	}
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, uint64(now.Add(d).UnixNano()))
	if err := s.db.Put(sweepLockKey, out); err != nil {
		return false, err
	}
	return true, nil
}

// SweepBudget returns the per-step sweep budget, falling back to
// DefaultSweepBudget when no durable override is set.
func (s *Store) SweepBudget() (int, error) {
	raw, err := s.db.Get(sweepBudgetKey)
	if errors.Is(err, database.ErrNotFound) {
		return DefaultSweepBudget, nil
	}
	if err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint32(raw)), nil
}

// SetSweepBudget writes the durable sweep budget override.
func (s *Store) SetSweepBudget(n uint32) error {
	raw := make([]byte, 4)
	binary.BigEndian.PutUint32(raw, n)
	return s.db.Put(sweepBudgetKey, raw)
}
