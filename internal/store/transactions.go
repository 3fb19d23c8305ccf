// Package store provides the concurrent, process-lifetime stores for
// transactions and fraud alerts. All state is in memory and lost on
// restart; durability is the archive's concern, not the stores'.
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// TransactionStore is a capacity-bounded, insertion-ordered transaction
// repository. Insertion beyond capacity evicts the oldest surviving
// entries. Safe for concurrent use by any number of callers.
type TransactionStore struct {
	mu       sync.RWMutex
	capacity int
	txs      map[string]*domain.Transaction

	// order is the insertion-order index of ids. The backing map is
	// unordered; All reconstructs insertion order from this slice.
	order []string
}

// NewTransactionStore creates a store bounded to the given capacity.
// A non-positive capacity falls back to the default of 10,000.
func NewTransactionStore(capacity int) *TransactionStore {
	if capacity <= 0 {
		capacity = domain.DefaultTransactionCapacity
	}
	return &TransactionStore{
		capacity: capacity,
		txs:      make(map[string]*domain.Transaction),
	}
}

// Add stores a transaction, assigning an identifier and timestamp when
// absent, and returns the stored record. Entries past capacity are
// evicted oldest first.
func (s *TransactionStore) Add(tx *domain.Transaction) *domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = "txn-" + uuid.New().String()[:8]
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now()
	}

	stored := cloneTransaction(tx)
	s.txs[stored.ID] = stored
	s.order = append(s.order, stored.ID)

	for len(s.order) > s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.txs, oldest)
	}

	return cloneTransaction(stored)
}

// Get returns the transaction with the given id, or nil when absent.
func (s *TransactionStore) Get(id string) *domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.txs[id]
	if !ok {
		return nil
	}
	return cloneTransaction(tx)
}

// All returns every stored transaction in insertion order.
func (s *TransactionStore) All() []*domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Transaction, 0, len(s.order))
	for _, id := range s.order {
		if tx, ok := s.txs[id]; ok {
			result = append(result, cloneTransaction(tx))
		}
	}
	return result
}

// ByUser returns the user's transactions, in no particular order.
func (s *TransactionStore) ByUser(userID string) []*domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, tx := range s.txs {
		if tx.UserID == userID {
			result = append(result, cloneTransaction(tx))
		}
	}
	return result
}

// Update applies the well-formed fields of a partial update to a stored
// transaction: a positive amount, a non-nil location, a non-empty
// merchant. Malformed fields are ignored per field. Returns false when
// the id is unknown.
func (s *TransactionStore) Update(id string, upd domain.TransactionUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[id]
	if !ok {
		return false
	}

	if upd.Amount > 0 {
		tx.Amount = upd.Amount
	}
	if upd.Location != nil {
		loc := *upd.Location
		tx.Location = &loc
	}
	if upd.MerchantID != "" {
		tx.MerchantID = upd.MerchantID
	}
	return true
}

// Delete removes a transaction from both the map and the order index.
// Removal is idempotent; a second delete of the same id returns false.
func (s *TransactionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.txs[id]; !ok {
		return false
	}
	delete(s.txs, id)

	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Count returns the number of stored transactions.
func (s *TransactionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txs)
}

// Clear removes all transactions.
func (s *TransactionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txs = make(map[string]*domain.Transaction)
	s.order = nil
}

func cloneTransaction(tx *domain.Transaction) *domain.Transaction {
	c := *tx
	if tx.Location != nil {
		loc := *tx.Location
		c.Location = &loc
	}
	return &c
}
