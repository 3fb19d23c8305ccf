// Package seed loads deterministic sample transactions for dashboards
// and local development.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	users     = []string{"user-001", "user-002", "user-003", "user-004", "user-005"}
	cities    = []string{"New York", "Los Angeles", "Chicago", "Houston", "Miami"}
	merchants = []string{"Amazon", "Walmart", "Target", "BestBuy", "Costco"}
)

// Transactions generates n deterministic sample transactions spread over
// the last week. The same n always yields the same data.
func Transactions(n int) []*domain.Transaction {
	rng := rand.New(rand.NewSource(42))
	now := time.Now()

	txs := make([]*domain.Transaction, 0, n)
	for i := 0; i < n; i++ {
		txs = append(txs, &domain.Transaction{
			ID:         fmt.Sprintf("TXN-%04d", i+1),
			UserID:     users[rng.Intn(len(users))],
			Amount:     10 + rng.Float64()*990,
			Currency:   "USD",
			MerchantID: merchants[rng.Intn(len(merchants))],
			Timestamp:  now.Add(-time.Duration(rng.Intn(604800)) * time.Second),
			Location: &domain.Location{
				City:    cities[rng.Intn(len(cities))],
				Country: "US",
			},
		})
	}
	return txs
}
