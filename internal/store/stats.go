package store

// AmountBucket is a single bucket of the amount-range distribution.
type AmountBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// amountBucketEdges are the inclusive upper bounds of the fixed amount
// ranges; amounts above the last edge land in the open-ended bucket.
var amountBucketEdges = []float64{100, 500, 1000, 5000, 10000}

var amountBucketLabels = []string{
	"0-100", "101-500", "501-1000", "1001-5000", "5001-10000", "10000+",
}

// PatternStats aggregates temporal and amount distributions over the
// stored transactions.
type PatternStats struct {
	// HourlyDistribution buckets transactions by local calendar hour.
	HourlyDistribution [24]int `json:"hourlyDistribution"`

	// DailyDistribution buckets by day of week, Monday first.
	DailyDistribution [7]int `json:"dailyDistribution"`

	// AmountRanges buckets by the fixed amount-range edges, in order.
	AmountRanges []AmountBucket `json:"amountRanges"`
}

// PatternStats computes the hourly, day-of-week and amount-range
// distributions over all stored transactions.
func (s *TransactionStore) PatternStats() PatternStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats PatternStats
	counts := make([]int, len(amountBucketLabels))

	for _, tx := range s.txs {
		if !tx.Timestamp.IsZero() {
			local := tx.Timestamp.Local()
			stats.HourlyDistribution[local.Hour()]++
			// time.Weekday is Sunday-first; shift to Monday-first.
			stats.DailyDistribution[(int(local.Weekday())+6)%7]++
		}

		counts[amountBucketIndex(tx.Amount)]++
	}

	stats.AmountRanges = make([]AmountBucket, len(amountBucketLabels))
	for i, label := range amountBucketLabels {
		stats.AmountRanges[i] = AmountBucket{Label: label, Count: counts[i]}
	}
	return stats
}

func amountBucketIndex(amount float64) int {
	for i, edge := range amountBucketEdges {
		if amount <= edge {
			return i
		}
	}
	return len(amountBucketEdges)
}

// CountryDistribution counts transactions per location country. Only
// transactions with a known location are counted.
func (s *TransactionStore) CountryDistribution() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	countries := make(map[string]int)
	for _, tx := range s.txs {
		if tx.Location != nil && tx.Location.Country != "" {
			countries[tx.Location.Country]++
		}
	}
	return countries
}

// CityDistribution counts transactions per "city, country" pair for
// transactions with a known location.
func (s *TransactionStore) CityDistribution() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cities := make(map[string]int)
	for _, tx := range s.txs {
		if tx.Location == nil {
			continue
		}
		city, country := tx.Location.City, tx.Location.Country
		if city == "" {
			city = "Unknown"
		}
		if country == "" {
			country = "Unknown"
		}
		cities[city+", "+country]++
	}
	return cities
}

// TotalAmount sums the amounts of all stored transactions.
func (s *TransactionStore) TotalAmount() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0.0
	for _, tx := range s.txs {
		total += tx.Amount
	}
	return total
}
