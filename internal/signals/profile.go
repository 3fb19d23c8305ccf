package signals

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// foreignCountryKm is the displacement reported for a transaction from a
// country other than the user's home country. It is deliberately above
// the default location-rule threshold.
const foreignCountryKm = 5000

// UserProfiles tracks per-user behavioral baselines: the first observed
// country becomes the home country, and the first observation records the
// account's first-seen time. It implements both domain.LocationProfiler
// and domain.AccountAges.
type UserProfiles struct {
	mu       sync.RWMutex
	profiles map[string]*userProfile

	now func() time.Time
}

type userProfile struct {
	homeCountry string
	firstSeen   time.Time
}

// NewUserProfiles creates an empty profile registry.
func NewUserProfiles() *UserProfiles {
	return &UserProfiles{
		profiles: make(map[string]*userProfile),
		now:      time.Now,
	}
}

// Observe records a transaction for the user, establishing the home
// country and first-seen time on first sight.
func (p *UserProfiles) Observe(userID string, loc *domain.Location) {
	p.mu.Lock()
	defer p.mu.Unlock()

	profile, ok := p.profiles[userID]
	if !ok {
		profile = &userProfile{firstSeen: p.now()}
		p.profiles[userID] = profile
	}
	if profile.homeCountry == "" && loc != nil && loc.Country != "" {
		profile.homeCountry = strings.ToUpper(loc.Country)
	}
}

// RegisterAccount records an account with an explicit creation time,
// overriding any first-seen inference.
func (p *UserProfiles) RegisterAccount(userID string, createdAt time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	profile, ok := p.profiles[userID]
	if !ok {
		profile = &userProfile{}
		p.profiles[userID] = profile
	}
	profile.firstSeen = createdAt
}

// Displacement reports the distance between the transaction origin and
// the user's home country: zero for the home country, a large fixed
// distance for any other. Unknown users and users without an established
// home country yield no verdict.
func (p *UserProfiles) Displacement(ctx context.Context, userID string, loc *domain.Location) (float64, bool) {
	if loc == nil || loc.Country == "" {
		return 0, false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	profile, ok := p.profiles[userID]
	if !ok || profile.homeCountry == "" {
		return 0, false
	}
	if strings.EqualFold(profile.homeCountry, loc.Country) {
		return 0, true
	}
	return foreignCountryKm, true
}

// AgeDays returns the account age in whole days since first sight.
// Unknown users yield no verdict.
func (p *UserProfiles) AgeDays(ctx context.Context, userID string) (int, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	profile, ok := p.profiles[userID]
	if !ok || profile.firstSeen.IsZero() {
		return 0, false
	}
	return int(p.now().Sub(profile.firstSeen).Hours() / 24), true
}
