package provider

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/hrygo/loomchat/internal/errs"
)

// Strategy is the tie-break rule applied among profiles sharing the
// lowest priority value.
type Strategy string

const (
	StrategyFirst      Strategy = "first"
	StrategyRoundRobin Strategy = "round-robin"
	StrategyLeastUsed  Strategy = "least-used"
	StrategyRandom     Strategy = "random"
)

// DefaultStrategy is used when a provider type has no configured
// strategy.
const DefaultStrategy = StrategyRandom

// Selector chooses a profile for a (provider, model, userGroup) request,
// applying eligibility filtering then priority and tie-break. Counters
// are per-process, best-effort, and not persisted.
type Selector struct {
	mu       sync.Mutex
	profiles map[string][]Profile // providerType -> profiles
	strategy map[string]Strategy  // providerType -> strategy

	roundRobin map[string]int // providerType -> next index among tied set
	usage      map[string]int // profile ID -> times picked
	rng        *rand.Rand
}

// NewSelector builds a Selector. rngSeed seeds the random strategy's
// source: a fixed seed (0 included) gives a deterministic sequence for
// tests, so callers wanting varying picks pass a varying seed such as the
// current time.
func NewSelector(rngSeed int64) *Selector {
	return &Selector{
		profiles:   make(map[string][]Profile),
		strategy:   make(map[string]Strategy),
		roundRobin: make(map[string]int),
		usage:      make(map[string]int),
		rng:        rand.New(rand.NewSource(rngSeed)),
	}
}

// SetProfiles replaces the configured profiles for a provider type.
func (s *Selector) SetProfiles(providerType string, profiles []Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]Profile, len(profiles))
	copy(cp, profiles)
	s.profiles[providerType] = cp
}

// SetStrategy configures the tie-break strategy for a provider type.
func (s *Selector) SetStrategy(providerType string, strategy Strategy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strategy[providerType] = strategy
}

// Select picks the best eligible profile for
// providerType/modelID/userGroup. Returns a NotEligible error if none
// qualify.
func (s *Selector) Select(providerType, modelID, userGroup string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := s.profiles[providerType]
	var eligible []Profile
	for _, p := range candidates {
		ok, err := Eligible(p, modelID, userGroup)
		if err != nil {
			return Profile{}, err
		}
		if ok {
			eligible = append(eligible, p)
		}
	}
	if len(eligible) == 0 {
		return Profile{}, errs.New(errs.NotEligible, "no eligible provider profile for "+providerType+"/"+modelID)
	}

	sort.SliceStable(eligible, func(i, j int) bool { return eligible[i].Priority < eligible[j].Priority })
	bestPriority := eligible[0].Priority
	var tied []Profile
	for _, p := range eligible {
		if p.Priority == bestPriority {
			tied = append(tied, p)
		}
	}
	if len(tied) == 1 {
		s.usage[tied[0].ID]++
		return tied[0], nil
	}

	strategy := s.strategy[providerType]
	if strategy == "" {
		strategy = DefaultStrategy
	}

	var chosen Profile
	switch strategy {
	case StrategyFirst:
		chosen = tied[0]
	case StrategyRoundRobin:
		idx := s.roundRobin[providerType] % len(tied)
		chosen = tied[idx]
		s.roundRobin[providerType] = idx + 1
	case StrategyLeastUsed:
		chosen = tied[0]
		best := s.usage[tied[0].ID]
		for _, p := range tied[1:] {
			if u := s.usage[p.ID]; u < best {
				best = u
				chosen = p
			}
		}
	default: // random
		chosen = tied[s.rng.Intn(len(tied))]
	}

	s.usage[chosen.ID]++
	return chosen, nil
}
