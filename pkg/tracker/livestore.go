package tracker

import (
	"context"
	"fmt"
	"sync"

	"github.com/buspulse/buspulse/pkg/fleet"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/rs/zerolog/log"
)

const liveStateCacheKeyFormat = "livestate/%s"

// LiveStateCacheKey is the Redis mirror key for a vehicle's live state.
func LiveStateCacheKey(vehicleID string) string {
	return fmt.Sprintf(liveStateCacheKeyFormat, vehicleID)
}

// LiveStore holds the authoritative "latest known" snapshot per vehicle.
// Writes are last-write-wins by observation time; an older report never
// replaces a newer one regardless of ingestion order.
type LiveStore struct {
	mutex  sync.RWMutex
	states map[string]*fleet.LiveState

	// Optional Redis mirror so other processes can read current state
	cache *cache.Cache[*fleet.LiveState]
}

func NewLiveStore() *LiveStore {
	return &LiveStore{
		states: map[string]*fleet.LiveState{},
	}
}

func (s *LiveStore) WithCache(stateCache *cache.Cache[*fleet.LiveState]) *LiveStore {
	s.cache = stateCache
	return s
}

// Set replaces the vehicle's live state. Returns *StaleWriteError when the
// incoming position is older than the stored one; the stored state is kept.
func (s *LiveStore) Set(state *fleet.LiveState) error {
	s.mutex.Lock()

	existing := s.states[state.VehicleID]
	if existing != nil && state.Position.ObservedAt.Before(existing.Position.ObservedAt) {
		s.mutex.Unlock()

		return &StaleWriteError{
			VehicleID: state.VehicleID,
			Stored:    existing.Position.ObservedAt,
			Attempted: state.Position.ObservedAt,
		}
	}

	s.states[state.VehicleID] = state
	s.mutex.Unlock()

	if s.cache != nil {
		err := s.cache.Set(context.Background(), fmt.Sprintf(liveStateCacheKeyFormat, state.VehicleID), state)
		if err != nil {
			log.Error().Err(err).Str("vehicle", state.VehicleID).Msg("Failed to mirror live state")
		}
	}

	return nil
}

// Get returns a copy of the vehicle's live state.
func (s *LiveStore) Get(vehicleID string) (fleet.LiveState, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	state := s.states[vehicleID]
	if state == nil {
		return fleet.LiveState{}, false
	}

	return *state, true
}

// VehicleIDs returns all vehicles with a known live state.
func (s *LiveStore) VehicleIDs() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ids := make([]string, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}

	return ids
}
