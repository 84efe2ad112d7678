package review

import (
	"sort"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/kaitorecca/guardian-redact/internal/models"
)

// SuggestionStore holds document suggestions indexed by unit (page).
// Every query derives its result from current state; nothing is cached.
type SuggestionStore struct {
	mu       sync.RWMutex
	units    map[int][]models.DocumentSuggestion
	outcomes map[int]models.UnitOutcome
	logger   arbor.ILogger
}

// NewSuggestionStore creates an empty store
func NewSuggestionStore(logger arbor.ILogger) *SuggestionStore {
	return &SuggestionStore{
		units:    make(map[int][]models.DocumentSuggestion),
		outcomes: make(map[int]models.UnitOutcome),
		logger:   logger,
	}
}

// RecordUnitSuggestions replaces the suggestion list for a unit.
// A later call for the same unit fully supersedes the earlier one.
func (s *SuggestionStore) RecordUnitSuggestions(unit int, suggestions []models.DocumentSuggestion) {
	list := make([]models.DocumentSuggestion, len(suggestions))
	copy(list, suggestions)
	for i := range list {
		list[i].Coordinates.Unit = unit
	}

	s.mu.Lock()
	s.units[unit] = list
	s.outcomes[unit] = models.UnitOutcome{
		Unit:            unit,
		State:           models.UnitAnalyzed,
		SuggestionCount: len(list),
	}
	s.mu.Unlock()

	s.logger.Debug().
		Int("unit", unit).
		Int("suggestions", len(list)).
		Msg("Recorded unit suggestions")
}

// RecordUnitFailure marks a unit as failed and clears its suggestions.
// No substitute suggestions are created.
func (s *SuggestionStore) RecordUnitFailure(unit int, reason string) {
	s.mu.Lock()
	s.units[unit] = []models.DocumentSuggestion{}
	s.outcomes[unit] = models.UnitOutcome{
		Unit:  unit,
		State: models.UnitFailed,
		Error: reason,
	}
	s.mu.Unlock()

	s.logger.Warn().
		Int("unit", unit).
		Str("reason", reason).
		Msg("Recorded unit failure")
}

// ToggleAcceptance flips a suggestion's accepted flag.
// Unknown units or ids are ignored: the UI may hold ids from a unit being reprocessed.
func (s *SuggestionStore) ToggleAcceptance(unit int, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.units[unit]
	for i := range list {
		if list[i].ID == id {
			list[i].Toggle()
			return true
		}
	}

	s.logger.Debug().
		Int("unit", unit).
		Str("id", id).
		Msg("Ignoring toggle for unknown suggestion")
	return false
}

// AcceptAll accepts every suggestion in every unit
func (s *SuggestionStore) AcceptAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for unit := range s.units {
		acceptList(s.units[unit])
	}
}

// AcceptUnit accepts every suggestion of one unit
func (s *SuggestionStore) AcceptUnit(unit int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acceptList(s.units[unit])
}

// RejectAll clears acceptance on every suggestion
func (s *SuggestionStore) RejectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, list := range s.units {
		for i := range list {
			list[i].Accepted = false
		}
	}
}

func acceptList(list []models.DocumentSuggestion) {
	for i := range list {
		list[i].Accepted = true
	}
}

// Total returns the number of suggestions across all units
func (s *SuggestionStore) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, list := range s.units {
		total += len(list)
	}
	return total
}

// AcceptedCount returns the number of accepted suggestions
func (s *SuggestionStore) AcceptedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, list := range s.units {
		for _, sg := range list {
			if sg.Accepted {
				count++
			}
		}
	}
	return count
}

// UnitSuggestions returns a copy of one unit's suggestions in insertion order
func (s *SuggestionStore) UnitSuggestions(unit int) []models.DocumentSuggestion {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.units[unit]
	out := make([]models.DocumentSuggestion, len(list))
	copy(out, list)
	return out
}

// SortedByUnit returns every suggestion, units ascending, insertion order within a unit
func (s *SuggestionStore) SortedByUnit() []models.DocumentSuggestion {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.DocumentSuggestion
	for _, unit := range s.sortedUnits() {
		out = append(out, s.units[unit]...)
	}
	return out
}

// Accepted returns the accepted suggestions in unit order
func (s *SuggestionStore) Accepted() []models.DocumentSuggestion {
	var out []models.DocumentSuggestion
	for _, sg := range s.SortedByUnit() {
		if sg.Accepted {
			out = append(out, sg)
		}
	}
	return out
}

// ByCategory groups suggestions by category, preserving unit order within each group
func (s *SuggestionStore) ByCategory() map[models.Category][]models.DocumentSuggestion {
	groups := make(map[models.Category][]models.DocumentSuggestion)
	for _, sg := range s.SortedByUnit() {
		groups[sg.Category] = append(groups[sg.Category], sg)
	}
	return groups
}

// Find looks a suggestion up by id
func (s *SuggestionStore) Find(id string) (models.DocumentSuggestion, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, list := range s.units {
		for _, sg := range list {
			if sg.ID == id {
				return sg, true
			}
		}
	}
	return models.DocumentSuggestion{}, false
}

// Outcome returns the recorded outcome for a unit
func (s *SuggestionStore) Outcome(unit int) (models.UnitOutcome, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	outcome, ok := s.outcomes[unit]
	return outcome, ok
}

// Outcomes returns all unit outcomes in ascending unit order
func (s *SuggestionStore) Outcomes() []models.UnitOutcome {
	s.mu.RLock()
	defer s.mu.RUnlock()

	units := make([]int, 0, len(s.outcomes))
	for unit := range s.outcomes {
		units = append(units, unit)
	}
	sort.Ints(units)

	out := make([]models.UnitOutcome, 0, len(units))
	for _, unit := range units {
		out = append(out, s.outcomes[unit])
	}
	return out
}

// sortedUnits must be called with the lock held
func (s *SuggestionStore) sortedUnits() []int {
	units := make([]int, 0, len(s.units))
	for unit := range s.units {
		units = append(units, unit)
	}
	sort.Ints(units)
	return units
}
