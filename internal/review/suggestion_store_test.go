package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/kaitorecca/guardian-redact/internal/models"
)

func suggestion(unit, index int, category models.Category, confidence float64) models.DocumentSuggestion {
	return models.DocumentSuggestion{
		ID:          models.NewSuggestionID(unit, index),
		Text:        "text",
		Confidence:  confidence,
		Category:    category,
		Coordinates: models.Coordinates{Unit: unit, X: 10, Y: 20, Width: 30, Height: 12},
	}
}

func TestRecordUnitSuggestions_Idempotent(t *testing.T) {
	store := NewSuggestionStore(arbor.NewNoOpLogger())
	batch := []models.DocumentSuggestion{
		suggestion(1, 0, models.CategoryPII, 0.9),
		suggestion(1, 1, models.CategoryContact, 0.8),
	}

	store.RecordUnitSuggestions(1, batch)
	once := store.SortedByUnit()
	store.RecordUnitSuggestions(1, batch)

	assert.Equal(t, once, store.SortedByUnit())
	assert.Equal(t, 2, store.Total())
}

func TestRecordUnitSuggestions_SupersedesEarlierCall(t *testing.T) {
	store := NewSuggestionStore(arbor.NewNoOpLogger())
	store.RecordUnitSuggestions(1, []models.DocumentSuggestion{suggestion(1, 0, models.CategoryPII, 0.9)})
	store.AcceptUnit(1)

	store.RecordUnitSuggestions(1, []models.DocumentSuggestion{
		suggestion(1, 0, models.CategoryLegal, 0.5),
		suggestion(1, 1, models.CategoryLegal, 0.5),
	})

	list := store.UnitSuggestions(1)
	require.Len(t, list, 2)
	assert.False(t, list[0].Accepted)
	assert.Equal(t, models.CategoryLegal, list[0].Category)
}

func TestRecordUnitSuggestions_CopiesInput(t *testing.T) {
	store := NewSuggestionStore(arbor.NewNoOpLogger())
	batch := []models.DocumentSuggestion{suggestion(1, 0, models.CategoryPII, 0.9)}
	store.RecordUnitSuggestions(1, batch)

	batch[0].Accepted = true
	assert.Equal(t, 0, store.AcceptedCount())

	out := store.UnitSuggestions(1)
	out[0].Accepted = true
	assert.Equal(t, 0, store.AcceptedCount())
}

func TestToggleAcceptance(t *testing.T) {
	store := NewSuggestionStore(arbor.NewNoOpLogger())
	store.RecordUnitSuggestions(2, []models.DocumentSuggestion{suggestion(2, 0, models.CategoryPII, 0.9)})
	id := models.NewSuggestionID(2, 0)

	assert.True(t, store.ToggleAcceptance(2, id))
	assert.Equal(t, 1, store.AcceptedCount())

	assert.True(t, store.ToggleAcceptance(2, id))
	assert.Equal(t, 0, store.AcceptedCount())
}

func TestToggleAcceptance_UnknownTargetsIgnored(t *testing.T) {
	store := NewSuggestionStore(arbor.NewNoOpLogger())
	store.RecordUnitSuggestions(1, []models.DocumentSuggestion{suggestion(1, 0, models.CategoryPII, 0.9)})

	tests := []struct {
		name string
		unit int
		id   string
	}{
		{"unknown id", 1, "page_1_redaction_99"},
		{"unknown unit", 7, models.NewSuggestionID(1, 0)},
		{"empty id", 1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.False(t, store.ToggleAcceptance(tt.unit, tt.id))
			})
			assert.Equal(t, 0, store.AcceptedCount())
		})
	}
}

func TestAcceptAllAndAcceptUnit_NeverUnaccept(t *testing.T) {
	store := NewSuggestionStore(arbor.NewNoOpLogger())
	store.RecordUnitSuggestions(1, []models.DocumentSuggestion{
		suggestion(1, 0, models.CategoryPII, 0.9),
		suggestion(1, 1, models.CategoryPII, 0.9),
	})
	store.RecordUnitSuggestions(2, []models.DocumentSuggestion{suggestion(2, 0, models.CategoryPII, 0.9)})

	store.ToggleAcceptance(1, models.NewSuggestionID(1, 0))
	store.AcceptUnit(1)
	assert.Equal(t, 2, store.AcceptedCount())
	assert.False(t, store.UnitSuggestions(2)[0].Accepted)

	store.AcceptAll()
	assert.Equal(t, 3, store.AcceptedCount())
	store.AcceptAll()
	assert.Equal(t, 3, store.AcceptedCount())
}

func TestRejectAll(t *testing.T) {
	store := NewSuggestionStore(arbor.NewNoOpLogger())
	store.RecordUnitSuggestions(1, []models.DocumentSuggestion{suggestion(1, 0, models.CategoryPII, 0.9)})
	store.AcceptAll()
	store.RejectAll()
	assert.Equal(t, 0, store.AcceptedCount())
	assert.Equal(t, 1, store.Total())
}

func TestSortedByUnit_Ordering(t *testing.T) {
	store := NewSuggestionStore(arbor.NewNoOpLogger())
	// Recorded out of order, with low confidence first inside a unit
	store.RecordUnitSuggestions(3, []models.DocumentSuggestion{suggestion(3, 0, models.CategoryPII, 0.5)})
	store.RecordUnitSuggestions(1, []models.DocumentSuggestion{
		suggestion(1, 0, models.CategoryMedical, 0.2),
		suggestion(1, 1, models.CategoryFinancial, 0.99),
	})
	store.RecordUnitSuggestions(2, []models.DocumentSuggestion{})

	var ids []string
	for _, sg := range store.SortedByUnit() {
		ids = append(ids, sg.ID)
	}
	assert.Equal(t, []string{"page_1_redaction_0", "page_1_redaction_1", "page_3_redaction_0"}, ids)
}

func TestByCategory(t *testing.T) {
	store := NewSuggestionStore(arbor.NewNoOpLogger())
	store.RecordUnitSuggestions(2, []models.DocumentSuggestion{suggestion(2, 0, models.CategoryPII, 0.5)})
	store.RecordUnitSuggestions(1, []models.DocumentSuggestion{
		suggestion(1, 0, models.CategoryPII, 0.5),
		suggestion(1, 1, models.CategoryContact, 0.5),
	})

	groups := store.ByCategory()
	require.Len(t, groups[models.CategoryPII], 2)
	assert.Equal(t, "page_1_redaction_0", groups[models.CategoryPII][0].ID)
	assert.Equal(t, "page_2_redaction_0", groups[models.CategoryPII][1].ID)
	assert.Len(t, groups[models.CategoryContact], 1)
}

func TestQueriesReflectLatestMutation(t *testing.T) {
	store := NewSuggestionStore(arbor.NewNoOpLogger())
	store.RecordUnitSuggestions(1, []models.DocumentSuggestion{suggestion(1, 0, models.CategoryPII, 0.5)})
	assert.Equal(t, 0, len(store.Accepted()))

	store.ToggleAcceptance(1, models.NewSuggestionID(1, 0))
	assert.Equal(t, 1, len(store.Accepted()))
	assert.True(t, store.ByCategory()[models.CategoryPII][0].Accepted)
}

func TestRecordUnitFailure_ExplicitMarker(t *testing.T) {
	store := NewSuggestionStore(arbor.NewNoOpLogger())
	store.RecordUnitSuggestions(2, []models.DocumentSuggestion{suggestion(2, 0, models.CategoryPII, 0.5)})
	store.RecordUnitFailure(2, "model unavailable")

	outcome, ok := store.Outcome(2)
	require.True(t, ok)
	assert.Equal(t, models.UnitFailed, outcome.State)
	assert.Equal(t, "model unavailable", outcome.Error)
	assert.Empty(t, store.UnitSuggestions(2))

	// A later successful run clears the marker
	store.RecordUnitSuggestions(2, nil)
	outcome, _ = store.Outcome(2)
	assert.Equal(t, models.UnitAnalyzed, outcome.State)
	assert.Empty(t, outcome.Error)
}

func TestOutcomes_Ascending(t *testing.T) {
	store := NewSuggestionStore(arbor.NewNoOpLogger())
	store.RecordUnitFailure(3, "x")
	store.RecordUnitSuggestions(1, nil)
	store.RecordUnitSuggestions(2, nil)

	outcomes := store.Outcomes()
	require.Len(t, outcomes, 3)
	for i, o := range outcomes {
		assert.Equal(t, i+1, o.Unit)
	}
}
