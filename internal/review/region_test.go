package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaitorecca/guardian-redact/internal/models"
)

func TestRegionSelector_SinglePendingRegion(t *testing.T) {
	selector := NewRegionSelector(newTestEngine())

	selector.Begin(models.MediumAudio, 1, 1, 2)
	selector.Begin(models.MediumAudio, 1, 6, 4)

	region, ok := selector.Pending()
	require.True(t, ok)
	assert.Equal(t, models.SelectedRegion{Medium: models.MediumAudio, Unit: 1, Start: 4, End: 6}, region)
}

func TestRegionSelector_Promote(t *testing.T) {
	engine := newTestEngine()
	selector := NewRegionSelector(engine)

	_, err := selector.Promote(models.TreatmentBeep)
	assert.ErrorIs(t, err, ErrNoPendingRegion)

	selector.Begin(models.MediumAudio, 1, 2.5, 4.0)
	action, err := selector.Promote(models.TreatmentSilence)
	require.NoError(t, err)
	assert.True(t, action.Manual())
	assert.Equal(t, 2.5, action.StartTime)
	assert.Equal(t, models.TreatmentSilence, action.Action)
	assert.Len(t, engine.Actions(), 1)

	_, ok := selector.Pending()
	assert.False(t, ok)
}

func TestRegionSelector_PromoteFailureKeepsRegion(t *testing.T) {
	selector := NewRegionSelector(newTestEngine())
	selector.Begin(models.MediumAudio, 1, 3, 3)

	_, err := selector.Promote(models.TreatmentBeep)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, ok := selector.Pending()
	assert.True(t, ok)
}

func TestRegionSelector_UnitChanged(t *testing.T) {
	selector := NewRegionSelector(newTestEngine())
	selector.Begin(models.MediumDocument, 2, 10, 20)

	selector.UnitChanged(2)
	_, ok := selector.Pending()
	assert.True(t, ok)

	selector.UnitChanged(3)
	_, ok = selector.Pending()
	assert.False(t, ok)
}

func TestRegionSelector_Cancel(t *testing.T) {
	selector := NewRegionSelector(newTestEngine())
	selector.Begin(models.MediumAudio, 1, 1, 2)
	selector.Cancel()
	_, ok := selector.Pending()
	assert.False(t, ok)
}

func TestRegionSelector_UnitChangedKeepsAudioRegion(t *testing.T) {
	selector := NewRegionSelector(newTestEngine())
	selector.Begin(models.MediumAudio, 0, 10, 20)

	selector.UnitChanged(3)
	region, ok := selector.Pending()
	require.True(t, ok)
	assert.Equal(t, models.MediumAudio, region.Medium)
}
