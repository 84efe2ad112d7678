package review

import (
	"sync"

	"github.com/kaitorecca/guardian-redact/internal/models"
)

// AudioSurface receives playback commands for the waveform renderer
type AudioSurface interface {
	Seek(seconds float64)
	SetVolume(volume float64)
	RenderRegions(actions []models.RedactionAction)
}

// PlayerState is a snapshot of the audio surface as last reported
type PlayerState struct {
	Ready    bool    `json:"ready"`
	Duration float64 `json:"duration"`
	Time     float64 `json:"time"`
	Playing  bool    `json:"playing"`
	Volume   float64 `json:"volume"`
}

// AudioPlayer tracks waveform events and forwards drag selections to the region selector
type AudioPlayer struct {
	mu      sync.RWMutex
	state   PlayerState
	surface AudioSurface
	regions *RegionSelector
}

// NewAudioPlayer creates a player bound to a region selector
func NewAudioPlayer(regions *RegionSelector) *AudioPlayer {
	return &AudioPlayer{
		state:   PlayerState{Volume: 1.0},
		regions: regions,
	}
}

// SetSurface attaches the renderer that receives seek/volume/region commands
func (p *AudioPlayer) SetSurface(surface AudioSurface) {
	p.mu.Lock()
	p.surface = surface
	p.mu.Unlock()
}

// Ready records the loaded audio duration
func (p *AudioPlayer) Ready(duration float64) {
	p.mu.Lock()
	p.state.Ready = true
	p.state.Duration = duration
	p.state.Time = 0
	p.mu.Unlock()
}

// TimeUpdate records the playback position
func (p *AudioPlayer) TimeUpdate(t float64) {
	p.mu.Lock()
	p.state.Time = t
	p.mu.Unlock()
}

// PlayStateChanged records whether audio is playing
func (p *AudioPlayer) PlayStateChanged(playing bool) {
	p.mu.Lock()
	p.state.Playing = playing
	p.mu.Unlock()
}

// RegionDragged starts a new pending region over the dragged range
func (p *AudioPlayer) RegionDragged(start, end float64) models.SelectedRegion {
	return p.regions.Begin(models.MediumAudio, 0, p.clamp(start), p.clamp(end))
}

// Seek moves playback, clamped to the known duration
func (p *AudioPlayer) Seek(t float64) {
	t = p.clamp(t)

	p.mu.Lock()
	p.state.Time = t
	surface := p.surface
	p.mu.Unlock()

	if surface != nil {
		surface.Seek(t)
	}
}

// SetVolume sets playback volume in 0..1
func (p *AudioPlayer) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}

	p.mu.Lock()
	p.state.Volume = v
	surface := p.surface
	p.mu.Unlock()

	if surface != nil {
		surface.SetVolume(v)
	}
}

// RenderRegions pushes the current action list to the surface
func (p *AudioPlayer) RenderRegions(actions []models.RedactionAction) {
	p.mu.RLock()
	surface := p.surface
	p.mu.RUnlock()

	if surface != nil {
		surface.RenderRegions(actions)
	}
}

// State returns a snapshot of the player
func (p *AudioPlayer) State() PlayerState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *AudioPlayer) clamp(t float64) float64 {
	p.mu.RLock()
	duration := p.state.Duration
	p.mu.RUnlock()

	if t < 0 {
		return 0
	}
	if duration > 0 && t > duration {
		return duration
	}
	return t
}
