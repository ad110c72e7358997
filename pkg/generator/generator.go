// Package generator implements the polymorphic per-model renderer: dense
// models are read directly and panned into the target channel layout,
// sparse and note models drive a shared ClipMixer (or an optional plugin
// synth) with note-on/note-off scheduling.
package generator

import (
	"math"
	"sort"

	"github.com/drgolem/playcore/pkg/clipmixer"
	"github.com/drgolem/playcore/pkg/model"
	"github.com/drgolem/playcore/pkg/panlaw"
	"github.com/drgolem/playcore/pkg/plugin"
)

// PluginBlockSize is the compile-time power-of-two block size frameCount
// must be a multiple of.
const PluginBlockSize = 1024

type pendingOff struct {
	frame   uint64
	voiceID uint64
	pitch   int // plugin-path note-off identity; unused by the ClipMixer path
}

type modelState struct {
	pendingOffs  []pendingOff
	pluginLoaded bool
	pluginFailed bool
}

// AudioGenerator dispatches mixModel calls by model variant, maintaining
// per-model note-off scheduling state and a shared ClipMixer for sparse and
// note models with no working plugin.
type AudioGenerator struct {
	params  model.ParametersProvider
	clip    *clipmixer.ClipMixer
	host    plugin.Host
	targetChannels int

	states map[model.Model]*modelState
}

// New builds a generator. clip may be nil (no sample clip loaded — sparse and
// note models then render silence, per the ClipLoadFailed policy). host may
// be nil, in which case plugin.NopHost{} is used.
func New(params model.ParametersProvider, clip *clipmixer.ClipMixer, host plugin.Host) *AudioGenerator {
	if host == nil {
		host = plugin.NopHost{}
	}
	return &AudioGenerator{
		params:         params,
		clip:           clip,
		host:           host,
		targetChannels: 2,
		states:         make(map[model.Model]*modelState),
	}
}

// SetTargetChannelCount reconfigures the pan mapping used for dense models
// and the clip mixer's output channel layout.
func (g *AudioGenerator) SetTargetChannelCount(n int) {
	g.targetChannels = n
}

// Reset clears all pending note-off sets and per-model scheduling state.
// Voices already sounding in the clip mixer and any plugin state are left
// as they are.
func (g *AudioGenerator) Reset() {
	g.states = make(map[model.Model]*modelState)
}

// RemoveModel drops any per-model scheduling state for m. Idempotent: safe
// to call multiple times or for a model never added.
func (g *AudioGenerator) RemoveModel(m model.Model) {
	delete(g.states, m)
}

func (g *AudioGenerator) stateFor(m model.Model) *modelState {
	st, ok := g.states[m]
	if !ok {
		st = &modelState{}
		g.states[m] = st
	}
	return st
}

// MixModel renders up to frameCount frames of m starting at startFrame into
// outputs, adding in place (never overwriting). fadeIn/fadeOut are envelope
// lengths in frames applied at caller-supplied boundaries for dense models
// (e.g. loop stitching). Returns the number of frames actually rendered,
// which is frameCount unless m ends first.
func (g *AudioGenerator) MixModel(m model.Model, startFrame uint64, frameCount int, outputs [][]float32, fadeIn, fadeOut int) (int, error) {
	if frameCount <= 0 {
		return 0, nil
	}
	params := g.params.Get(m)
	if params.Mute {
		return frameCount, nil
	}

	switch dm := m.(type) {
	case model.DenseModel:
		return g.mixDense(dm, params, startFrame, frameCount, outputs, fadeIn, fadeOut)
	case model.NoteModel:
		g.mixNote(dm, params, startFrame, frameCount, outputs)
		return frameCount, nil
	case model.SparseModel:
		g.mixSparse(dm, params, startFrame, frameCount, outputs)
		return frameCount, nil
	default:
		return frameCount, nil
	}
}

func (g *AudioGenerator) mixDense(dm model.DenseModel, params model.PlayParameters, startFrame uint64, frameCount int, outputs [][]float32, fadeIn, fadeOut int) (int, error) {
	srcChannels := dm.ChannelCount()
	if srcChannels <= 0 || len(outputs) != g.targetChannels {
		return frameCount, nil
	}

	scratch := make([]float32, frameCount)
	rendered := frameCount

	for srcCh := 0; srcCh < srcChannels; srcCh++ {
		n, err := dm.GetData(srcCh, startFrame, scratch)
		if err != nil {
			continue
		}
		if n < rendered {
			rendered = n
		}
		applyEdgeFades(scratch[:n], fadeIn, fadeOut)

		pan := float32(0)
		if srcChannels == 1 {
			pan = params.Pan
		}
		for dstCh := 0; dstCh < len(outputs); dstCh++ {
			g := params.Gain
			if srcChannels == 1 {
				g *= panlaw.Gain(pan, dstCh, len(outputs))
			} else if dstCh != srcCh && len(outputs) == srcChannels {
				continue // passthrough: channel N only contributes to output N
			}
			out := outputs[dstCh]
			for i := 0; i < n && i < len(out); i++ {
				out[i] += scratch[i] * g
			}
		}
	}

	return rendered, nil
}

func applyEdgeFades(buf []float32, fadeIn, fadeOut int) {
	for i := 0; i < fadeIn && i < len(buf); i++ {
		buf[i] *= float32(i) / float32(fadeIn)
	}
	for i := 0; i < fadeOut && i < len(buf); i++ {
		idx := len(buf) - 1 - i
		buf[idx] *= float32(i) / float32(fadeOut)
	}
}

func (g *AudioGenerator) mixSparse(sm model.SparseModel, params model.PlayParameters, startFrame uint64, frameCount int, outputs [][]float32) {
	if g.clip == nil {
		return
	}
	end := startFrame + uint64(frameCount)
	points := sm.GetPoints(startFrame, end)
	if len(points) == 0 {
		return
	}

	starts := make([]clipmixer.NoteStart, len(points))
	for i, p := range points {
		starts[i] = clipmixer.NoteStart{
			FrameOffset: int(p.Frame - startFrame),
			Level:       p.Level,
			Pan:         params.Pan,
			Frequency:   g.clip.ReferencePitch(),
		}
	}
	g.clip.Mix(outputs, params.Gain, starts, nil)
}

func (g *AudioGenerator) mixNote(nm model.NoteModel, params model.PlayParameters, startFrame uint64, frameCount int, outputs [][]float32) {
	st := g.stateFor(nm)
	end := startFrame + uint64(frameCount)

	if params.PluginID != "" && g.runPlugin(st, params, nm, startFrame, frameCount, outputs) {
		return
	}
	if g.clip == nil {
		return
	}

	var ends []clipmixer.NoteEnd
	remaining := st.pendingOffs[:0]
	for _, off := range st.pendingOffs {
		if off.frame >= startFrame && off.frame < end {
			ends = append(ends, clipmixer.NoteEnd{VoiceID: off.voiceID, FrameOffset: int(off.frame - startFrame)})
		} else {
			remaining = append(remaining, off)
		}
	}
	st.pendingOffs = remaining

	notes := nm.GetNotes(startFrame, end)
	starts := make([]clipmixer.NoteStart, len(notes))
	for i, n := range notes {
		starts[i] = clipmixer.NoteStart{
			FrameOffset: int(n.Frame - startFrame),
			Level:       n.Velocity,
			Pan:         params.Pan,
			Frequency:   pitchToFrequency(n.Pitch),
		}
	}

	ids := g.clip.Mix(outputs, params.Gain, starts, ends)
	for i, n := range notes {
		st.pendingOffs = append(st.pendingOffs, pendingOff{frame: n.Frame + n.Duration, voiceID: ids[i]})
	}
	sort.Slice(st.pendingOffs, func(i, j int) bool { return st.pendingOffs[i].frame < st.pendingOffs[j].frame })
}

// runPlugin attempts to render nm's notes through the plugin host. Returns
// false (caller falls back to the clip mixer) if no plugin is loaded or
// loading fails.
func (g *AudioGenerator) runPlugin(st *modelState, params model.PlayParameters, nm model.NoteModel, startFrame uint64, frameCount int, outputs [][]float32) bool {
	if st.pluginFailed {
		return false
	}
	if !st.pluginLoaded {
		if err := g.host.Load(params.PluginID, params.Program); err != nil {
			st.pluginFailed = true
			return false
		}
		st.pluginLoaded = true
	}

	end := startFrame + uint64(frameCount)

	remaining := st.pendingOffs[:0]
	events := make([]plugin.Event, 0, len(st.pendingOffs))
	for _, off := range st.pendingOffs {
		if off.frame >= startFrame && off.frame < end {
			events = append(events, plugin.Event{
				FrameOffset: int(off.frame - startFrame),
				Pitch:       off.pitch,
				NoteOn:      false,
			})
		} else {
			remaining = append(remaining, off)
		}
	}
	st.pendingOffs = remaining

	notes := nm.GetNotes(startFrame, end)
	for _, n := range notes {
		events = append(events, plugin.Event{
			FrameOffset: int(n.Frame - startFrame),
			Pitch:       n.Pitch,
			Velocity:    n.Velocity,
			NoteOn:      true,
		})
		st.pendingOffs = append(st.pendingOffs, pendingOff{frame: n.Frame + n.Duration, pitch: n.Pitch})
	}
	sort.Slice(st.pendingOffs, func(i, j int) bool { return st.pendingOffs[i].frame < st.pendingOffs[j].frame })

	ok, err := g.host.Run(frameCount, events, outputs)
	if err != nil || !ok {
		st.pluginFailed = true
		return false
	}
	return true
}

// pitchToFrequency converts a MIDI note number to Hz (A4 = pitch 69 = 440Hz).
func pitchToFrequency(pitch int) float64 {
	return 440 * math.Pow(2, float64(pitch-69)/12)
}
