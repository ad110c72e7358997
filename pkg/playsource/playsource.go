// Package playsource implements the real-time multi-model audio callback
// source: a control-thread API for managing the active model set and device
// configuration, a fill thread that renders mixed audio ahead of need into a
// pair of shared ring buffers, and a lock-free getSourceSamples callback the
// device driver pulls from.
package playsource

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/drgolem/playcore/pkg/clipmixer"
	"github.com/drgolem/playcore/pkg/generator"
	"github.com/drgolem/playcore/pkg/model"
	"github.com/drgolem/playcore/pkg/plugin"
	"github.com/drgolem/playcore/pkg/ringbufvec"
	"github.com/drgolem/playcore/pkg/scavenger"
	"github.com/drgolem/playcore/pkg/stretcher"
)

// MinUnderrunThreshold is the readSpace floor below which getSourceSamples
// gives up immediately rather than delivering a tiny partial block.
const MinUnderrunThreshold = 64

// resamplerBank is the RT-callback-owned resampler state, swapped as a unit
// on reconfigure via an atomic pointer so the callback never takes the
// play-source mutex.
type resamplerBank struct {
	r       []*linearResampler
	scratch [][]float32
}

// AudioCallbackPlaySource mixes an active set of Models into per-channel
// ring buffers on a fill thread and serves them to a real-time device
// callback via getSourceSamples. There is no separate event-emitter base
// type; subscription is an explicit method set.
type AudioCallbackPlaySource struct {
	mu   sync.Mutex
	cond *sync.Cond

	models    []model.Model
	memberSet map[model.Model]struct{}

	gen *generator.AudioGenerator

	holder  *ringbufvec.Holder
	bufScav *scavenger.Scavenger[*ringbufvec.Vector]

	stretch     *stretcher.ChannelSet // fill-thread owned, guarded by mu
	stretchScav *scavenger.Scavenger[*stretcher.ChannelSet]

	resamplers atomic.Pointer[resamplerBank] // callback-owned, swapped on reconfigure

	writeFrame uint64 // fill thread's model-time cursor, guarded by mu
	endedFired bool   // guarded by mu

	sourceSampleRate  atomic.Int64
	targetSampleRate  atomic.Int64
	targetBlockSize   atomic.Int64
	targetPlayLatency atomic.Int64
	channels          atomic.Int32
	slowdownFactor    atomic.Int32
	stretcherLatency  atomic.Int64
	lastModelEnd      atomic.Uint64

	playing        atomic.Bool
	exiting        atomic.Bool
	readBufferFill atomic.Uint64

	metrics metrics

	mismatch bus[MismatchEvent]
	warning  bus[Warning]
	ended    bus[struct{}]

	fillDone chan struct{}

	// fill-thread scratch, guarded by mu, resized on reconfigure.
	mixScratch    [][]float32
	stretchIn     [][]float64
	stretchOut    [][]float64
	stretchOutF32 [][]float32
}

// New builds a play source with a default block size of 1024 frames, a
// 44100Hz target rate, and a stereo output layout. clip may be nil (no
// sample clip loaded yet); host may be nil (no plugin synth available).
func New(params model.ParametersProvider, clip *clipmixer.ClipMixer, host plugin.Host) *AudioCallbackPlaySource {
	s := &AudioCallbackPlaySource{
		memberSet:   make(map[model.Model]struct{}),
		gen:         generator.New(params, clip, host),
		bufScav:     scavenger.New[*ringbufvec.Vector](0),
		stretchScav: scavenger.New[*stretcher.ChannelSet](0),
		fillDone:    make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	s.targetBlockSize.Store(1024)
	s.targetSampleRate.Store(44100)
	s.channels.Store(2)
	s.slowdownFactor.Store(1)
	s.gen.SetTargetChannelCount(2)

	s.holder = ringbufvec.NewHolder(ringbufvec.New(2, ringBufferCapacity(1024, 1)), s.bufScav)
	s.rebuildResamplersLocked()

	go s.fillLoop()
	return s
}

func ringBufferCapacity(blockSize, factor int) uint64 {
	if factor < 1 {
		factor = 1
	}
	// +1 for the slot the ring buffer keeps empty.
	return uint64(2*blockSize*factor) + 1
}

// AddModel adds m to the active mix set. The first model added establishes
// the source sample rate; later additions with a differing rate are
// rejected and reported via OnSampleRateMismatch.
func (s *AudioCallbackPlaySource) AddModel(m model.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.memberSet[m]; ok {
		return nil
	}

	rate := m.SampleRate()
	if s.sourceSampleRate.Load() == 0 {
		if rate <= 0 {
			return ErrNoSourceRate
		}
		s.sourceSampleRate.Store(int64(rate))
		s.rebuildResamplersLocked()
	} else if int64(rate) != s.sourceSampleRate.Load() {
		s.mismatch.emit(MismatchEvent{Model: m, GotRate: rate, WantRate: int(s.sourceSampleRate.Load())})
		return ErrSampleRateMismatch
	}

	s.models = append(s.models, m)
	s.memberSet[m] = struct{}{}
	if e := m.EndFrame(); e > s.lastModelEnd.Load() {
		s.lastModelEnd.Store(e)
	}
	s.endedFired = false
	return nil
}

// RemoveModel drops m from the active mix set and its generator scheduling
// state. Safe to call for a model not present, or more than once
// (idempotent removal).
func (s *AudioCallbackPlaySource) RemoveModel(m model.Model) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.memberSet[m]; !ok {
		return
	}
	delete(s.memberSet, m)
	for i, mm := range s.models {
		if mm == m {
			s.models = append(s.models[:i], s.models[i+1:]...)
			break
		}
	}
	s.gen.RemoveModel(m)
	s.recomputeEndLocked()
}

// ClearModels removes every active model.
func (s *AudioCallbackPlaySource) ClearModels() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.models {
		s.gen.RemoveModel(m)
	}
	s.models = nil
	s.memberSet = make(map[model.Model]struct{})
	s.lastModelEnd.Store(0)
}

func (s *AudioCallbackPlaySource) recomputeEndLocked() {
	var end uint64
	for _, m := range s.models {
		if e := m.EndFrame(); e > end {
			end = e
		}
	}
	s.lastModelEnd.Store(end)
}

// Play starts (or resumes) playback from startFrame. The next
// getSourceSamples call reflects playback from frame >= startFrame, possibly
// with initial zero-padding while the fill thread catches up.
func (s *AudioCallbackPlaySource) Play(startFrame uint64) {
	s.mu.Lock()
	s.writeFrame = startFrame
	s.endedFired = false
	s.reconfigureBuffersLocked() // drop audio buffered for the previous position
	s.mu.Unlock()

	s.readBufferFill.Store(startFrame)
	s.playing.Store(true)

	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Stop halts playback. isPlaying() observes false before Stop returns; at
// most one further getSourceSamples call may deliver residual ring-buffer
// content.
func (s *AudioCallbackPlaySource) Stop() {
	s.playing.Store(false)
	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
}

// IsPlaying is a plain atomic read, safe from any thread.
func (s *AudioCallbackPlaySource) IsPlaying() bool {
	return s.playing.Load()
}

// GetCurrentPlayingFrame estimates the model-time frame currently reaching
// the device, accounting for target latency and stretcher latency. The
// linear resampler's own latency is a fraction of a sample and is treated as
// zero here. Callable from any thread.
func (s *AudioCallbackPlaySource) GetCurrentPlayingFrame() uint64 {
	factor := int64(s.slowdownFactor.Load())
	if factor < 1 {
		factor = 1
	}
	consumed := s.readBufferFill.Load() / uint64(factor)
	lat := uint64(s.targetPlayLatency.Load()) + uint64(s.stretcherLatency.Load())

	var pos uint64
	if consumed > lat {
		pos = consumed - lat
	}
	if end := s.lastModelEnd.Load(); end > 0 && pos > end {
		return end
	}
	return pos
}

// SetTargetBlockSize sets the maximum frames the device requests per
// callback, reallocating ring buffers under the mutex.
func (s *AudioCallbackPlaySource) SetTargetBlockSize(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.targetBlockSize.Store(int64(n))
	s.reconfigureBuffersLocked()
	s.mu.Unlock()
}

// SetTargetPlayLatency sets the frame offset subtracted in
// GetCurrentPlayingFrame.
func (s *AudioCallbackPlaySource) SetTargetPlayLatency(frames int) {
	if frames < 0 {
		frames = 0
	}
	s.targetPlayLatency.Store(int64(frames))
}

// SetTargetSampleRate sets the device output rate, rebuilding the callback
// resamplers if it now differs from the source rate.
func (s *AudioCallbackPlaySource) SetTargetSampleRate(rate int) {
	if rate <= 0 {
		return
	}
	s.mu.Lock()
	s.targetSampleRate.Store(int64(rate))
	s.rebuildResamplersLocked()
	s.mu.Unlock()
}

// SetOutputChannelCount sets the mix target channel layout, reallocating
// ring buffers and the generator's pan mapping.
func (s *AudioCallbackPlaySource) SetOutputChannelCount(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.channels.Store(int32(n))
	s.gen.SetTargetChannelCount(n)
	s.reconfigureBuffersLocked()
	s.rebuildResamplersLocked()
	s.mu.Unlock()
}

// SetSlowdownFactor installs (F>1) or removes (F=1) a time-stretcher chain.
// The previous stretcher, if any, is handed to the scavenger rather than
// freed immediately.
func (s *AudioCallbackPlaySource) SetSlowdownFactor(f int) error {
	if f < 1 {
		return fmt.Errorf("playsource: slowdown factor must be >= 1, got %d", f)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if int(s.slowdownFactor.Load()) == f {
		return nil
	}

	if s.stretch != nil {
		s.stretchScav.Claim(s.stretch)
		s.stretch = nil
	}
	s.stretcherLatency.Store(0)

	if f > 1 {
		cs, err := stretcher.NewChannelSet(int(s.channels.Load()), f, int(s.targetBlockSize.Load()))
		if err != nil {
			s.warning.emit(Warning{Message: "slowdown factor rejected", Err: err})
			return err
		}
		s.stretch = cs
		s.stretcherLatency.Store(int64(cs.Latency()))
	}

	s.slowdownFactor.Store(int32(f))
	s.reconfigureBuffersLocked()
	return nil
}

// reconfigureBuffersLocked implements the buffer lifecycle on reconfigure:
// allocate a fresh ring buffer vector and swap it in. readBuffers and
// writeBuffers are the same instance by design (the holder
// has one active Vector, not a read/write pair), so a single Holder.Swap
// covers both of the source's claim() calls.
func (s *AudioCallbackPlaySource) reconfigureBuffersLocked() {
	channels := int(s.channels.Load())
	blockSize := int(s.targetBlockSize.Load())
	factor := int(s.slowdownFactor.Load())

	next := ringbufvec.New(channels, ringBufferCapacity(blockSize, factor))
	s.holder.Swap(next)
}

func (s *AudioCallbackPlaySource) rebuildResamplersLocked() {
	srcRate := int(s.sourceSampleRate.Load())
	dstRate := int(s.targetSampleRate.Load())
	if srcRate == 0 {
		srcRate = dstRate
	}
	channels := int(s.channels.Load())
	blockSize := int(s.targetBlockSize.Load())
	capacity := blockSize*4 + 16 // headroom for the resample pull margin

	bank := &resamplerBank{
		r:       make([]*linearResampler, channels),
		scratch: make([][]float32, channels),
	}
	for c := 0; c < channels; c++ {
		bank.r[c] = newLinearResampler(srcRate, dstRate)
		bank.scratch[c] = make([]float32, capacity)
	}
	s.resamplers.Store(bank)
}

// SetOutputLevels publishes new peak levels (used by device adapters that
// measure levels themselves instead of relying on getSourceSamples).
func (s *AudioCallbackPlaySource) SetOutputLevels(l, r float32) {
	s.metrics.setLevels(l, r)
}

// GetOutputLevels returns the most recently published peak levels.
func (s *AudioCallbackPlaySource) GetOutputLevels() (l, r float32) {
	return s.metrics.levels()
}

// Metrics returns a point-in-time snapshot of the play source's counters.
func (s *AudioCallbackPlaySource) Metrics() Snapshot {
	return s.metrics.snapshot()
}

// OnSampleRateMismatch subscribes to rejected AddModel calls.
func (s *AudioCallbackPlaySource) OnSampleRateMismatch(fn func(MismatchEvent)) (unsubscribe func()) {
	return s.mismatch.subscribe(fn)
}

// OnWarning subscribes to non-fatal degraded-condition notifications.
func (s *AudioCallbackPlaySource) OnWarning(fn func(Warning)) (unsubscribe func()) {
	return s.warning.subscribe(fn)
}

// OnPlaybackEnded subscribes to the event fired once all active models have
// been fully consumed and playback has not been stopped explicitly.
func (s *AudioCallbackPlaySource) OnPlaybackEnded(fn func()) (unsubscribe func()) {
	return s.ended.subscribe(func(struct{}) { fn() })
}

// Close stops the fill thread and waits for it to exit.
func (s *AudioCallbackPlaySource) Close() {
	s.exiting.Store(true)
	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
	<-s.fillDone
}

// fillLoop is the fill thread loop.
func (s *AudioCallbackPlaySource) fillLoop() {
	defer close(s.fillDone)

	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.exiting.Load() {
		if !s.playing.Load() {
			s.cond.Wait()
			continue
		}
		if !s.fillBuffers() {
			s.waitTimeout(100 * time.Millisecond)
		}
	}
}

// waitTimeout waits on s.cond (mu must be held) for at most d, working
// around sync.Cond having no native timeout. The fallback timer wakes the
// loop even if nothing ever calls Broadcast, so scavenging keeps happening
// when the callback has stopped pulling.
func (s *AudioCallbackPlaySource) waitTimeout(d time.Duration) {
	timer := time.AfterFunc(d, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	s.cond.Wait()
	timer.Stop()
}

// fillBuffers renders up to one writeBlock of mixed audio into the active
// ring buffer vector. Must be called with mu held. Returns true if it did
// useful work.
func (s *AudioCallbackPlaySource) fillBuffers() bool {
	vec := s.holder.Load()
	channels := len(vec.Channels)
	if channels == 0 {
		return false
	}

	writeBlock := int(s.targetBlockSize.Load())
	if writeBlock <= 0 {
		return false
	}
	factor := int(s.slowdownFactor.Load())
	if factor < 1 {
		factor = 1
	}

	minSpace := vec.Channels[0].AvailableWrite()
	for _, ch := range vec.Channels[1:] {
		if sp := ch.AvailableWrite(); sp < minSpace {
			minSpace = sp
		}
	}
	if minSpace < uint64(writeBlock*factor) {
		return false
	}

	s.ensureFillScratchLocked(channels, writeBlock, factor)
	for _, row := range s.mixScratch {
		for i := range row {
			row[i] = 0
		}
	}

	frame := s.writeFrame
	rendered := writeBlock
	if end := s.lastModelEnd.Load(); end > 0 {
		if frame >= end {
			rendered = 0
		} else if remaining := end - frame; remaining < uint64(rendered) {
			rendered = int(remaining)
		}
	}

	for _, m := range s.models {
		n, err := s.gen.MixModel(m, frame, rendered, s.mixScratch, 0, 0)
		if err != nil {
			continue
		}
		if n < rendered {
			rendered = n
		}
	}
	s.writeFrame = frame + uint64(writeBlock)

	if s.stretch != nil {
		s.mixModelsStretchedLocked(vec, writeBlock)
	} else {
		for c, row := range s.mixScratch {
			vec.Channels[c].Write(row[:writeBlock])
		}
	}

	drained := s.readBufferFill.Load()/uint64(factor) >= s.lastModelEnd.Load()
	if rendered == 0 && s.lastModelEnd.Load() > 0 && drained && !s.endedFired {
		s.endedFired = true
		s.ended.emit(struct{}{})
	}
	return true
}

// mixModelsStretchedLocked runs each channel's mixed block through its
// stretcher and writes the expanded result to the ring buffer. Must be
// called with mu held.
func (s *AudioCallbackPlaySource) mixModelsStretchedLocked(vec *ringbufvec.Vector, writeBlock int) {
	for c, row := range s.mixScratch {
		for i, v := range row {
			s.stretchIn[c][i] = float64(v)
		}
		ts := s.stretch.Stretchers[c]
		if err := ts.Process(s.stretchIn[c], s.stretchOut[c], writeBlock); err != nil {
			s.metrics.stretcherUnderruns.Add(1)
			continue
		}
		for i, v := range s.stretchOut[c] {
			s.stretchOutF32[c][i] = float32(v)
		}
		vec.Channels[c].Write(s.stretchOutF32[c])
	}
}

func (s *AudioCallbackPlaySource) ensureFillScratchLocked(channels, blockSize, factor int) {
	stretchedLen := blockSize * factor
	if len(s.mixScratch) == channels &&
		len(s.mixScratch) > 0 &&
		len(s.mixScratch[0]) == blockSize &&
		len(s.stretchOut[0]) == stretchedLen {
		return
	}

	s.mixScratch = make([][]float32, channels)
	s.stretchIn = make([][]float64, channels)
	s.stretchOut = make([][]float64, channels)
	s.stretchOutF32 = make([][]float32, channels)
	for c := 0; c < channels; c++ {
		s.mixScratch[c] = make([]float32, blockSize)
		s.stretchIn[c] = make([]float64, blockSize)
		s.stretchOut[c] = make([]float64, stretchedLen)
		s.stretchOutF32[c] = make([]float32, stretchedLen)
	}
}

// GetSourceSamples is the real-time callback: it must not block, allocate,
// or take the play-source mutex. It fills
// outputs[c][0:count) per channel and returns the number of frames actually
// written; a short return means underrun (remainder zero-filled and the
// underrun counter incremented here).
func (s *AudioCallbackPlaySource) GetSourceSamples(count int, outputs [][]float32) int {
	if count <= 0 {
		return 0
	}
	if !s.playing.Load() {
		zeroFrames(outputs, 0, count)
		return 0
	}

	vec := s.holder.Load()
	if len(vec.Channels) == 0 {
		zeroFrames(outputs, 0, count)
		return 0
	}

	avail := vec.Channels[0].AvailableRead()
	for _, ch := range vec.Channels[1:] {
		if a := ch.AvailableRead(); a < avail {
			avail = a
		}
	}

	underrun := avail < uint64(count)
	want := count
	if underrun {
		s.metrics.underruns.Add(1)
		if avail < MinUnderrunThreshold {
			zeroFrames(outputs, 0, count)
			s.publishLevels(outputs, count)
			s.cond.Broadcast() // never blocks; safe to call without holding mu
			return 0
		}
		want = int(avail)
	}

	srcRate := int(s.sourceSampleRate.Load())
	dstRate := int(s.targetSampleRate.Load())

	var written, consumed int
	if srcRate == 0 || srcRate == dstRate {
		written = s.copyDirect(vec, outputs, want)
		consumed = written
	} else {
		written, consumed = s.resample(vec, outputs, want, srcRate, dstRate)
	}

	zeroFrames(outputs, written, count)
	s.readBufferFill.Add(uint64(consumed))
	s.publishLevels(outputs, count)
	s.bufScav.Scavenge()
	s.stretchScav.Scavenge()
	s.cond.Broadcast() // never blocks; safe to call without holding mu

	if underrun {
		return want
	}
	return count
}

func (s *AudioCallbackPlaySource) copyDirect(vec *ringbufvec.Vector, outputs [][]float32, want int) int {
	n := want
	for c := 0; c < len(outputs) && c < len(vec.Channels); c++ {
		got, err := vec.Channels[c].Read(outputs[c][:want])
		if err != nil {
			got = 0
		}
		if got < n {
			n = got
		}
	}
	return n
}

// resample drains through the callback-owned linear resampler, which always
// fully writes `want` output frames (padding with held/edge samples when
// starved), and returns both the output frame count and the number of
// source frames it actually advanced past.
func (s *AudioCallbackPlaySource) resample(vec *ringbufvec.Vector, outputs [][]float32, want int, srcRate, dstRate int) (written, consumed int) {
	bank := s.resamplers.Load()
	if bank == nil || len(bank.r) != len(outputs) {
		n := s.copyDirect(vec, outputs, want)
		return n, n
	}

	ratio := float64(srcRate) / float64(dstRate)
	pull := int(float64(want)*ratio) + 2

	maxConsumed := 0
	for c := 0; c < len(outputs) && c < len(vec.Channels); c++ {
		scratchCap := len(bank.scratch[c])
		n := pull
		if n > scratchCap {
			n = scratchCap
		}
		if a := int(vec.Channels[c].AvailableRead()); n > a {
			n = a
		}

		scratch := bank.scratch[c][:n]
		vec.Channels[c].Peek(scratch)

		got := bank.r[c].Process(scratch, outputs[c][:want])
		vec.Channels[c].Skip(uint64(got))
		if got > maxConsumed {
			maxConsumed = got
		}
	}
	return want, maxConsumed
}

func (s *AudioCallbackPlaySource) publishLevels(outputs [][]float32, n int) {
	if len(outputs) == 0 {
		return
	}
	l, r := s.metrics.levels()
	const decay = 0.9
	l *= decay
	r *= decay

	if newL := peak(clamp(outputs[0], n)); newL > l {
		l = newL
	}
	newR := l
	if len(outputs) > 1 {
		newR = peak(clamp(outputs[1], n))
	}
	if newR > r {
		r = newR
	}
	s.metrics.setLevels(l, r)
}

func clamp(buf []float32, n int) []float32 {
	if n > len(buf) {
		n = len(buf)
	}
	return buf[:n]
}

func zeroFrames(outputs [][]float32, from, to int) {
	for _, ch := range outputs {
		end := to
		if end > len(ch) {
			end = len(ch)
		}
		for i := from; i < end; i++ {
			ch[i] = 0
		}
	}
}
