// Package stretcher implements the integer-ratio phase vocoder used to
// slow down playback without changing pitch.
package stretcher

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/drgolem/playcore/pkg/ringbuffer"
	"github.com/drgolem/playcore/pkg/window"
)

// IntegerTimeStretcher time-stretches a mono stream by an integer ratio R
// using phase-vocoder analysis/resynthesis. The caller feeds samples via
// Process and is guaranteed samples*R output frames per call once the
// internal ring buffers have enough history (see Latency).
type IntegerTimeStretcher struct {
	ratio int     // R
	n1    int     // analysis hop
	n2    int     // synthesis hop = R*n1
	wlen  int     // window length W

	win   []float64 // analysis == synthesis window
	scale float64   // 1/W inverse-FFT normalization times COLA normalization

	inRing  *ringbuffer.RingBuffer[float64]
	outRing *ringbuffer.RingBuffer[float64]

	fft *fourier.FFT

	frame   []float64 // scratch: windowed/shifted analysis frame, len W
	mashbuf []float64 // overlap-add accumulator, len W
	coeffs  []complex128

	emitted uint64 // total output samples ever produced, for warm-up accounting
}

// New builds a phase vocoder for integer stretch ratio R. maxBlock bounds
// the largest single Process call the caller will make (it sizes the
// internal ring buffers); n1 is the analysis hop; wlen is the window length
// and must satisfy wlen >= 2*R*n1.
func New(ratio, maxBlock, n1, wlen int, winType window.Type) (*IntegerTimeStretcher, error) {
	if ratio < 1 {
		return nil, fmt.Errorf("stretcher: ratio must be >= 1, got %d", ratio)
	}
	if n1 <= 0 || maxBlock <= 0 {
		return nil, fmt.Errorf("stretcher: n1 and maxBlock must be positive")
	}
	n2 := ratio * n1
	if wlen < 2*n2 {
		return nil, fmt.Errorf("stretcher: window length %d too small for ratio %d, hop %d (need >= %d)", wlen, ratio, n1, 2*n2)
	}
	if wlen%2 != 0 {
		return nil, fmt.Errorf("stretcher: window length must be even, got %d", wlen)
	}

	win := window.Make(wlen, winType)

	ts := &IntegerTimeStretcher{
		ratio:   ratio,
		n1:      n1,
		n2:      n2,
		wlen:    wlen,
		win:     win,
		inRing:  ringbuffer.New[float64](uint64(2 * (wlen + maxBlock))),
		outRing: ringbuffer.New[float64](uint64(2 * (maxBlock*ratio + wlen))),
		fft:     fourier.NewFFT(wlen),
		frame:   make([]float64, wlen),
		mashbuf: make([]float64, wlen),
	}
	// fourier's inverse transform is unnormalized (it scales by W).
	ts.scale = colaScale(win, n2) / float64(wlen)

	return ts, nil
}

// colaScale computes the constant-overlap-add normalization for window w
// used on both analysis and synthesis sides at hop n2: the reciprocal of
// the overlap-add sum of w^2 sampled at hop n2 around the window's center.
func colaScale(w []float64, n2 int) float64 {
	wlen := len(w)
	center := wlen / 2
	sum := 0.0
	for offset := -wlen; offset <= wlen; offset += n2 {
		idx := center + offset
		if idx >= 0 && idx < wlen {
			sum += w[idx] * w[idx]
		}
	}
	if sum == 0 {
		return 1
	}
	return 1 / sum
}

// Ratio returns the integer stretch factor R.
func (ts *IntegerTimeStretcher) Ratio() int { return ts.ratio }

// Latency returns the processing latency in frames: W - n2.
func (ts *IntegerTimeStretcher) Latency() int { return ts.wlen - ts.n2 }

// Process appends samples (len(input) must be >= samples) to the internal
// input ring, runs the phase vocoder as far forward as the available
// history allows, and drains exactly samples*R frames into output
// (len(output) must be >= samples*R). During warm-up, the head of output is
// zero-padded.
func (ts *IntegerTimeStretcher) Process(input []float64, output []float64, samples int) error {
	if samples <= 0 {
		return nil
	}
	if len(input) < samples {
		return fmt.Errorf("stretcher: input shorter than samples")
	}
	required := samples * ts.ratio
	if len(output) < required {
		return fmt.Errorf("stretcher: output shorter than samples*ratio")
	}

	if _, err := ts.inRing.Write(input[:samples]); err != nil {
		return fmt.Errorf("stretcher: input overrun: %w", err)
	}

	for ts.inRing.AvailableRead() >= uint64(ts.wlen) && ts.outRing.AvailableWrite() >= uint64(ts.n2) {
		ts.step()
	}

	ts.drain(output, required)
	return nil
}

// step runs one analysis/resynthesis cycle: peek a window, analyze, scale
// phase by R, resynthesize, overlap-add, emit n2 samples, advance by n1.
func (ts *IntegerTimeStretcher) step() {
	n, _ := ts.inRing.Peek(ts.frame)
	if n < ts.wlen {
		return
	}

	windowed := make([]float64, ts.wlen)
	copy(windowed, ts.frame)
	window.Apply(windowed, ts.win)
	fftshift(windowed)

	ts.coeffs = ts.fft.Coefficients(ts.coeffs, windowed)
	for i, c := range ts.coeffs {
		mag, phase := cmplx.Abs(c), cmplx.Phase(c)
		ts.coeffs[i] = cmplx.Rect(mag, phase*float64(ts.ratio))
	}

	resynth := ts.fft.Sequence(nil, ts.coeffs)
	fftshift(resynth) // shift is its own inverse for even wlen
	window.Apply(resynth, ts.win)
	for i := range resynth {
		resynth[i] *= ts.scale
	}

	for i := 0; i < ts.wlen; i++ {
		ts.mashbuf[i] += resynth[i]
	}

	ts.outRing.Write(ts.mashbuf[:ts.n2])

	copy(ts.mashbuf, ts.mashbuf[ts.n2:])
	clearTail := ts.mashbuf[ts.wlen-ts.n2:]
	for i := range clearTail {
		clearTail[i] = 0
	}

	ts.inRing.Skip(uint64(ts.n1))
}

// drain fills output[:required] from the output ring, zero-padding the
// head while the vocoder is still warming up.
func (ts *IntegerTimeStretcher) drain(output []float64, required int) {
	avail := ts.outRing.AvailableRead()
	if avail >= uint64(required) {
		ts.outRing.Read(output[:required])
		ts.emitted += uint64(required)
		return
	}

	padLen := required - int(avail)
	for i := 0; i < padLen; i++ {
		output[i] = 0
	}
	n, _ := ts.outRing.Read(output[padLen:required])
	ts.emitted += uint64(n)
}

// fftshift performs a circular shift by len(x)/2, swapping the first and
// second halves. It is its own inverse for even-length x, which New
// enforces.
func fftshift(x []float64) {
	half := len(x) / 2
	tmp := make([]float64, half)
	copy(tmp, x[:half])
	copy(x[:half], x[half:])
	copy(x[half:], tmp)
}
