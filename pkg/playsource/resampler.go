package playsource

// linearResampler converts a stream from one fixed sample rate to another by
// linear interpolation, carrying fractional phase and the last consumed
// source sample across calls so the stream stays continuous. No allocation
// after construction, so it is safe to drive from the real-time callback.
// Linear interpolation
// trades anti-aliasing quality for RT-safety; it mirrors the clip mixer's
// own resampling strategy rather than pulling in a blocking/allocating
// library like the offline path uses.
type linearResampler struct {
	ratio    float64 // srcRate / dstRate: source samples advanced per output frame
	pos      float64 // fractional offset into src, carried across calls
	prev     float32 // last sample consumed from the previous call's src
	havePrev bool
}

func newLinearResampler(srcRate, dstRate int) *linearResampler {
	return &linearResampler{ratio: float64(srcRate) / float64(dstRate)}
}

// at returns the sample at offset off into src, where off == -1 means "the
// sample immediately preceding src[0]" (the last sample of the previous
// call), letting interpolation cross call boundaries without re-buffering.
func (r *linearResampler) at(src []float32, off int) float32 {
	switch {
	case off < 0:
		if r.havePrev {
			return r.prev
		}
		if len(src) > 0 {
			return src[0]
		}
		return 0
	case off < len(src):
		return src[off]
	default:
		if len(src) > 0 {
			return src[len(src)-1]
		}
		if r.havePrev {
			return r.prev
		}
		return 0
	}
}

// Process writes exactly len(dst) resampled output frames and returns the
// number of src elements it advanced past (to be retired from the caller's
// ring buffer).
func (r *linearResampler) Process(src []float32, dst []float32) (consumed int) {
	if r.ratio == 1 {
		n := copy(dst, src)
		for i := n; i < len(dst); i++ {
			dst[i] = 0
		}
		if n > 0 {
			r.prev, r.havePrev = src[n-1], true
		}
		return n
	}

	for i := range dst {
		off := int(r.pos)
		frac := float32(r.pos - float64(off))
		a := r.at(src, off)
		b := r.at(src, off+1)
		dst[i] = a + (b-a)*frac
		r.pos += r.ratio
	}

	consumed = int(r.pos)
	if consumed < 0 {
		consumed = 0
	}
	if consumed > len(src) {
		consumed = len(src)
	}
	r.pos -= float64(consumed)
	if consumed > 0 {
		r.prev, r.havePrev = src[consumed-1], true
	}
	return consumed
}
