package audiocapture

// Resampler converts a mono float32 stream from one sample rate to another by
// linear interpolation. It is streaming: state carries across Process calls
// so chunk boundaries do not glitch. Not safe for concurrent use; each
// Session owns one.
type Resampler struct {
	ratio float64 // input samples consumed per output sample

	pos    float64 // fractional read position into the virtual input stream
	last   float32 // final sample of the previous chunk
	primed bool
}

// NewResampler builds a converter from inRate to outRate. Equal rates pass
// samples through untouched.
func NewResampler(inRate, outRate int) *Resampler {
	return &Resampler{ratio: float64(inRate) / float64(outRate)}
}

// Process converts one chunk. The returned slice is freshly allocated and
// owned by the caller.
func (r *Resampler) Process(in []float32) []float32 {
	if len(in) == 0 {
		return nil
	}
	if r.ratio == 1 {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}

	// The virtual input stream is the carried last sample (index 0, when
	// primed) followed by this chunk. r.pos indexes into that stream.
	carry := 0
	if r.primed {
		carry = 1
	}
	total := carry + len(in)

	sample := func(i int) float32 {
		if i < carry {
			return r.last
		}
		return in[i-carry]
	}

	out := make([]float32, 0, int(float64(len(in))/r.ratio)+1)
	for {
		idx := int(r.pos)
		if idx+1 >= total {
			break
		}
		frac := float32(r.pos - float64(idx))
		a, b := sample(idx), sample(idx+1)
		out = append(out, a+(b-a)*frac)
		r.pos += r.ratio
	}

	// Rebase the position onto the next chunk, carrying the last input
	// sample for interpolation across the boundary.
	r.pos -= float64(total - 1)
	r.last = in[len(in)-1]
	r.primed = true
	return out
}
