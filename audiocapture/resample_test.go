package audiocapture

import (
	"math"
	"testing"
)

func TestResamplerPassthrough(t *testing.T) {
	r := NewResampler(16000, 16000)
	in := []float32{0.1, -0.2, 0.3}
	out := r.Process(in)
	if len(out) != len(in) {
		t.Fatalf("length = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d = %v, want %v", i, out[i], in[i])
		}
	}
	// Output must be a copy, not an alias.
	in[0] = 9
	if out[0] == 9 {
		t.Fatal("output aliases the input slice")
	}
}

func TestResamplerDownsampleRatio(t *testing.T) {
	tests := []struct {
		name    string
		inRate  int
		outRate int
		seconds float64
	}{
		{"48k to 16k", 48000, 16000, 2},
		{"44.1k to 16k", 44100, 16000, 2},
		{"8k to 16k upsample", 8000, 16000, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResampler(tt.inRate, tt.outRate)

			total := int(float64(tt.inRate) * tt.seconds)
			var out int
			// Feed in uneven chunks to exercise the carry state.
			for fed := 0; fed < total; {
				n := 997
				if fed+n > total {
					n = total - fed
				}
				out += len(r.Process(make([]float32, n)))
				fed += n
			}

			want := float64(tt.outRate) * tt.seconds
			if math.Abs(float64(out)-want) > 2 {
				t.Fatalf("output samples = %d, want ~%.0f", out, want)
			}
		})
	}
}

func TestResamplerPreservesConstantSignal(t *testing.T) {
	r := NewResampler(44100, 16000)
	in := make([]float32, 44100)
	for i := range in {
		in[i] = 0.5
	}

	var out []float32
	out = append(out, r.Process(in[:10000])...)
	out = append(out, r.Process(in[10000:])...)

	for i, s := range out {
		if math.Abs(float64(s)-0.5) > 1e-6 {
			t.Fatalf("sample %d = %v, want 0.5", i, s)
		}
	}
}

func TestResamplerInterpolatesAcrossChunkBoundary(t *testing.T) {
	// Halving the rate of a linear ramp keeps it a ramp, even when the
	// input is split mid-stream.
	r := NewResampler(32000, 16000)

	ramp := make([]float32, 64)
	for i := range ramp {
		ramp[i] = float32(i)
	}

	var out []float32
	out = append(out, r.Process(ramp[:33])...)
	out = append(out, r.Process(ramp[33:])...)

	for i := 1; i < len(out); i++ {
		step := out[i] - out[i-1]
		if math.Abs(float64(step)-2) > 1e-5 {
			t.Fatalf("step at %d = %v, want 2 (ramp broken at chunk boundary)", i, step)
		}
	}
}

func TestResamplerEmptyChunk(t *testing.T) {
	r := NewResampler(48000, 16000)
	if out := r.Process(nil); out != nil {
		t.Fatalf("Process(nil) = %v, want nil", out)
	}
}
