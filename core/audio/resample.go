package audio

import "math"

// Resample converts float samples in [-1, 1] captured at rateIn into int16
// samples at rateOut using linear interpolation. Samples outside [-1, 1] are
// clamped to the int16 range. An empty input yields an empty output; the
// function never fails.
func Resample(samples []float32, rateIn, rateOut int) []int16 {
	if len(samples) == 0 || rateIn <= 0 || rateOut <= 0 {
		return []int16{}
	}

	if rateIn == rateOut {
		out := make([]int16, len(samples))
		for i, sample := range samples {
			out[i] = quantize(sample)
		}
		return out
	}

	ratio := float64(rateIn) / float64(rateOut)
	outLen := int(math.Round(float64(len(samples)) / ratio))
	if outLen == 0 {
		outLen = 1
	}

	out := make([]int16, outLen)
	for i := range out {
		pos := float64(i) * ratio
		left := int(pos)
		if left >= len(samples)-1 {
			out[i] = quantize(samples[len(samples)-1])
			continue
		}

		frac := float32(pos - float64(left))
		interpolated := samples[left]*(1-frac) + samples[left+1]*frac
		out[i] = quantize(interpolated)
	}

	return out
}

// quantize scales by 32768 so the encoder is the exact inverse of the
// float decode (sample / 32768) used on the inbound side.
func quantize(sample float32) int16 {
	scaled := float64(sample) * 32768
	if scaled > math.MaxInt16 {
		return math.MaxInt16
	} else if scaled < math.MinInt16 {
		return math.MinInt16
	}
	return int16(scaled)
}

// BytesLE serializes int16 samples as little-endian PCM, the layout both
// endpoint clients put on the wire.
func BytesLE(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		out[2*i] = byte(sample)
		out[2*i+1] = byte(sample >> 8)
	}
	return out
}

// SamplesLE is the inverse of [BytesLE]. A trailing odd byte is dropped.
func SamplesLE(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(data[2*i]) | int16(data[2*i+1])<<8
	}
	return out
}
