package audio

import "math"

// Resample converts samples from fromRate to toRate by linear interpolation.
// Equal rates return the input slice itself. No anti-aliasing filter is
// applied; the output only feeds speech recognition and monitoring.
func Resample(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	outLen := int(float64(len(samples)) / ratio)
	out := make([]int16, 0, outLen)

	for i := 0; i < outLen; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		switch {
		case idx+1 < len(samples):
			s1 := float64(samples[idx])
			s2 := float64(samples[idx+1])
			out = append(out, int16(s1+(s2-s1)*frac))
		case idx < len(samples):
			out = append(out, samples[idx])
		}
	}
	return out
}

// Downmix averages interleaved frames of the given channel count into mono.
// The result is always a new slice. A trailing partial frame is averaged
// over the channels it has.
func Downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		out := make([]int16, len(samples))
		copy(out, samples)
		return out
	}

	out := make([]int16, 0, (len(samples)+channels-1)/channels)
	for i := 0; i < len(samples); i += channels {
		end := min(i+channels, len(samples))
		var sum int32
		for _, s := range samples[i:end] {
			sum += int32(s)
		}
		out = append(out, int16(sum/int32(end-i)))
	}
	return out
}

func frameMean(frame []float32) float32 {
	if len(frame) == 1 {
		return frame[0]
	}
	var sum float32
	for _, s := range frame {
		sum += s
	}
	return sum / float32(len(frame))
}

func frameMeanI16(frame []int16) float32 {
	if len(frame) == 1 {
		return FromI16(frame[0])
	}
	var sum float32
	for _, s := range frame {
		sum += FromI16(s)
	}
	return sum / float32(len(frame))
}

// Normalize boosts a quiet capture toward 90% of full scale, in place. A
// signal whose peak is already at or above half scale is left untouched.
func Normalize(samples []int16) {
	peak := PeakI16(samples)
	if peak == 0 || peak >= math.MaxInt16/2 {
		return
	}

	gain := float32(math.MaxInt16*0.9) / float32(peak)
	for i, s := range samples {
		v := int32(float32(s) * gain)
		samples[i] = int16(max(min(v, math.MaxInt16), math.MinInt16))
	}
}

// PeakI16 returns the largest absolute sample value.
func PeakI16(samples []int16) int32 {
	var peak int32
	for _, s := range samples {
		v := int32(s)
		if v < 0 {
			v = -v
		}
		peak = max(peak, v)
	}
	return peak
}

// Peak returns the largest absolute float sample value.
func Peak(samples []float32) float32 {
	var peak float32
	for _, s := range samples {
		peak = max(peak, float32(math.Abs(float64(s))))
	}
	return peak
}
