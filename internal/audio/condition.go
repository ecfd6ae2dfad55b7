package audio

import "math"

const (
	dcAlpha      = 0.995
	softClipKnee = 0.7
	softClipSpan = 1 - softClipKnee
	headroom     = 0.95
)

// maxSoftClip keeps the limiter strictly below full scale once tanh
// saturates to 1 in floating point.
var maxSoftClip = math.Nextafter32(1, 0)

// Conditioner is the per-sample signal chain of one capture stream: DC
// offset removal followed by sensitivity gain. It carries filter memory and
// belongs to exactly one driver callback.
type Conditioner struct {
	sensitivity float32
	state       float32
}

// NewConditioner returns a Conditioner with zeroed filter memory.
// Non-positive sensitivity is treated as 1.
func NewConditioner(sensitivity float32) *Conditioner {
	if sensitivity <= 0 || math.IsNaN(float64(sensitivity)) {
		sensitivity = 1
	}
	return &Conditioner{sensitivity: sensitivity}
}

// Process runs one mono sample through the high-pass filter and gain stage.
// The result is the float fed to the pre-roll ring and the recording channel.
func (c *Conditioner) Process(x float32) float32 {
	filtered := x - c.state
	c.state = filtered + dcAlpha*c.state
	return filtered * c.sensitivity
}

// SoftClip passes |x| <= 0.7 through unchanged and smoothly saturates
// anything larger. |SoftClip(x)| < 1 for every input.
func SoftClip(x float32) float32 {
	switch {
	case math.IsNaN(float64(x)):
		return 0
	case x > softClipKnee:
		y := softClipKnee + softClipSpan*float32(math.Tanh(float64((x-softClipKnee)/softClipSpan)))
		return min(y, maxSoftClip)
	case x < -softClipKnee:
		y := -softClipKnee - softClipSpan*float32(math.Tanh(float64((-x-softClipKnee)/softClipSpan)))
		return max(y, -maxSoftClip)
	default:
		return x
	}
}

// Quantize limits a gain-stage sample, applies headroom and converts it to
// 16-bit PCM, truncating toward zero.
func Quantize(g float32) int16 {
	v := SoftClip(g) * headroom * math.MaxInt16
	v = max(min(v, math.MaxInt16), math.MinInt16)
	return int16(v)
}

// QuantizeAll converts a slice of gain-stage samples to PCM.
func QuantizeAll(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = Quantize(s)
	}
	return out
}

// FromI16 maps a 16-bit sample to the float range used by the conditioner.
func FromI16(s int16) float32 {
	return float32(s) / math.MaxInt16
}
