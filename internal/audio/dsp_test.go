package audio

import "testing"

func TestDownmixMono(t *testing.T) {
	input := []int16{100, 200, 300, 400}
	got := Downmix(input, 1)

	if len(got) != len(input) {
		t.Fatalf("expected %d samples, got %d", len(input), len(got))
	}
	for i := range input {
		if got[i] != input[i] {
			t.Fatalf("expected element %d to be %d, got %d", i, input[i], got[i])
		}
	}

	if &got[0] == &input[0] {
		t.Fatal("expected mono result to be copied into a new slice")
	}
}

func TestDownmixStereo(t *testing.T) {
	input := []int16{
		1000, -1000,
		500, 500,
		3, 4,
		-3, -4,
	}
	expected := []int16{0, 500, 3, -3}

	got := Downmix(input, 2)
	if len(got) != len(expected) {
		t.Fatalf("expected %d frames, got %d", len(expected), len(got))
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("frame %d mismatch: expected %d, got %d", i, expected[i], got[i])
		}
	}
}

func TestDownmixMoreChannels(t *testing.T) {
	input := []int16{
		1, 3, 5,
		2, 4, 6,
		9,
	}
	expected := []int16{3, 4, 9}

	got := Downmix(input, 3)
	if len(got) != len(expected) {
		t.Fatalf("expected %d frames, got %d", len(expected), len(got))
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("frame %d mismatch: expected %d, got %d", i, expected[i], got[i])
		}
	}
}

func TestResampleIdentity(t *testing.T) {
	input := []int16{1, -2, 3, -4, 5}
	got := Resample(input, 44100, 44100)
	if len(got) != len(input) {
		t.Fatalf("expected %d samples, got %d", len(input), len(got))
	}
	for i := range input {
		if got[i] != input[i] {
			t.Fatalf("sample %d changed: %d -> %d", i, input[i], got[i])
		}
	}
}

func TestResampleLength(t *testing.T) {
	cases := []struct {
		n, from, to, want int
	}{
		{4800, 48000, 16000, 1600},
		{1000, 16000, 48000, 3000},
		{7, 48000, 16000, 2},
		{0, 48000, 16000, 0},
	}
	for _, c := range cases {
		got := Resample(make([]int16, c.n), c.from, c.to)
		if len(got) != c.want {
			t.Fatalf("Resample(len=%d, %d->%d): expected %d samples, got %d", c.n, c.from, c.to, c.want, len(got))
		}
	}
}

func TestResampleInterpolates(t *testing.T) {
	got := Resample([]int16{100, 200, 300, 400}, 16000, 32000)
	expected := []int16{100, 150, 200, 250, 300, 350, 400, 400}
	if len(got) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("sample %d: expected %d, got %d", i, expected[i], got[i])
		}
	}
}

func TestResampleDecimates(t *testing.T) {
	input := make([]int16, 12)
	for i := range input {
		input[i] = int16(i * 10)
	}
	got := Resample(input, 48000, 16000)
	expected := []int16{0, 30, 60, 90}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("sample %d: expected %d, got %d", i, expected[i], got[i])
		}
	}
}

func TestNormalizeBoostsQuietSignal(t *testing.T) {
	samples := []int16{1000, -1000, 500}
	Normalize(samples)

	// gain = 32767*0.9/1000 = 29.49
	if samples[0] < 29480 || samples[0] > 29500 {
		t.Fatalf("expected first sample ~29490, got %d", samples[0])
	}
	if samples[1] != -samples[0] {
		t.Fatalf("expected symmetric gain, got %d and %d", samples[0], samples[1])
	}
	if samples[2] < 14740 || samples[2] > 14750 {
		t.Fatalf("expected third sample ~14745, got %d", samples[2])
	}
}

func TestNormalizeLeavesLoudSignal(t *testing.T) {
	samples := []int16{16384, -200, 3}
	orig := append([]int16(nil), samples...)
	Normalize(samples)
	for i := range orig {
		if samples[i] != orig[i] {
			t.Fatalf("sample %d changed: %d -> %d", i, orig[i], samples[i])
		}
	}

	loud := []int16{-32768, 5}
	Normalize(loud)
	if loud[0] != -32768 || loud[1] != 5 {
		t.Fatalf("expected full-scale signal untouched, got %v", loud)
	}
}

func TestNormalizeSilence(t *testing.T) {
	samples := []int16{0, 0, 0}
	Normalize(samples)
	for _, s := range samples {
		if s != 0 {
			t.Fatalf("expected silence to stay silent, got %v", samples)
		}
	}
}

func TestPeak(t *testing.T) {
	if got := Peak([]float32{0.1, -0.7, 0.3}); got != 0.7 {
		t.Fatalf("expected 0.7, got %f", got)
	}
	if got := PeakI16([]int16{-32768, 5}); got != 32768 {
		t.Fatalf("expected 32768, got %d", got)
	}
}
