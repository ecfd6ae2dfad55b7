package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

const (
	wavBitDepth  = 16
	wavFormatPCM = 1
)

// MinRecordingDuration is the shortest recording handed to a consumer.
const MinRecordingDuration = 100 * time.Millisecond

// EncodeWAV encodes mono 16-bit PCM samples into a RIFF/WAVE container.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrEncoding)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %d", ErrEncoding, sampleRate)
	}

	ws := &writerseeker.WriterSeeker{}
	enc := wav.NewEncoder(ws, sampleRate, wavBitDepth, 1, wavFormatPCM)

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: wavBitDepth,
	}
	for i, s := range samples {
		buf.Data[i] = int(s)
	}

	if err := enc.Write(buf); err != nil {
		enc.Close()
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	data, err := io.ReadAll(ws.Reader())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return data, nil
}

// DecodeWAV reads mono 16-bit PCM samples and the sample rate from a WAV
// container.
func DecodeWAV(data []byte) ([]int16, int, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, 0, errors.New("invalid WAV file")
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, 0, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", dec.WavAudioFormat)
	}
	if dec.BitDepth != wavBitDepth {
		return nil, 0, fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", dec.BitDepth)
	}
	if dec.NumChans != 1 {
		return nil, 0, fmt.Errorf("unsupported channel count: %d (only mono is supported)", dec.NumChans)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read audio samples: %w", err)
	}

	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}
	return samples, int(dec.SampleRate), nil
}

// WAVDuration returns the playing time of the samples in a WAV container.
// It is computed from the sample count, not the RIFF chunk size, which also
// counts header bytes.
func WAVDuration(data []byte) (time.Duration, error) {
	samples, rate, err := DecodeWAV(data)
	if err != nil {
		return 0, err
	}
	if rate <= 0 {
		return 0, fmt.Errorf("invalid sample rate %d", rate)
	}
	return time.Duration(len(samples)) * time.Second / time.Duration(rate), nil
}

// ValidateDuration rejects recordings shorter than MinRecordingDuration.
func ValidateDuration(data []byte) error {
	d, err := WAVDuration(data)
	if err != nil {
		return err
	}
	if d < MinRecordingDuration {
		return fmt.Errorf("%w: %s", ErrAudioTooShort, d)
	}
	return nil
}
