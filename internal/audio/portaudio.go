package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 512

type portAudioDriver struct{}

// NewPortAudio initializes PortAudio and returns a Driver backed by it.
func NewPortAudio() (Driver, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &portAudioDriver{}, nil
}

func (p *portAudioDriver) Devices() ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	defaultInput, _ := portaudio.DefaultInputDevice()
	result := make([]Device, 0, len(devices))
	for _, d := range devices {
		result = append(result, fromDeviceInfo(d, d == defaultInput))
	}
	return result, nil
}

func (p *portAudioDriver) DefaultInput() (Device, error) {
	d, err := portaudio.DefaultInputDevice()
	if err != nil {
		return Device{}, fmt.Errorf("failed to get default input device: %w", err)
	}
	return fromDeviceInfo(d, true), nil
}

func (p *portAudioDriver) DefaultOutput() (Device, error) {
	d, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return Device{}, fmt.Errorf("failed to get default output device: %w", err)
	}
	return fromDeviceInfo(d, true), nil
}

func (p *portAudioDriver) OpenInput(dev Device, format StreamFormat, cb func(Buffer)) (Stream, error) {
	info, err := deviceInfo(dev)
	if err != nil {
		return nil, err
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: format.Channels,
			Latency:  info.DefaultLowInputLatency,
		},
		SampleRate:      float64(format.SampleRate),
		FramesPerBuffer: framesPerBuffer,
	}

	var stream *portaudio.Stream
	switch format.Sample {
	case F32:
		stream, err = portaudio.OpenStream(params, func(in []float32) { cb(Buffer{F32: in}) })
	case I16:
		stream, err = portaudio.OpenStream(params, func(in []int16) { cb(Buffer{I16: in}) })
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format.Sample)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}
	return stream, nil
}

func (p *portAudioDriver) OpenOutput(dev Device, format StreamFormat, cb func(Buffer)) (Stream, error) {
	info, err := deviceInfo(dev)
	if err != nil {
		return nil, err
	}

	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: format.Channels,
			Latency:  info.DefaultLowOutputLatency,
		},
		SampleRate:      float64(format.SampleRate),
		FramesPerBuffer: framesPerBuffer,
	}

	var stream *portaudio.Stream
	switch format.Sample {
	case F32:
		stream, err = portaudio.OpenStream(params, func(out []float32) { cb(Buffer{F32: out}) })
	case I16:
		stream, err = portaudio.OpenStream(params, func(out []int16) { cb(Buffer{I16: out}) })
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format.Sample)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open playback stream: %w", err)
	}
	return stream, nil
}

func (p *portAudioDriver) Close() error {
	return portaudio.Terminate()
}

func fromDeviceInfo(d *portaudio.DeviceInfo, isDefault bool) Device {
	return Device{
		ID:                d.Name,
		Name:              d.Name,
		Default:           isDefault,
		MaxInputChannels:  d.MaxInputChannels,
		MaxOutputChannels: d.MaxOutputChannels,
		DefaultSampleRate: d.DefaultSampleRate,
		handle:            d,
	}
}

func deviceInfo(dev Device) (*portaudio.DeviceInfo, error) {
	if info, ok := dev.handle.(*portaudio.DeviceInfo); ok && info != nil {
		return info, nil
	}

	// Device values built outside this driver carry no handle; look them up
	// by name.
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == dev.Name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, dev.Name)
}
