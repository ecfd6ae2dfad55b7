package audio

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultDeviceID selects whatever input the system considers default.
const DefaultDeviceID = "default"

// Directory lists and resolves input devices.
type Directory struct {
	drv Driver
}

// NewDirectory returns a Directory backed by drv.
func NewDirectory(drv Driver) *Directory {
	return &Directory{drv: drv}
}

// ListInputDevices returns the selectable inputs sorted by label, with a
// "System Default" entry first. Monitor sources are skipped and devices with
// the same cleaned label are listed once.
func (d *Directory) ListInputDevices() ([]AudioDevice, error) {
	devices, err := d.drv.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	seen := make(map[string]bool)
	result := make([]AudioDevice, 0, len(devices)+1)
	for _, dev := range devices {
		if dev.MaxInputChannels < 1 || isMonitor(dev.Name) {
			continue
		}
		label := cleanLabel(dev.Name)
		if seen[label] {
			continue
		}
		seen[label] = true
		result = append(result, AudioDevice{
			ID:      dev.ID,
			Label:   label,
			Default: dev.Default,
		})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Label < result[j].Label })

	return append([]AudioDevice{{ID: DefaultDeviceID, Label: "System Default"}}, result...), nil
}

// Resolve maps a device ID to a Device. An empty ID or DefaultDeviceID
// selects the driver's default input.
func (d *Directory) Resolve(id string) (Device, error) {
	if id == "" || id == DefaultDeviceID {
		dev, err := d.drv.DefaultInput()
		if err != nil {
			return Device{}, &DeviceError{Op: "resolve input", Err: fmt.Errorf("%w: %v", ErrNoInputDevice, err)}
		}
		return dev, nil
	}

	devices, err := d.drv.Devices()
	if err != nil {
		return Device{}, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, dev := range devices {
		if dev.ID == id && dev.MaxInputChannels > 0 {
			return dev, nil
		}
	}
	return Device{}, &DeviceError{Op: "resolve input", Device: id, Err: ErrDeviceNotFound}
}

func isMonitor(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "monitor") || lower == "null"
}

func cleanLabel(name string) string {
	for _, suffix := range []string{", USB Audio", ", ALC"} {
		if i := strings.Index(name, suffix); i >= 0 {
			name = name[:i]
		}
	}
	return strings.TrimSpace(name)
}
