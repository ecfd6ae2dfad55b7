//go:build !darwin

package permissions

// EnsurePermissions always succeeds: only macOS gates microphone access
// per application.
func EnsurePermissions() error { return nil }
