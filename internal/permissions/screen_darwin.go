//go:build darwin

// Package permissions checks OS-level capture permissions. Only macOS gates
// screen capture behind a user grant.
package permissions

/*
#cgo LDFLAGS: -framework CoreGraphics
#include <CoreGraphics/CoreGraphics.h>

int hasScreenRecordingPermission() {
    return CGPreflightScreenCaptureAccess();
}

int requestScreenRecordingPermission() {
    return CGRequestScreenCaptureAccess();
}
*/
import "C"

// HasScreenRecording reports whether the process may capture the screen.
func HasScreenRecording() bool {
	return C.hasScreenRecordingPermission() != 0
}

// RequestScreenRecording prompts for Screen Recording permission. It returns
// true if already granted; otherwise macOS shows a dialog and the process
// must be restarted once the user grants access.
func RequestScreenRecording() bool {
	return C.requestScreenRecordingPermission() != 0
}
