// Package device provides interfaces and an ADB implementation for driving
// an Android emulator.
//
// This package follows the Interface Segregation Principle (ISP) by defining
// small, focused interfaces that can be composed as needed. Consumers should
// depend only on the interfaces they actually use.
package device

import (
	"context"

	"github.com/teslashibe/go-rokbot/pkg/vision"
)

// Capturer grabs the current screen.
// Use this minimal interface when only observation is needed (e.g., probe).
type Capturer interface {
	Capture(ctx context.Context) (vision.Frame, error)
}

// Tapper injects a single touch at screen coordinates.
type Tapper interface {
	Tap(ctx context.Context, x, y int) error
}

// BackNavigator sends the Android back key.
type BackNavigator interface {
	Back(ctx context.Context) error
}

// Device is the composite interface the action sequencer drives.
type Device interface {
	Capturer
	Tapper
	BackNavigator
}

// Ensure ADB implements Device
var _ Device = (*ADB)(nil)
