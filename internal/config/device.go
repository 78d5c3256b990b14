package config

import (
	"fmt"
	"os"
)

// Default device configuration.
const (
	DefaultADBPath   = "adb"
	DefaultSerial    = "127.0.0.1:5555"
	DefaultAssetsDir = "assets"
)

// DeviceSerial returns the device serial from ADB_SERIAL env var.
// Falls back to the provided default if not set.
func DeviceSerial(defaultSerial string) string {
	if s := os.Getenv("ADB_SERIAL"); s != "" {
		return s
	}
	return defaultSerial
}

// ADBPath returns the adb binary from ADB_PATH env var or the default.
func ADBPath(defaultPath string) string {
	if p := os.Getenv("ADB_PATH"); p != "" {
		return p
	}
	return defaultPath
}

// EmulatorAddress formats a host and port as an adb network serial.
func EmulatorAddress(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
