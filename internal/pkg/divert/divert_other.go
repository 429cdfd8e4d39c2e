//go:build !windows

package divert

import "errors"

// Open always fails off Windows: packet diversion needs the WinDivert
// kernel driver.
func Open(Config) (Handle, error) {
	return nil, errors.New("packet diversion requires windows and the windivert driver")
}
