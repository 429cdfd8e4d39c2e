//go:build !windows

package delay

// Worker priority raising is a Windows concern; elsewhere (tests) the
// default scheduling is fine.
func raiseThreadPriority() error { return nil }
