//go:build windows

package divert

import (
	"fmt"
	"unsafe"

	wdivert "github.com/imgk/divert-go"
)

type winHandle struct {
	h *wdivert.Handle
}

// Open opens a WinDivert handle at the network layer. Requires
// administrator rights and the WinDivert driver; both failure modes
// surface here.
func Open(cfg Config) (Handle, error) {
	filter := cfg.Filter
	if filter == "" {
		filter = "true"
	}
	h, err := wdivert.Open(filter, wdivert.LayerNetwork, cfg.Priority, wdivert.FlagDefault)
	if err != nil {
		return nil, fmt.Errorf("windivert open: %w", err)
	}
	return &winHandle{h: h}, nil
}

func (w *winHandle) Recv(buf []byte, addr *Address) (uint, error) {
	return w.h.Recv(buf, (*wdivert.Address)(unsafe.Pointer(addr)))
}

func (w *winHandle) Send(buf []byte, addr *Address) (uint, error) {
	return w.h.Send(buf, (*wdivert.Address)(unsafe.Pointer(addr)))
}

func (w *winHandle) Shutdown() error {
	return w.h.Shutdown(wdivert.ShutdownBoth)
}

func (w *winHandle) Close() error {
	return w.h.Close()
}
