package metric

import (
	"log/slog"

	"golang.org/x/sys/cpu"
)

// Backend indicates which kernel family is active.
type Backend int

const (
	BackendScalar   Backend = iota // one accumulator per row
	BackendUnrolled                // four independent accumulators per row
)

func (b Backend) String() string {
	switch b {
	case BackendScalar:
		return "scalar"
	case BackendUnrolled:
		return "unrolled"
	default:
		return "unknown"
	}
}

// ActiveBackend reports which backend was selected at initialization.
var ActiveBackend Backend

// fastSSD and fastSAD are set by init() based on CPU feature detection.
var (
	fastSSD func(a []uint8, aStride int, b []uint8, bStride int, rowLen, rows int) uint32
	fastSAD func(a []uint8, aStride int, b []uint8, bStride int, rowLen, rows int) uint32
)

func init() {
	// Cores with wide vector units also have the issue width to keep four
	// independent accumulator chains busy.
	if cpu.X86.HasAVX2 || cpu.ARM64.HasASIMD {
		useBackend(BackendUnrolled)
		slog.Debug("Patch metric initialized", "backend", "unrolled")
	} else {
		useBackend(BackendScalar)
		slog.Debug("Patch metric initialized", "backend", "scalar", "reason", "no wide vector unit")
	}
}

func useBackend(b Backend) {
	ActiveBackend = b
	switch b {
	case BackendUnrolled:
		fastSSD = ssdUnrolled4
		fastSAD = sadUnrolled4
	default:
		fastSSD = ssdScalar
		fastSAD = sadScalar
	}
}
