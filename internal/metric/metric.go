// Package metric implements the patch dissimilarity measures used by the
// correspondence solver.
//
// All measures compare two square patches of side `size` stored in 8-bit
// interleaved buffers. A patch is addressed by the top-left coordinate of its
// footprint and the row stride (in bytes) of the buffer holding it, so
// sub-regions of larger images are compared without copying. A patch may
// also be a flat buffer of exactly size*size*channels bytes, which is the
// same thing with stride size*channels.
//
// Scores are non-negative integers; lower means more similar. All kernels
// are pure and deterministic.
package metric

import (
	"errors"
	"fmt"
	"strings"
)

// Kind selects a dissimilarity measure.
type Kind int

const (
	SSD         Kind = iota // sum of squared differences
	ZeroMeanSSD             // SSD after removing each patch's per-channel mean
	SAD                     // sum of absolute differences
)

// ErrUnknownKind is returned by ParseKind for unrecognised names.
var ErrUnknownKind = errors.New("unknown metric")

func (k Kind) String() string {
	switch k {
	case SSD:
		return "ssd"
	case ZeroMeanSSD:
		return "zeromean"
	case SAD:
		return "sad"
	default:
		return "unknown"
	}
}

// ParseKind maps a configuration name to a Kind. Matching is
// case-insensitive; "plain" is accepted as an alias for "ssd".
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "ssd", "plain":
		return SSD, nil
	case "zeromean", "zero-mean", "zmssd":
		return ZeroMeanSSD, nil
	case "sad":
		return SAD, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
}

// MaxPatchSize bounds the patch side so that every score fits in a uint32
// for three-channel imagery.
const MaxPatchSize = 63

// Func compares two patches whose first bytes are a[0] and b[0].
type Func func(a []uint8, aStride int, b []uint8, bStride int, channels, size int) uint32

// Kernel returns the comparison function for k. It panics on an unknown
// kind; callers validate kinds with ParseKind or Kind.Valid first.
func Kernel(k Kind) Func {
	switch k {
	case SSD:
		return func(a []uint8, aStride int, b []uint8, bStride int, channels, size int) uint32 {
			return fastSSD(a, aStride, b, bStride, size*channels, size)
		}
	case ZeroMeanSSD:
		return zeroMeanSSD
	case SAD:
		return func(a []uint8, aStride int, b []uint8, bStride int, channels, size int) uint32 {
			return fastSAD(a, aStride, b, bStride, size*channels, size)
		}
	default:
		panic(fmt.Sprintf("metric: unknown kind %d", int(k)))
	}
}

// Valid reports whether k names an implemented measure.
func (k Kind) Valid() bool {
	return k == SSD || k == ZeroMeanSSD || k == SAD
}

// Region compares the patch with top-left (ax, ay) in a against the patch
// with top-left (bx, by) in b. Both buffers share the channel count.
func Region(k Kind, a []uint8, aStride, ax, ay int, b []uint8, bStride, bx, by, channels, size int) uint32 {
	return Kernel(k)(a[ay*aStride+ax*channels:], aStride, b[by*bStride+bx*channels:], bStride, channels, size)
}

// Buffer compares the patch with top-left (x, y) in a against a flat patch
// buffer of size*size*channels bytes.
func Buffer(k Kind, a []uint8, aStride, x, y int, buf []uint8, channels, size int) uint32 {
	return Kernel(k)(a[y*aStride+x*channels:], aStride, buf, size*channels, channels, size)
}
