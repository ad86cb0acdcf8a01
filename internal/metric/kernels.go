package metric

// Row-wise kernels. rowLen is the number of bytes compared per row
// (size*channels) and rows the number of patch rows.

func ssdScalar(a []uint8, aStride int, b []uint8, bStride int, rowLen, rows int) uint32 {
	var sum uint32
	for y := 0; y < rows; y++ {
		ra := a[y*aStride : y*aStride+rowLen]
		rb := b[y*bStride : y*bStride+rowLen]
		for i, va := range ra {
			d := int32(va) - int32(rb[i])
			sum += uint32(d * d)
		}
	}
	return sum
}

func ssdUnrolled4(a []uint8, aStride int, b []uint8, bStride int, rowLen, rows int) uint32 {
	var s0, s1, s2, s3 uint32
	unroll := rowLen &^ 3
	for y := 0; y < rows; y++ {
		ra := a[y*aStride : y*aStride+rowLen]
		rb := b[y*bStride : y*bStride+rowLen]

		i := 0
		for ; i < unroll; i += 4 {
			d0 := int32(ra[i+0]) - int32(rb[i+0])
			d1 := int32(ra[i+1]) - int32(rb[i+1])
			d2 := int32(ra[i+2]) - int32(rb[i+2])
			d3 := int32(ra[i+3]) - int32(rb[i+3])
			s0 += uint32(d0 * d0)
			s1 += uint32(d1 * d1)
			s2 += uint32(d2 * d2)
			s3 += uint32(d3 * d3)
		}
		for ; i < rowLen; i++ {
			d := int32(ra[i]) - int32(rb[i])
			s0 += uint32(d * d)
		}
	}
	return s0 + s1 + s2 + s3
}

func sadScalar(a []uint8, aStride int, b []uint8, bStride int, rowLen, rows int) uint32 {
	var sum uint32
	for y := 0; y < rows; y++ {
		ra := a[y*aStride : y*aStride+rowLen]
		rb := b[y*bStride : y*bStride+rowLen]
		for i, va := range ra {
			sum += absDiff(va, rb[i])
		}
	}
	return sum
}

func sadUnrolled4(a []uint8, aStride int, b []uint8, bStride int, rowLen, rows int) uint32 {
	var s0, s1, s2, s3 uint32
	unroll := rowLen &^ 3
	for y := 0; y < rows; y++ {
		ra := a[y*aStride : y*aStride+rowLen]
		rb := b[y*bStride : y*bStride+rowLen]

		i := 0
		for ; i < unroll; i += 4 {
			s0 += absDiff(ra[i+0], rb[i+0])
			s1 += absDiff(ra[i+1], rb[i+1])
			s2 += absDiff(ra[i+2], rb[i+2])
			s3 += absDiff(ra[i+3], rb[i+3])
		}
		for ; i < rowLen; i++ {
			s0 += absDiff(ra[i], rb[i])
		}
	}
	return s0 + s1 + s2 + s3
}

func absDiff(a, b uint8) uint32 {
	if a > b {
		return uint32(a - b)
	}
	return uint32(b - a)
}

// zeroMeanSSD computes, per channel, sum(d^2) - sum(d)^2/n where d is the
// pixel difference and n the pixel count, and returns the rounded total.
// This equals the SSD between the two patches after each has its own
// channel mean removed.
func zeroMeanSSD(a []uint8, aStride int, b []uint8, bStride int, channels, size int) uint32 {
	var sum, sumSq [4]int64
	rowLen := size * channels
	for y := 0; y < size; y++ {
		ra := a[y*aStride : y*aStride+rowLen]
		rb := b[y*bStride : y*bStride+rowLen]
		for i := 0; i < rowLen; i += channels {
			for c := 0; c < channels; c++ {
				d := int64(ra[i+c]) - int64(rb[i+c])
				sum[c] += d
				sumSq[c] += d * d
			}
		}
	}

	n := int64(size * size)
	var total int64
	for c := 0; c < channels; c++ {
		total += (n*sumSq[c] - sum[c]*sum[c] + n/2) / n
	}
	return uint32(total)
}
