// Package sdnv implements the Self-Delimiting Numeric Value encoding used
// throughout Bundle Protocol wire formats: 7 value bits per byte, high bit
// set on every byte but the last.
//
// This is one of the collaborators spec.md places deliberately out of the
// custody/retransmission core's scope; the core only ever calls Encode and
// Decode against a []byte it owns, so this package stays intentionally
// small and has no dependency on the rest of the module.
package sdnv

import "github.com/groundstation/bplib/pkg/bpstatus"

// MaxBytes bounds a single SDNV encoding of a uint64: ceil(64/7) = 10.
const MaxBytes = 10

// Encode appends the SDNV encoding of v to dst and returns the result.
func Encode(dst []byte, v uint64) []byte {
	var buf [MaxBytes]byte
	i := MaxBytes
	i--
	buf[i] = byte(v & 0x7f)
	v >>= 7
	for v > 0 {
		i--
		buf[i] = byte(v&0x7f) | 0x80
		v >>= 7
	}
	return append(dst, buf[i:]...)
}

// Decode reads one SDNV value from the front of b.
//
// It returns the decoded value, the number of bytes consumed, and a flags
// word with bpstatus.Incomplete set if b ran out before a terminating byte
// was seen, or bpstatus.SDNVOverflow set if the value would not fit in a
// uint64.
func Decode(b []byte) (value uint64, n int, flags bpstatus.Flags) {
	for n < len(b) {
		if value>>57 != 0 {
			flags |= bpstatus.SDNVOverflow
		}
		c := b[n]
		n++
		value = (value << 7) | uint64(c&0x7f)
		if c&0x80 == 0 {
			return value, n, flags
		}
	}
	flags |= bpstatus.Incomplete
	return value, n, flags
}

// Len returns the number of bytes Encode would emit for v.
func Len(v uint64) int {
	n := 1
	v >>= 7
	for v > 0 {
		n++
		v >>= 7
	}
	return n
}
