// Package bpwire encodes and decodes the bundle records the channel
// engine stores and transmits: a primary header carrying the flags and
// optional custodian (CTEB) and integrity (BIB) blocks, followed by the
// payload.
//
// This is one of the collaborators spec.md keeps deliberately out of the
// custody/retransmission core's scope (bit-level block encoding and CRC
// are named only by interface). The layout here is therefore a simple,
// XDR-framed record rather than a bit-accurate BPv6 CBHE encoding —
// enough for the core to push real bytes through real storage without
// claiming wire interoperability with other BP stacks.
package bpwire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// Flag bits occupying the header's flags word.
const (
	FlagAdminRecord = 1 << iota
	FlagRequestCustody
	FlagIntegrityCheck
	FlagFragment
)

// flagsLen is the byte width of wireHeader.Flags (an XDR unsigned int),
// which is also the fixed offset of the CID field that follows it.
const (
	flagsLen  = 4
	cidOffset = flagsLen
	crcLen    = 4
)

var (
	ErrTruncated       = errors.New("bpwire: buffer truncated")
	ErrIntegrityFailed = errors.New("bpwire: integrity check failed")
)

// wireHeader is the XDR struct Encode/Decode marshal: a fixed flags/cid/
// exprtime prefix (so PatchCID can always find the CID at a constant
// offset) followed by the payload as an XDR variable-length opaque.
type wireHeader struct {
	Flags    uint32
	CID      uint64
	ExprTime int64
	Payload  []byte
}

// Bundle is the decoded form of a stored/transmitted record.
type Bundle struct {
	AdminRecord     bool // administrative record (carries an ACS payload)
	RequestsCustody bool // CTEB present; CID field at CTEBOffset is live
	IntegrityCheck  bool // a trailing CRC-32 (BIB stand-in) was written/verified
	CID             uint64
	ExprTime        int64 // unix seconds; 0 = never expires
	Payload         []byte

	// CTEBOffset is the byte offset of the CID field within the
	// encoded header, 0 if RequestsCustody is false — mirrors the
	// BundleDataRecord.cteboffset convention the channel engine keys
	// its "rewrite CID in place" step on.
	CTEBOffset uint32
}

// xdrOpaqueLen returns the number of bytes an n-byte XDR variable
// opaque occupies on the wire: a 4-byte length prefix plus n rounded up
// to the next 4-byte boundary.
func xdrOpaqueLen(n int) int {
	return 4 + ((n + 3) &^ 3)
}

// Size returns the number of bytes Encode would produce for b.
func (b Bundle) Size() int {
	n := flagsLen + 8 + 8 + xdrOpaqueLen(len(b.Payload))
	if b.IntegrityCheck {
		n += crcLen
	}
	return n
}

func headerFlags(b Bundle) uint32 {
	var flags uint32
	if b.AdminRecord {
		flags |= FlagAdminRecord
	}
	if b.RequestsCustody {
		flags |= FlagRequestCustody
	}
	if b.IntegrityCheck {
		flags |= FlagIntegrityCheck
	}
	return flags
}

// Encode serializes b into a freshly allocated byte slice.
func Encode(b Bundle) []byte {
	h := wireHeader{
		Flags:    headerFlags(b),
		CID:      b.CID,
		ExprTime: b.ExprTime,
		Payload:  b.Payload,
	}

	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &h); err != nil {
		// Every field of wireHeader is XDR-encodable by construction;
		// a Marshal failure here would mean go-xdr itself is broken.
		panic("bpwire: marshal: " + err.Error())
	}
	out := buf.Bytes()

	if b.IntegrityCheck {
		sum := crc32.ChecksumIEEE(out)
		tail := make([]byte, crcLen)
		binary.BigEndian.PutUint32(tail, sum)
		out = append(out, tail...)
	}
	return out
}

// Decode parses a record produced by Encode.
func Decode(data []byte) (Bundle, error) {
	if len(data) < flagsLen {
		return Bundle{}, ErrTruncated
	}
	flags := binary.BigEndian.Uint32(data[:flagsLen])
	integrity := flags&FlagIntegrityCheck != 0

	body := data
	if integrity {
		if len(data) < flagsLen+crcLen {
			return Bundle{}, ErrTruncated
		}
		cut := len(data) - crcLen
		body = data[:cut]
		want := binary.BigEndian.Uint32(data[cut:])
		if crc32.ChecksumIEEE(body) != want {
			return Bundle{}, ErrIntegrityFailed
		}
	}

	var h wireHeader
	if _, err := xdr.Unmarshal(bytes.NewReader(body), &h); err != nil {
		return Bundle{}, ErrTruncated
	}

	b := Bundle{
		AdminRecord:     h.Flags&FlagAdminRecord != 0,
		RequestsCustody: h.Flags&FlagRequestCustody != 0,
		IntegrityCheck:  integrity,
		CID:             h.CID,
		ExprTime:        h.ExprTime,
		Payload:         h.Payload,
	}
	if b.RequestsCustody {
		b.CTEBOffset = cidOffset
	}
	return b, nil
}

// PatchCID rewrites the CID field in an already-encoded header in place,
// used by the channel engine's retransmit path to assign a fresh CID to
// a bundle without re-encoding its payload. The CID field is an XDR
// hyper (big-endian uint64) at a fixed offset, so this is a direct byte
// overwrite rather than a full decode/re-encode round trip.
func PatchCID(encoded []byte, cteboffset uint32, cid uint64) error {
	if cteboffset == 0 {
		return errors.New("bpwire: bundle does not carry a CTEB")
	}
	if int(cteboffset)+8 > len(encoded) {
		return ErrTruncated
	}
	binary.BigEndian.PutUint64(encoded[cteboffset:], cid)
	return nil
}
