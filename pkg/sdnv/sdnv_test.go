package sdnv

import "testing"

func TestRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 255, 16384, 1 << 20, 1<<35 - 1, 1 << 40}
	for _, v := range values {
		enc := Encode(nil, v)
		if len(enc) != Len(v) {
			t.Fatalf("Len(%d)=%d, encoded %d bytes", v, Len(v), len(enc))
		}
		got, n, flags := Decode(enc)
		if flags != 0 {
			t.Fatalf("decode(%d) set flags %v", v, flags)
		}
		if n != len(enc) {
			t.Fatalf("decode(%d) consumed %d, want %d", v, n, len(enc))
		}
		if got != v {
			t.Fatalf("round trip %d -> %x -> %d", v, enc, got)
		}
	}
}

func TestDecodeIncomplete(t *testing.T) {
	_, _, flags := Decode([]byte{0x81, 0x82})
	if flags == 0 {
		t.Fatal("expected Incomplete flag on truncated continuation")
	}
}

func TestEncodeAppendsToDst(t *testing.T) {
	dst := []byte{0xff}
	out := Encode(dst, 300)
	if len(out) != 1+Len(300) {
		t.Fatalf("unexpected length %d", len(out))
	}
	if out[0] != 0xff {
		t.Fatal("Encode clobbered existing prefix")
	}
}
