package bpwire

import "testing"

func TestRoundTripPlain(t *testing.T) {
	b := Bundle{Payload: []byte("hello bundle")}
	enc := Encode(b)
	if len(enc) != b.Size() {
		t.Fatalf("Size() = %d, encoded %d", b.Size(), len(enc))
	}
	got, err := Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Payload) != "hello bundle" {
		t.Fatalf("got %q", got.Payload)
	}
	if got.RequestsCustody || got.AdminRecord {
		t.Fatal("unexpected flags set")
	}
}

func TestRoundTripCustodyFields(t *testing.T) {
	b := Bundle{
		RequestsCustody: true,
		CID:             42,
		ExprTime:        1700000000,
		Payload:         []byte("payload"),
	}
	enc := Encode(b)
	got, err := Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if !got.RequestsCustody || got.CID != 42 || got.ExprTime != 1700000000 {
		t.Fatalf("got %+v", got)
	}
	if got.CTEBOffset == 0 {
		t.Fatal("expected non-zero CTEBOffset when RequestsCustody is set")
	}
}

func TestIntegrityCheckRoundTrip(t *testing.T) {
	b := Bundle{IntegrityCheck: true, Payload: []byte("integrity-checked")}
	enc := Encode(b)
	got, err := Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Payload) != "integrity-checked" {
		t.Fatalf("got %q", got.Payload)
	}
}

func TestIntegrityCheckDetectsCorruption(t *testing.T) {
	b := Bundle{IntegrityCheck: true, Payload: []byte("integrity-checked")}
	enc := Encode(b)
	enc[len(enc)-5] ^= 0xff
	if _, err := Decode(enc); err != ErrIntegrityFailed {
		t.Fatalf("got %v, want ErrIntegrityFailed", err)
	}
}

func TestDecodeTruncated(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err != ErrTruncated {
		t.Fatalf("got %v, want ErrTruncated", err)
	}
}

func TestPatchCIDRewritesInPlace(t *testing.T) {
	b := Bundle{RequestsCustody: true, CID: 1, Payload: []byte("x")}
	enc := Encode(b)
	decoded, err := Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if err := PatchCID(enc, decoded.CTEBOffset, 99); err != nil {
		t.Fatal(err)
	}
	got, err := Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if got.CID != 99 {
		t.Fatalf("got CID %d, want 99", got.CID)
	}
}

func TestPatchCIDRejectsNoCTEB(t *testing.T) {
	b := Bundle{Payload: []byte("x")}
	enc := Encode(b)
	if err := PatchCID(enc, 0, 5); err == nil {
		t.Fatal("expected error patching a bundle without a CTEB")
	}
}

func TestAdminRecordFlag(t *testing.T) {
	b := Bundle{AdminRecord: true, Payload: []byte("acs-record-bytes")}
	enc := Encode(b)
	got, err := Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if !got.AdminRecord {
		t.Fatal("expected AdminRecord to round-trip")
	}
}
