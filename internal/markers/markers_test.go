package markers

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestSectionNamePattern(t *testing.T) {
	m := SectionNamePattern.FindStringSubmatch(".hash-patch.crackme.c:142")
	if m == nil {
		t.Fatalf("expected section name to match")
	}
	if m[1] != "crackme.c" || m[2] != "142" {
		t.Fatalf("unexpected submatches: %v", m)
	}

	if SectionNamePattern.MatchString(".text") {
		t.Fatalf("unrelated section name should not match")
	}
}

func buildDescriptor(action int64, meta []byte) []byte {
	buf := make([]byte, descriptorSize)
	binary.LittleEndian.PutUint64(buf[0:8], 0x401000)
	binary.LittleEndian.PutUint64(buf[8:16], 0x401010)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(action))
	copy(buf[24:], meta)
	return buf
}

func TestParseDescriptorIncremental(t *testing.T) {
	meta := make([]byte, MetaSize)
	copy(meta, []byte("stage1\x00"))
	raw := buildDescriptor(3, meta)

	d, err := ParseDescriptor(raw)
	if err != nil {
		t.Fatalf("ParseDescriptor failed: %v", err)
	}
	if d.Action != 3 {
		t.Fatalf("expected action 3, got %d", d.Action)
	}
	if d.CString() != "stage1" {
		t.Fatalf("expected chain name 'stage1', got %q", d.CString())
	}
}

func TestParseDescriptorXorToKnown(t *testing.T) {
	meta := make([]byte, MetaSize)
	binary.LittleEndian.PutUint64(meta[0:8], 0xdeadbeefcafebabe)
	binary.LittleEndian.PutUint64(meta[8:16], 2)
	copy(meta[16:], []byte("stage1\x00"))
	raw := buildDescriptor(int64(ActionXorToKnown), meta)

	d, err := ParseDescriptor(raw)
	if err != nil {
		t.Fatalf("ParseDescriptor failed: %v", err)
	}
	x := d.XorToKnown()
	if x.RequiredValue != 0xdeadbeefcafebabe || x.Order != 2 || x.Sequence != "stage1" {
		t.Fatalf("unexpected decode: %+v", x)
	}
}

func TestParseDescriptorInsertMurmur(t *testing.T) {
	meta := make([]byte, MetaSize)
	expected := []byte{0x01, 0x02, 0x03, 0x04}
	binary.LittleEndian.PutUint32(meta[0:4], uint32(len(expected)))
	binary.LittleEndian.PutUint64(meta[4:12], 5)
	copy(meta[12:], expected)
	copy(meta[12+len(expected):], []byte("chainX\x00"))
	raw := buildDescriptor(int64(ActionInsertMurmur), meta)

	d, err := ParseDescriptor(raw)
	if err != nil {
		t.Fatalf("ParseDescriptor failed: %v", err)
	}
	im := d.InsertMurmur()
	if !bytes.Equal(im.ExpectedBuffer, expected) {
		t.Fatalf("expected buffer %v, got %v", expected, im.ExpectedBuffer)
	}
	if im.Order != 5 || im.Sequence != "chainX" {
		t.Fatalf("unexpected decode: %+v", im)
	}
}

func TestProtectedStringSectionPattern(t *testing.T) {
	m := ProtectedStringSectionPattern.FindStringSubmatch(".protected-string-entry.3")
	if m == nil || m[1] != "3" {
		t.Fatalf("unexpected submatches: %v", m)
	}

	if ProtectedStringSectionPattern.MatchString(".text") {
		t.Fatalf("unrelated section name should not match")
	}
}

func TestParseProtectedStringDescriptor(t *testing.T) {
	raw := make([]byte, protectedStringHeaderSize)
	binary.LittleEndian.PutUint64(raw[0:8], 0x601000)
	binary.LittleEndian.PutUint32(raw[8:12], 16)
	raw = append(raw, []byte("flag{test}\x00")...)

	d, err := ParseProtectedStringDescriptor(raw)
	if err != nil {
		t.Fatalf("ParseProtectedStringDescriptor failed: %v", err)
	}
	if d.ReservationVA != 0x601000 || d.ReservationSize != 16 || d.Plaintext != "flag{test}" {
		t.Fatalf("unexpected decode: %+v", d)
	}
}

func TestLocateReservationExactRun(t *testing.T) {
	scoped := bytes.Repeat([]byte{0x90}, 32)
	entry, err := LocateReservation(scoped, 0x401000, 32)
	if err != nil {
		t.Fatalf("LocateReservation failed: %v", err)
	}
	if entry.VA != 0x401000 {
		t.Fatalf("expected VA 0x401000, got 0x%x", entry.VA)
	}
}

func TestLocateReservationResumesPastFailedRun(t *testing.T) {
	// A short run of NOPs (not enough to satisfy the preamble check) is
	// immediately followed by a real, fully-long run.
	scoped := append(bytes.Repeat([]byte{0x90}, 4), 0xCC)
	scoped = append(scoped, bytes.Repeat([]byte{0x90}, 16)...)

	entry, err := LocateReservation(scoped, 0, 16)
	if err != nil {
		t.Fatalf("LocateReservation failed: %v", err)
	}
	if entry.VA != 5 {
		t.Fatalf("expected match to resume at offset 5 (after the 0xCC), got %d", entry.VA)
	}
}

func TestLocateReservationNotFound(t *testing.T) {
	scoped := bytes.Repeat([]byte{0xCC}, 32)
	if _, err := LocateReservation(scoped, 0, 16); err == nil {
		t.Fatalf("expected an error when no NOP run is present")
	}
}
