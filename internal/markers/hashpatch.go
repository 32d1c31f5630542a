package markers

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"regexp"
)

// MetaSize is the fixed payload size every hash-patch section descriptor
// carries, regardless of which action variant it encodes.
const MetaSize = 256

// SectionNamePattern matches the section names the compiler emits for each
// hash-patch call site: .hash-patch.<source file>:<line>
var SectionNamePattern = regexp.MustCompile(`^\.hash-patch\.(?P<filename>.+):(?P<line>[0-9]+)$`)

// Action identifies which hash-patch descriptor variant a section encodes.
// Non-negative values are incremental-integrity chain orders; the negative
// values below are the special actions.
type Action int64

const (
	ActionGenerator      Action = -1
	ActionXorToKnown     Action = -2
	ActionInsertMurmur   Action = -3
)

// Descriptor is a parsed .hash-patch.* section, still in its raw
// action/meta form before being interpreted into a concrete variant.
type Descriptor struct {
	StartOfEntry uint64
	EndOfEntry   uint64
	Action       Action
	Meta         [MetaSize]byte
}

// descriptorSize is start(8) + end(8) + action(8) + meta(256).
const descriptorSize = 8 + 8 + 8 + MetaSize

// ParseDescriptor decodes the fixed-layout struct a .hash-patch.* section
// holds: {start uint64, end uint64, action int64, meta [256]byte}.
func ParseDescriptor(raw []byte) (Descriptor, error) {
	if len(raw) < descriptorSize {
		return Descriptor{}, fmt.Errorf("markers: hash-patch section too small (%d bytes, want %d)", len(raw), descriptorSize)
	}

	var d Descriptor
	d.StartOfEntry = binary.LittleEndian.Uint64(raw[0:8])
	d.EndOfEntry = binary.LittleEndian.Uint64(raw[8:16])
	d.Action = Action(int64(binary.LittleEndian.Uint64(raw[16:24])))
	copy(d.Meta[:], raw[24:24+MetaSize])
	return d, nil
}

// CString decodes the meta field as a NUL-stripped ASCII string - used for
// the incremental-integrity chain name.
func (d Descriptor) CString() string {
	idx := bytes.IndexByte(d.Meta[:], 0)
	if idx < 0 {
		idx = len(d.Meta)
	}
	return string(d.Meta[:idx])
}

// UnsignedLong decodes the first 8 bytes of meta as a little-endian
// uint64 - used by the HashGenerator variant for its volatile-qword count.
func (d Descriptor) UnsignedLong() uint64 {
	return binary.LittleEndian.Uint64(d.Meta[:8])
}

// XorToKnownMeta is the decoded payload of an ActionXorToKnown descriptor:
// <QQ{N}s> where N = MetaSize - 16.
type XorToKnownMeta struct {
	RequiredValue uint64
	Order         uint64
	Sequence      string
}

// XorToKnown decodes the meta field for an ActionXorToKnown descriptor.
func (d Descriptor) XorToKnown() XorToKnownMeta {
	requiredValue := binary.LittleEndian.Uint64(d.Meta[0:8])
	order := binary.LittleEndian.Uint64(d.Meta[8:16])
	seqBytes := d.Meta[16:]
	idx := bytes.IndexByte(seqBytes, 0)
	if idx < 0 {
		idx = len(seqBytes)
	}
	return XorToKnownMeta{RequiredValue: requiredValue, Order: order, Sequence: string(seqBytes[:idx])}
}

// InsertMurmurMeta is the decoded payload of an ActionInsertMurmur
// descriptor: <IQ{N}s> where N = MetaSize - 12, split into the expected
// buffer bytes (sizeOfBuffer long) followed by the chain-name sequence.
type InsertMurmurMeta struct {
	ExpectedBuffer []byte
	Order          uint64
	Sequence       string
}

// InsertMurmur decodes the meta field for an ActionInsertMurmur descriptor.
func (d Descriptor) InsertMurmur() InsertMurmurMeta {
	sizeOfBuffer := int(binary.LittleEndian.Uint32(d.Meta[0:4]))
	order := binary.LittleEndian.Uint64(d.Meta[4:12])
	rest := d.Meta[12:]

	if sizeOfBuffer > len(rest) {
		sizeOfBuffer = len(rest)
	}

	buffer := append([]byte(nil), rest[:sizeOfBuffer]...)
	seqBytes := rest[sizeOfBuffer:]
	idx := bytes.IndexByte(seqBytes, 0)
	if idx < 0 {
		idx = len(seqBytes)
	}
	return InsertMurmurMeta{ExpectedBuffer: buffer, Order: order, Sequence: string(seqBytes[:idx])}
}
