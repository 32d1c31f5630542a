package prng

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// OnePerLineDec renders one decimal value per line.
func OnePerLineDec(values []uint32) string {
	var b strings.Builder
	for _, v := range values {
		fmt.Fprintf(&b, "%d\n", v)
	}
	return b.String()
}

// OnePerLineHex renders one hex value per line.
func OnePerLineHex(values []uint32) string {
	var b strings.Builder
	for _, v := range values {
		fmt.Fprintf(&b, "0x%08x\n", v)
	}
	return b.String()
}

// CUintArray renders values as a C `unsigned int` array definition.
func CUintArray(name string, values []uint32) string {
	var b strings.Builder
	fmt.Fprintf(&b, "unsigned int %s[%d] = {\n", name, len(values))
	for i, v := range values {
		fmt.Fprintf(&b, "    0x%08x,", v)
		if (i+1)%8 == 0 {
			b.WriteByte('\n')
		}
	}
	if len(values)%8 != 0 {
		b.WriteByte('\n')
	}
	b.WriteString("};\n")
	return b.String()
}

// cCharArray renders values as a C `unsigned char` array, with each uint32
// expanded into 4 bytes via the supplied byte-order encoder.
func cCharArray(name string, values []uint32, order binary.ByteOrder) string {
	var b strings.Builder
	fmt.Fprintf(&b, "unsigned char %s[%d] = {\n", name, len(values)*4)
	count := 0
	for _, v := range values {
		var buf [4]byte
		order.PutUint32(buf[:], v)
		for _, by := range buf {
			fmt.Fprintf(&b, "    0x%02x,", by)
			count++
			if count%8 == 0 {
				b.WriteByte('\n')
			}
		}
	}
	if count%8 != 0 {
		b.WriteByte('\n')
	}
	b.WriteString("};\n")
	return b.String()
}

// CCharArrayLE renders values as a little-endian byte array.
func CCharArrayLE(name string, values []uint32) string {
	return cCharArray(name, values, binary.LittleEndian)
}

// CCharArrayBE renders values as a big-endian byte array.
func CCharArrayBE(name string, values []uint32) string {
	return cCharArray(name, values, binary.BigEndian)
}
