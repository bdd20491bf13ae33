// Package bytecode defines the stack machine's binary image format: the
// header, the checksum trailer, and the encodings for signed numbers
// and unsigned addresses used in the instruction stream. Hollerith
// strings are not handled here. It is a pure data contract with no knowledge of opcodes or
// execution, shared unchanged by the assembler, the VM and the
// disassembler, split out into its own package since the format is an
// independent leaf component with no dependency on opcode semantics.
package bytecode

import "github.com/pkg/errors"

const (
	// Magic is the two-byte format identifier at the start of every image.
	Magic = "SM"
	// Version is the two-ASCII-digit format version tag.
	Version = "11"
	// HeaderLen is the number of header bytes preceding the body.
	HeaderLen = 4
	// MaxLen is the largest image this format can address.
	MaxLen = 65535

	// NumberMin and NumberMax bound the signed 16-bit literal encoding.
	NumberMin = -32767
	NumberMax = 32767
	// AddrMax bounds the unsigned 16-bit address encoding.
	AddrMax = 65535
)

// Image is the complete byte sequence: header, body and trailing
// checksum. A well-formed Image always satisfies Validate.
type Image []byte

// FormatError reports a structural defect in an image: a bad header, a
// wrong version, or a bad checksum.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string { return "bytecode: " + e.Reason }

// NewHeader returns a freshly allocated image containing only the
// 4-byte header ("SM" + Version), ready for a body to be appended.
func NewHeader() Image {
	img := make(Image, 0, HeaderLen+256)
	img = append(img, Magic...)
	img = append(img, Version...)
	return img
}

// Validate checks the header magic, the version tag and the trailing
// checksum. It does not check opcode validity or instruction widths;
// that is the VM's and disassembler's job.
func (img Image) Validate() error {
	if len(img) < HeaderLen+1 {
		return &FormatError{"image shorter than header+checksum"}
	}
	if len(img) > MaxLen {
		return &FormatError{"image exceeds maximum size"}
	}
	if string(img[0:2]) != Magic {
		return &FormatError{"bad header magic"}
	}
	if string(img[2:4]) != Version {
		return &FormatError{"wrong version"}
	}
	want := img.computedChecksum()
	got := img[len(img)-1]
	if want != got {
		return &FormatError{"bad checksum"}
	}
	return nil
}

// computedChecksum sums every byte except the trailing checksum byte
// itself, mod 256.
func (img Image) computedChecksum() byte {
	var sum byte
	for _, b := range img[:len(img)-1] {
		sum += b
	}
	return sum
}

// Finalize appends the trailing checksum byte to a body that does not
// yet have one. It must be called exactly once, after all body bytes
// have been emitted.
func (img Image) Finalize() Image {
	var sum byte
	for _, b := range img {
		sum += b
	}
	return append(img, sum)
}

// EncodeNumber splits a signed value in [-32767, 32767] into the two
// sign-magnitude bytes used for the `number` literal: the high bit of
// the first byte is the sign (1 = negative), the remaining 15 bits plus
// the second byte hold the magnitude.
func EncodeNumber(n int) (hi, lo byte, err error) {
	if n < NumberMin || n > NumberMax {
		return 0, 0, errors.Errorf("bytecode: number %d out of range [%d,%d]", n, NumberMin, NumberMax)
	}
	sign := byte(0)
	mag := n
	if mag < 0 {
		sign = 0x80
		mag = -mag
	}
	return sign | byte(mag>>8), byte(mag & 0xff), nil
}

// DecodeNumber reverses EncodeNumber. "-0" (sign bit set, zero
// magnitude) decodes to 0, as required by spec.
func DecodeNumber(hi, lo byte) int {
	sign := hi&0x80 != 0
	mag := int(hi&0x7f)<<8 | int(lo)
	if sign {
		return -mag
	}
	return mag
}

// EncodeAddr splits an unsigned 16-bit address into big-endian bytes.
func EncodeAddr(a int) (hi, lo byte, err error) {
	if a < 0 || a > AddrMax {
		return 0, 0, errors.Errorf("bytecode: address %d out of range [0,%d]", a, AddrMax)
	}
	return byte(a >> 8), byte(a & 0xff), nil
}

// DecodeAddr reverses EncodeAddr.
func DecodeAddr(hi, lo byte) int {
	return int(hi)<<8 | int(lo)
}
