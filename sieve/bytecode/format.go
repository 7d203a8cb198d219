package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Magic and ABIVersion identify the container format (spec §4.E).
// BinCorrupt is returned for anything that doesn't start with Magic;
// a version mismatch is reported distinctly so a caller can decide
// whether to recompile rather than just rejecting the binary.
var Magic = [6]byte{'S', 'I', 'E', 'V', 'E', 0}

const ABIVersion = 1

// ErrVersionMismatch is returned by Decode when the magic matches but
// the ABI version does not.
type ErrVersionMismatch struct{ Got uint8 }

func (e *ErrVersionMismatch) Error() string {
	return fmt.Sprintf("bytecode ABI version %d unsupported (want %d)", e.Got, ABIVersion)
}

// ErrCorrupt wraps any structural decode failure.
type ErrCorrupt struct{ Reason string }

func (e *ErrCorrupt) Error() string { return "corrupt bytecode: " + e.Reason }

// Image is the decoded block table of one compiled script. Block 0 is
// always the extension table; block 1 is always the main code stream.
// Additional blocks (currently unused) are reserved for future
// per-include sub-images.
type Image struct {
	Blocks [][]byte
}

const (
	BlockExtTable = 0
	BlockMainCode = 1
)

// Encode serializes the image to the on-disk container format.
func (img *Image) Encode() []byte {
	var body bytes.Buffer
	offsets := make([][2]uint32, len(img.Blocks))
	off := uint32(0)
	for i, b := range img.Blocks {
		offsets[i] = [2]uint32{off, uint32(len(b))}
		body.Write(b)
		off += uint32(len(b))
	}

	var out bytes.Buffer
	out.Write(Magic[:])
	out.WriteByte(ABIVersion)
	binary.Write(&out, binary.BigEndian, uint32(len(img.Blocks)))
	for _, o := range offsets {
		binary.Write(&out, binary.BigEndian, o[0])
		binary.Write(&out, binary.BigEndian, o[1])
	}
	out.Write(body.Bytes())
	return out.Bytes()
}

// Decode parses raw bytes back into an Image. Any structural problem
// (short read, bad magic, offsets out of range) yields ErrCorrupt;
// interp maps that to Status BinCorrupt.
func Decode(data []byte) (*Image, error) {
	if len(data) < len(Magic)+1+4 {
		return nil, &ErrCorrupt{Reason: "short header"}
	}
	if !bytes.Equal(data[:len(Magic)], Magic[:]) {
		return nil, &ErrCorrupt{Reason: "bad magic"}
	}
	pos := len(Magic)
	version := data[pos]
	pos++
	if version != ABIVersion {
		return nil, &ErrVersionMismatch{Got: version}
	}
	blockCount := binary.BigEndian.Uint32(data[pos:])
	pos += 4

	type ofl struct{ off, length uint32 }
	table := make([]ofl, blockCount)
	for i := range table {
		if pos+8 > len(data) {
			return nil, &ErrCorrupt{Reason: "truncated block table"}
		}
		table[i].off = binary.BigEndian.Uint32(data[pos:])
		table[i].length = binary.BigEndian.Uint32(data[pos+4:])
		pos += 8
	}

	bodyStart := pos
	blocks := make([][]byte, blockCount)
	for i, e := range table {
		start := bodyStart + int(e.off)
		end := start + int(e.length)
		if start < bodyStart || end > len(data) || end < start {
			return nil, &ErrCorrupt{Reason: "block out of range"}
		}
		blocks[i] = data[start:end]
	}
	if blockCount < 2 {
		return nil, &ErrCorrupt{Reason: "missing required blocks"}
	}
	return &Image{Blocks: blocks}, nil
}

// EncodeExtTable renders block 0: a count followed by length-prefixed
// extension names, in activation-index order.
func EncodeExtTable(names []string) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(len(names)))
	for _, n := range names {
		binary.Write(&buf, binary.BigEndian, uint16(len(n)))
		buf.WriteString(n)
	}
	return buf.Bytes()
}

// DecodeExtTable parses block 0 back into its extension names.
func DecodeExtTable(block []byte) ([]string, error) {
	if len(block) < 4 {
		return nil, &ErrCorrupt{Reason: "truncated extension table"}
	}
	count := binary.BigEndian.Uint32(block)
	pos := 4
	names := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		if pos+2 > len(block) {
			return nil, &ErrCorrupt{Reason: "truncated extension name length"}
		}
		l := int(binary.BigEndian.Uint16(block[pos:]))
		pos += 2
		if pos+l > len(block) {
			return nil, &ErrCorrupt{Reason: "truncated extension name"}
		}
		names = append(names, string(block[pos:pos+l]))
		pos += l
	}
	return names, nil
}
