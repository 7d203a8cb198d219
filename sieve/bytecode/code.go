package bytecode

import (
	"encoding/binary"
	"fmt"
)

// Writer assembles block 1 (main code) one instruction at a time.
// codegen calls these in emission order; jump targets are patched via
// Jmp/PatchJump since Sieve control flow is forward-only within a
// block but if/elsif chains still need a fixup after the fact.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Bytes() []byte { return w.buf }

// Pos returns the current write offset, usable as a jump target.
func (w *Writer) Pos() int { return len(w.buf) }

func (w *Writer) Op(op Op) { w.buf = append(w.buf, byte(op)) }

// ExtOp emits the extension-marker byte followed by the activation
// index and the extension-local sub-opcode.
func (w *Writer) ExtOp(extIndex int, sub ExtOp) {
	w.buf = append(w.buf, byte(ExtMarker))
	w.Uvarint(uint64(extIndex))
	w.buf = append(w.buf, byte(sub))
}

func (w *Writer) Uvarint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	w.buf = append(w.buf, tmp[:n]...)
}

func (w *Writer) Int64(v int64) { w.Uvarint(uint64(v)) }

func (w *Writer) String(s string) {
	w.Uvarint(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *Writer) StringList(list []string) {
	w.Uvarint(uint64(len(list)))
	for _, s := range list {
		w.String(s)
	}
}

// Jmp reserves a 4-byte placeholder and returns its offset for a
// later PatchJump once the real target is known.
func (w *Writer) Jmp(op Op) int {
	w.Op(op)
	pos := len(w.buf)
	w.buf = append(w.buf, 0, 0, 0, 0)
	return pos
}

func (w *Writer) PatchJump(placeholder int, target int) {
	binary.BigEndian.PutUint32(w.buf[placeholder:placeholder+4], uint32(target))
}

// Reader walks a decoded code block. interp drives it one instruction
// at a time; any short read means the binary is corrupt.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

func (r *Reader) Pos() int    { return r.pos }
func (r *Reader) Len() int    { return len(r.buf) }
func (r *Reader) AtEnd() bool { return r.pos >= len(r.buf) }
func (r *Reader) Seek(pos int) error {
	if pos < 0 || pos > len(r.buf) {
		return &ErrCorrupt{Reason: "jump target out of range"}
	}
	r.pos = pos
	return nil
}

func (r *Reader) Op() (Op, error) {
	if r.pos >= len(r.buf) {
		return 0, &ErrCorrupt{Reason: "truncated instruction stream"}
	}
	op := Op(r.buf[r.pos])
	r.pos++
	return op, nil
}

func (r *Reader) ExtOp() (int, ExtOp, error) {
	idx, err := r.Uvarint()
	if err != nil {
		return 0, 0, err
	}
	if r.pos >= len(r.buf) {
		return 0, 0, &ErrCorrupt{Reason: "truncated ext sub-opcode"}
	}
	sub := ExtOp(r.buf[r.pos])
	r.pos++
	return int(idx), sub, nil
}

func (r *Reader) Uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, &ErrCorrupt{Reason: "invalid varint"}
	}
	r.pos += n
	return v, nil
}

func (r *Reader) Int64() (int64, error) {
	v, err := r.Uvarint()
	return int64(v), err
}

func (r *Reader) String() (string, error) {
	l, err := r.Uvarint()
	if err != nil {
		return "", err
	}
	if r.pos+int(l) > len(r.buf) {
		return "", &ErrCorrupt{Reason: "truncated string operand"}
	}
	s := string(r.buf[r.pos : r.pos+int(l)])
	r.pos += int(l)
	return s, nil
}

func (r *Reader) StringList() ([]string, error) {
	n, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		s, err := r.String()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Jmp32 reads a 4-byte absolute jump target.
func (r *Reader) Jmp32() (int, error) {
	if r.pos+4 > len(r.buf) {
		return 0, &ErrCorrupt{Reason: "truncated jump operand"}
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return int(v), nil
}

func (r *Reader) Disassemble() string {
	return fmt.Sprintf("<code block, %d bytes>", len(r.buf))
}
