package bytecode

import "github.com/sievegate/sievegate/sieve/ir"

// VarString and VarStringList encode the variables extension's
// interpolated-string representation (ir.VarString) so the VM can
// resolve "${name}" references against its own runtime scope instead
// of the compiler's.

func (w *Writer) VarString(vs *ir.VarString) {
	w.Uvarint(uint64(len(vs.Parts)))
	for _, p := range vs.Parts {
		if p.Literal {
			w.buf = append(w.buf, 0)
			w.String(p.Text)
		} else {
			w.buf = append(w.buf, 1)
			w.String(p.Name)
		}
	}
}

func (w *Writer) VarStringList(list []*ir.VarString) {
	w.Uvarint(uint64(len(list)))
	for _, vs := range list {
		w.VarString(vs)
	}
}

func (r *Reader) VarString() (*ir.VarString, error) {
	n, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	parts := make([]ir.StringPart, 0, n)
	for i := uint64(0); i < n; i++ {
		if r.pos >= len(r.buf) {
			return nil, &ErrCorrupt{Reason: "truncated varstring part tag"}
		}
		tag := r.buf[r.pos]
		r.pos++
		s, err := r.String()
		if err != nil {
			return nil, err
		}
		if tag == 0 {
			parts = append(parts, ir.StringPart{Literal: true, Text: s})
		} else {
			parts = append(parts, ir.StringPart{Literal: false, Name: s})
		}
	}
	return &ir.VarString{Parts: parts}, nil
}

func (r *Reader) VarStringList() ([]*ir.VarString, error) {
	n, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	out := make([]*ir.VarString, 0, n)
	for i := uint64(0); i < n; i++ {
		vs, err := r.VarString()
		if err != nil {
			return nil, err
		}
		out = append(out, vs)
	}
	return out, nil
}
