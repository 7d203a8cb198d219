package bytecode

import "github.com/sievegate/sievegate/sieve/ir"

// Test tags identify which test shape follows in the compact operand
// tree a test lowers to. Tests are not flattened into jump-threaded
// opcodes the way actions are: RFC 5228's anyof/allof short-circuit
// semantics are simple enough to execute by a small recursive walk,
// and encoding them that way keeps the main instruction stream free
// of the comparator/match-type/address-part plumbing every leaf test
// needs.
type TestTag byte

const (
	TestTrue TestTag = iota
	TestFalse
	TestNot
	TestAnyof
	TestAllof
	TestHeader
	TestAddress
	TestEnvelope
	TestExists
	TestSize
	TestString
)

// MatchSpec is the comparator/match-type/relational-op/address-part
// combination shared by header, address, envelope and string.
type MatchSpec struct {
	Comparator string
	MatchType  string
	RelOp      string
	AddrPart   string
}

func (w *Writer) matchSpec(m MatchSpec) {
	w.String(m.Comparator)
	w.String(m.MatchType)
	w.String(m.RelOp)
	w.String(m.AddrPart)
}

func (r *Reader) matchSpec() (MatchSpec, error) {
	var m MatchSpec
	var err error
	if m.Comparator, err = r.String(); err != nil {
		return m, err
	}
	if m.MatchType, err = r.String(); err != nil {
		return m, err
	}
	if m.RelOp, err = r.String(); err != nil {
		return m, err
	}
	if m.AddrPart, err = r.String(); err != nil {
		return m, err
	}
	return m, nil
}

// EncodeTest appends the test tree rooted at n to w. n must be a
// validated test node (ir.Node produced by validator.validateTest).
func (w *Writer) EncodeTest(n *ir.Node) {
	switch n.Name {
	case "true":
		w.buf = append(w.buf, byte(TestTrue))
	case "false":
		w.buf = append(w.buf, byte(TestFalse))
	case "not":
		w.buf = append(w.buf, byte(TestNot))
		w.EncodeTest(n.Pos1[0].Test)
	case "anyof", "allof":
		if n.Name == "anyof" {
			w.buf = append(w.buf, byte(TestAnyof))
		} else {
			w.buf = append(w.buf, byte(TestAllof))
		}
		children := n.Pos1[0].Tests
		w.Uvarint(uint64(len(children)))
		for _, c := range children {
			w.EncodeTest(c)
		}
	case "header":
		w.buf = append(w.buf, byte(TestHeader))
		w.matchSpec(tagSpec(n))
		w.VarStringList(n.Pos1[0].StrList)
		w.VarStringList(n.Pos1[1].StrList)
	case "address":
		w.buf = append(w.buf, byte(TestAddress))
		w.matchSpec(tagSpec(n))
		w.VarStringList(n.Pos1[0].StrList)
		w.VarStringList(n.Pos1[1].StrList)
	case "envelope":
		w.buf = append(w.buf, byte(TestEnvelope))
		w.matchSpec(tagSpec(n))
		w.VarStringList(n.Pos1[0].StrList)
		w.VarStringList(n.Pos1[1].StrList)
	case "exists":
		w.buf = append(w.buf, byte(TestExists))
		w.VarStringList(n.Pos1[0].StrList)
	case "size":
		w.buf = append(w.buf, byte(TestSize))
		dir := ""
		if a, ok := n.Tags["direction"]; ok && a.Str != nil {
			dir = a.Str.Literal()
		}
		w.String(dir)
		w.Int64(n.Pos1[0].Number)
	case "string":
		w.buf = append(w.buf, byte(TestString))
		w.matchSpec(tagSpec(n))
		w.VarStringList(n.Pos1[0].StrList)
		w.VarStringList(n.Pos1[1].StrList)
	default:
		// Unknown test names never reach codegen: the validator
		// rejects them first. Encode as FALSE defensively so a
		// programming error here fails closed, not open.
		w.buf = append(w.buf, byte(TestFalse))
	}
}

// BranchIfFalse emits OpBranchIfFalse, the encoded test tree for n,
// and a 4-byte jump-target placeholder, returning the placeholder's
// offset for a later PatchJump.
func (w *Writer) BranchIfFalse(n *ir.Node) int {
	w.Op(OpBranchIfFalse)
	w.EncodeTest(n)
	pos := len(w.buf)
	w.buf = append(w.buf, 0, 0, 0, 0)
	return pos
}

func tagSpec(n *ir.Node) MatchSpec {
	get := func(k string) string {
		if a, ok := n.Tags[k]; ok && a.Str != nil {
			return a.Str.Literal()
		}
		return ""
	}
	return MatchSpec{
		Comparator: get("comparator"),
		MatchType:  get("matchtype"),
		RelOp:      get("relop"),
		AddrPart:   get("addrpart"),
	}
}

// TestNode is the decoded, runtime-side mirror of EncodeTest's
// output. interp evaluates it directly; it never needs ir or ast.
type TestNode struct {
	Tag       TestTag
	Spec      MatchSpec
	Children  []*TestNode
	Strings1  []*ir.VarString
	Strings2  []*ir.VarString
	Number    int64
	Direction string // "over" / "under", TestSize only
}

// DecodeTest reads one test tree from r.
func DecodeTest(r *Reader) (*TestNode, error) {
	if r.pos >= len(r.buf) {
		return nil, &ErrCorrupt{Reason: "truncated test tree"}
	}
	tag := TestTag(r.buf[r.pos])
	r.pos++
	n := &TestNode{Tag: tag}
	switch tag {
	case TestTrue, TestFalse:
	case TestNot:
		child, err := DecodeTest(r)
		if err != nil {
			return nil, err
		}
		n.Children = []*TestNode{child}
	case TestAnyof, TestAllof:
		count, err := r.Uvarint()
		if err != nil {
			return nil, err
		}
		for i := uint64(0); i < count; i++ {
			child, err := DecodeTest(r)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
		}
	case TestHeader, TestAddress, TestEnvelope, TestString:
		spec, err := r.matchSpec()
		if err != nil {
			return nil, err
		}
		n.Spec = spec
		s1, err := r.VarStringList()
		if err != nil {
			return nil, err
		}
		s2, err := r.VarStringList()
		if err != nil {
			return nil, err
		}
		n.Strings1, n.Strings2 = s1, s2
	case TestExists:
		s1, err := r.VarStringList()
		if err != nil {
			return nil, err
		}
		n.Strings1 = s1
	case TestSize:
		dir, err := r.String()
		if err != nil {
			return nil, err
		}
		num, err := r.Int64()
		if err != nil {
			return nil, err
		}
		n.Direction = dir
		n.Number = num
	default:
		return nil, &ErrCorrupt{Reason: "unknown test tag"}
	}
	return n, nil
}
