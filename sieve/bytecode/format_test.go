package bytecode_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sievegate/sievegate/sieve/bytecode"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	w := bytecode.NewWriter()
	w.Op(bytecode.OpTestHeader)
	w.StringList([]string{"subject"})
	w.StringList([]string{"hello"})
	w.Op(bytecode.OpActionKeep)
	w.Op(bytecode.OpHalt)

	ext := bytecode.EncodeExtTable([]string{"fileinto", "variables"})
	img := &bytecode.Image{Blocks: [][]byte{ext, w.Bytes()}}
	raw := img.Encode()

	decoded, err := bytecode.Decode(raw)
	require.NoError(t, err)
	require.Len(t, decoded.Blocks, 2)

	names, err := bytecode.DecodeExtTable(decoded.Blocks[bytecode.BlockExtTable])
	require.NoError(t, err)
	require.Equal(t, []string{"fileinto", "variables"}, names)

	r := bytecode.NewReader(decoded.Blocks[bytecode.BlockMainCode])
	op, err := r.Op()
	require.NoError(t, err)
	require.Equal(t, bytecode.OpTestHeader, op)
	hdrs, err := r.StringList()
	require.NoError(t, err)
	require.Equal(t, []string{"subject"}, hdrs)
	keys, err := r.StringList()
	require.NoError(t, err)
	require.Equal(t, []string{"hello"}, keys)
	op, err = r.Op()
	require.NoError(t, err)
	require.Equal(t, bytecode.OpActionKeep, op)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := bytecode.Decode([]byte("not a sieve binary at all"))
	require.Error(t, err)
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	w := bytecode.NewWriter()
	w.Op(bytecode.OpHalt)
	img := &bytecode.Image{Blocks: [][]byte{bytecode.EncodeExtTable(nil), w.Bytes()}}
	raw := img.Encode()
	raw[6] = bytecode.ABIVersion + 1
	_, err := bytecode.Decode(raw)
	require.Error(t, err)
	var vErr *bytecode.ErrVersionMismatch
	require.ErrorAs(t, err, &vErr)
}

func TestExtOpRoundTrip(t *testing.T) {
	w := bytecode.NewWriter()
	w.ExtOp(2, bytecode.ExtOpIncludeGlobal)
	r := bytecode.NewReader(w.Bytes())
	marker, err := r.Op()
	require.NoError(t, err)
	require.Equal(t, bytecode.ExtMarker, marker)
	idx, sub, err := r.ExtOp()
	require.NoError(t, err)
	require.Equal(t, 2, idx)
	require.Equal(t, bytecode.ExtOpIncludeGlobal, sub)
}

func TestJumpPatch(t *testing.T) {
	w := bytecode.NewWriter()
	ph := w.Jmp(bytecode.OpJmp)
	w.Op(bytecode.OpHalt)
	target := w.Pos()
	w.PatchJump(ph, target)

	r := bytecode.NewReader(w.Bytes())
	op, err := r.Op()
	require.NoError(t, err)
	require.Equal(t, bytecode.OpJmp, op)
	got, err := r.Jmp32()
	require.NoError(t, err)
	require.Equal(t, target, got)
}
