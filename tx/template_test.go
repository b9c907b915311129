package tx

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func TestExpandTemplates(t *testing.T) {
	dir := t.TempDir()
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "code.bin"), payload, 0o644))

	src := []byte(`{"data": "{{ data code.bin }}", "code_hash": "{{ hash code.bin }}"}`)
	out, err := ExpandTemplates(src, dir)
	require.NoError(t, err)

	h := blake2b.Sum256(payload)
	want := fmt.Sprintf(`{"data": "0xdeadbeef", "code_hash": "0x%x"}`, h[:])
	require.Equal(t, want, string(out))
}

func TestExpandTemplatesAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob")
	require.NoError(t, os.WriteFile(path, []byte{0x01}, 0o644))

	out, err := ExpandTemplates([]byte("{{ data "+path+" }}"), "/nonexistent")
	require.NoError(t, err)
	require.Equal(t, "0x01", string(out))
}

func TestExpandTemplatesMissingFile(t *testing.T) {
	_, err := ExpandTemplates([]byte("{{ data nope.bin }}"), t.TempDir())
	require.Error(t, err)
}

func TestExpandTemplatesUnknownMarker(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x"), nil, 0o644))
	_, err := ExpandTemplates([]byte("{{ frob x }}"), dir)
	require.Error(t, err)
}

func TestExpandTemplatesNoMarkers(t *testing.T) {
	src := []byte(`{"plain": "0x1234"}`)
	out, err := ExpandTemplates(src, ".")
	require.NoError(t, err)
	require.Equal(t, src, out)
}
