package detector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCOCONames(t *testing.T) {
	names := COCONames()
	require.Len(t, names, 80)
	assert.Equal(t, "person", names[0])
	assert.Equal(t, "toothbrush", names[79])
}

func TestLoadNames(t *testing.T) {
	names, err := LoadNames("")
	require.NoError(t, err)
	assert.Len(t, names, 80)

	path := filepath.Join(t.TempDir(), "classes.txt")
	require.NoError(t, os.WriteFile(path, []byte("# custom model\ncane\n\n stairs \ndoor\n"), 0o644))

	names, err = LoadNames(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"cane", "stairs", "door"}, names)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\n# nothing\n"), 0o644))
	_, err = LoadNames(empty)
	assert.ErrorIs(t, err, ErrNoNames)

	_, err = LoadNames(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestOptionsAllowsClass(t *testing.T) {
	assert.True(t, Options{}.AllowsClass(5))
	assert.True(t, Options{Classes: []int{1, 5}}.AllowsClass(5))
	assert.False(t, Options{Classes: []int{1}}.AllowsClass(5))
	assert.False(t, Options{Classes: []int{}}.AllowsClass(0))
}
