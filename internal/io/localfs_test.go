package io

import (
	"os"
	"path/filepath"
	"radworklist/internal/dicomblob"
	"radworklist/internal/testutil"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDicomDirSortedByName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.dcm"), testutil.RawDicom(150, 2), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.dcm"), testutil.RawDicom(200, 1), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	names, files, err := LocalFSHandler{}.ReadDicomDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.dcm", "b.dcm"}, names)
	require.Len(t, files, 2)
	assert.Len(t, files[0], 200)
}

func TestWriteStack(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	images := []dicomblob.StackImage{
		{Segment: dicomblob.Segment{Index: 1, Payload: testutil.RawDicom(140, 9)}},
		{Segment: dicomblob.Segment{Index: 0, Payload: testutil.RawDicom(160, 8)}},
	}

	paths, err := LocalFSHandler{}.WriteStack(dir, images)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "slice_0000.dcm"), filepath.Join(dir, "slice_0001.dcm")}, paths)

	first, err := LocalFSHandler{}.GetBlob(paths[0])
	require.NoError(t, err)
	assert.Equal(t, images[0].Payload, first)
}
