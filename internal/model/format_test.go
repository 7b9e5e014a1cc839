package model_test

import (
	"go/format"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The persistence and wire structs carry wide tag columns; keep them in
// canonical gofmt layout.
func TestStructsAreGofmtClean(t *testing.T) {
	files, err := filepath.Glob("*.go")
	require.NoError(t, err)
	dto, err := filepath.Glob(filepath.Join("..", "dto", "*.go"))
	require.NoError(t, err)
	files = append(files, dto...)
	require.NotEmpty(t, files)

	for _, f := range files {
		src, err := os.ReadFile(f)
		require.NoError(t, err, f)
		got, err := format.Source(src)
		require.NoError(t, err, f)
		assert.Equal(t, string(got), string(src), "%s is not gofmt-formatted", f)
	}
}
