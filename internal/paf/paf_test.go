// internal/paf/paf_test.go
package paf

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readcorr/internal/align"
)

func writePAF(t *testing.T, rows string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "olaps.paf")
	require.NoError(t, os.WriteFile(path, []byte(rows), 0o644))
	return path
}

const twoTargets = "q1\t8\t0\t8\t+\tt1\t8\t0\t8\t8\t8\t60\tcg:Z:8M\n" +
	"q2\t6\t0\t6\t-\tt1\t8\t1\t7\t6\t6\t60\tcg:Z:6M\n" +
	"q1\t8\t0\t4\t+\tt2\t4\t0\t4\t4\t4\t60\tcg:Z:4M\n"

func TestReaderGroupsByTarget(t *testing.T) {
	r, err := Open(writePAF(t, twoTargets))
	require.NoError(t, err)
	defer r.Close()

	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "t1", first.ReadName)
	require.Len(t, first.Overlaps, 2)
	assert.Equal(t, []string{"q1", "q2"}, first.QNames)
	assert.True(t, first.Overlaps[0].Fwd)
	assert.False(t, first.Overlaps[1].Fwd)
	assert.Equal(t, 1, first.Overlaps[1].TStart)
	assert.Equal(t, []align.CigarOp{{Kind: align.CigarMatch, Len: 8}}, first.Cigars[0])

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "t2", second.ReadName)
	require.Len(t, second.Overlaps, 1)

	_, err = r.Next()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestReaderSkipsMalformedRows(t *testing.T) {
	rows := "broken row\n" +
		"q1\t8\t0\t8\t+\tt1\t8\t0\t8\t8\t8\t60\n" + // no cg tag
		"q1\t8\t0\t8\t+\tt1\t8\t0\t8\t8\t8\t60\tcg:Z:8S\n" + // unknown op
		"q1\t8\t0\t8\t+\tt1\t8\t0\t8\t8\t8\t60\tcg:Z:8M\n"
	r, err := Open(writePAF(t, rows))
	require.NoError(t, err)
	defer r.Close()

	msg, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "t1", msg.ReadName)
	assert.Len(t, msg.Overlaps, 1, "only the valid row survives")

	_, err = r.Next()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestReaderEmptyFile(t *testing.T) {
	r, err := Open(writePAF(t, ""))
	require.NoError(t, err)
	defer r.Close()
	_, err = r.Next()
	assert.True(t, errors.Is(err, io.EOF))
}
