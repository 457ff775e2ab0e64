package intervalfile

import (
	"context"
	"io"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRangeReaderSections(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "data")
	data := make([]byte, 10000)
	for i := range data {
		data[i] = byte('a' + i%26)
	}
	require.NoError(t, ioutil.WriteFile(path, data, 0644))

	seek, err := NewSeekRangeReader(context.Background(), path)
	require.NoError(t, err)
	mm, err := NewMmapRangeReader(path)
	require.NoError(t, err)
	for _, rr := range []RangeReader{seek, mm} {
		expect.EQ(t, rr.Size(), int64(len(data)))
		a, err := rr.ReadRange(100, 5000)
		require.NoError(t, err)
		b, err := rr.ReadRange(3000, 9000)
		require.NoError(t, err)

		// Alternate small reads between the two ranges; each keeps its place.
		var gotA, gotB []byte
		buf := make([]byte, 77)
		for doneA, doneB := false, false; !doneA || !doneB; {
			if !doneA {
				n, err := a.Read(buf)
				gotA = append(gotA, buf[:n]...)
				if err == io.EOF {
					doneA = true
				} else {
					require.NoError(t, err)
				}
			}
			if !doneB {
				n, err := b.Read(buf)
				gotB = append(gotB, buf[:n]...)
				if err == io.EOF {
					doneB = true
				} else {
					require.NoError(t, err)
				}
			}
		}
		assert.Equal(t, data[100:5000], gotA)
		assert.Equal(t, data[3000:9000], gotB)

		_, err = rr.ReadRange(9000, 10001)
		assert.Error(t, err)
		require.NoError(t, rr.Close())
	}
}
