package linesort

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomLines(r *rand.Rand, n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("chr%d\t%d\t%x", r.Intn(5), r.Intn(100000), r.Int63())
	}
	return lines
}

func sortString(t *testing.T, input string, opts Options) string {
	var out bytes.Buffer
	require.NoError(t, Sort(context.Background(), strings.NewReader(input), &out, bytes.Compare, opts))
	return out.String()
}

func assertEmptyDir(t *testing.T, dir string) {
	entries, err := ioutil.ReadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, len(entries), "%v", entries)
}

func TestSortInMemory(t *testing.T) {
	lines := randomLines(rand.New(rand.NewSource(0)), 1000)
	got := sortString(t, strings.Join(lines, "\n")+"\n", Options{})
	sort.Strings(lines)
	expect.EQ(t, got, strings.Join(lines, "\n")+"\n")
}

func TestSortExternal(t *testing.T) {
	lines := randomLines(rand.New(rand.NewSource(1)), 5000)
	input := strings.Join(lines, "\n") + "\n"
	sorted := append([]string(nil), lines...)
	sort.Strings(sorted)
	want := strings.Join(sorted, "\n") + "\n"

	for _, codec := range []Codec{Snappy, LZ4, NoCompression} {
		for _, maxOpen := range []int{2, 3, 100} {
			t.Run(fmt.Sprintf("%v/%d", codec, maxOpen), func(t *testing.T) {
				tempDir, cleanup := testutil.TempDir(t, "", "")
				defer cleanup()
				got := sortString(t, input, Options{
					BatchLines:   97,
					MaxOpenFiles: maxOpen,
					TmpDir:       tempDir,
					Codec:        codec,
				})
				assert.Equal(t, want, got)
				assertEmptyDir(t, tempDir)
			})
		}
	}
}

func TestSortLargeBlocks(t *testing.T) {
	// Lines long enough that every chunk spans several blocks.
	r := rand.New(rand.NewSource(2))
	lines := make([]string, 300)
	for i := range lines {
		lines[i] = fmt.Sprintf("%08d", r.Intn(1000000)) + strings.Repeat("x", 20000)
	}
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	got := sortString(t, strings.Join(lines, "\n")+"\n", Options{BatchLines: 120, MaxOpenFiles: 2, TmpDir: tempDir})
	sort.Strings(lines)
	assert.True(t, got == strings.Join(lines, "\n")+"\n")
	assertEmptyDir(t, tempDir)
}

func TestSortStable(t *testing.T) {
	// Compare only the key before the tab; the sequence number after it must
	// stay ascending among equal keys.
	byKey := func(a, b []byte) int {
		return bytes.Compare(a[:bytes.IndexByte(a, '\t')], b[:bytes.IndexByte(b, '\t')])
	}
	r := rand.New(rand.NewSource(3))
	var input strings.Builder
	for i := 0; i < 2000; i++ {
		fmt.Fprintf(&input, "k%d\t%06d\n", r.Intn(10), i)
	}
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	var out bytes.Buffer
	require.NoError(t, Sort(context.Background(), strings.NewReader(input.String()), &out, byKey,
		Options{BatchLines: 33, MaxOpenFiles: 3, TmpDir: tempDir}))
	got := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Equal(t, 2000, len(got))
	for i := 1; i < len(got); i++ {
		prev, cur := strings.Split(got[i-1], "\t"), strings.Split(got[i], "\t")
		require.True(t, prev[0] <= cur[0], "%v %v", prev, cur)
		if prev[0] == cur[0] {
			require.True(t, prev[1] < cur[1], "%v %v", prev, cur)
		}
	}
}

func TestSortKey(t *testing.T) {
	// Order by the number in the second column; the key is computed once per
	// line in memory and once more per line in a single merge pass.
	r := rand.New(rand.NewSource(6))
	const n = 1000
	var input strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&input, "r%d\t%08d\n", i, r.Intn(100000))
	}
	var calls int
	key := func(line []byte) []byte {
		calls++
		return line[bytes.IndexByte(line, '\t')+1:]
	}
	check := func(out string) {
		got := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
		require.Equal(t, n, len(got))
		for i := 1; i < len(got); i++ {
			prev, cur := strings.Split(got[i-1], "\t")[1], strings.Split(got[i], "\t")[1]
			require.True(t, prev <= cur, "%v %v", got[i-1], got[i])
		}
	}

	check(sortString(t, input.String(), Options{Key: key}))
	expect.EQ(t, calls, n)

	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	calls = 0
	check(sortString(t, input.String(), Options{Key: key, BatchLines: 100, MaxOpenFiles: 100, TmpDir: tempDir}))
	expect.EQ(t, calls, 2*n)
	assertEmptyDir(t, tempDir)
}

func TestSortTrailingNewline(t *testing.T) {
	for _, opts := range []Options{{}, {BatchLines: 2, MaxOpenFiles: 2}} {
		expect.EQ(t, sortString(t, "", opts), "")
		expect.EQ(t, sortString(t, "\n", opts), "\n")
		expect.EQ(t, sortString(t, "a\nb\nc", opts), "a\nb\nc")
		expect.EQ(t, sortString(t, "a\nb\nc\n", opts), "a\nb\nc\n")
		expect.EQ(t, sortString(t, "c\nb\na", opts), "a\nb\nc")
		expect.EQ(t, sortString(t, "b\n\na\n", opts), "\na\nb\n")
	}
}

type failingReader struct {
	r     io.Reader
	limit int
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.limit <= 0 {
		return 0, errors.New("read failed")
	}
	if len(p) > f.limit {
		p = p[:f.limit]
	}
	n, err := f.r.Read(p)
	f.limit -= n
	return n, err
}

func TestSortFailureRemovesTempFiles(t *testing.T) {
	lines := randomLines(rand.New(rand.NewSource(4)), 3000)
	input := strings.Join(lines, "\n") + "\n"
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	var out bytes.Buffer
	err := Sort(context.Background(), &failingReader{r: strings.NewReader(input), limit: len(input) / 2}, &out,
		bytes.Compare, Options{BatchLines: 50, TmpDir: tempDir})
	assert.EqualError(t, err, "read failed")
	assertEmptyDir(t, tempDir)
}

func TestSortCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	err := Sort(ctx, strings.NewReader("b\na\n"), &out, bytes.Compare, Options{})
	assert.Equal(t, context.Canceled, err)
}

func TestSortFile(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	in := filepath.Join(tempDir, "in.txt")
	out := filepath.Join(tempDir, "out.txt")
	require.NoError(t, ioutil.WriteFile(in, []byte("b\nc\na\n"), 0644))
	require.NoError(t, SortFile(ctx, in, out, bytes.Compare, Options{}))
	data, err := ioutil.ReadFile(out)
	require.NoError(t, err)
	expect.EQ(t, string(data), "a\nb\nc\n")

	assert.Error(t, SortFile(ctx, in, in, bytes.Compare, Options{}))

	// Spilling into a missing directory fails; no partial output survives.
	lines := randomLines(rand.New(rand.NewSource(5)), 100)
	require.NoError(t, ioutil.WriteFile(in, []byte(strings.Join(lines, "\n")), 0644))
	failed := filepath.Join(tempDir, "failed.txt")
	err = SortFile(ctx, in, failed, bytes.Compare,
		Options{BatchLines: 10, TmpDir: filepath.Join(tempDir, "missing")})
	assert.Error(t, err)
	_, err = os.Stat(failed)
	assert.True(t, os.IsNotExist(err), "%v", err)

	_, err = os.Stat(filepath.Join(tempDir, "nonexistent"))
	require.True(t, os.IsNotExist(err))
	assert.Error(t, SortFile(ctx, filepath.Join(tempDir, "nonexistent"), out, bytes.Compare, Options{}))
}

func TestCountLines(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	for _, test := range []struct {
		data string
		n    int
	}{
		{"", 0},
		{"\n", 1},
		{"a\nb\nc\n", 3},
		{"a\nb\nc", 3},
		{"a\n\n\nb", 4},
	} {
		path := filepath.Join(tempDir, "f")
		require.NoError(t, ioutil.WriteFile(path, []byte(test.data), 0644))
		n, err := CountLines(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, test.n, n, "%q", test.data)
	}
	_, err := CountLines(ctx, filepath.Join(tempDir, "missing"))
	assert.Error(t, err)
}

func TestIsASCIIText(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	text := filepath.Join(tempDir, "a.bed")
	require.NoError(t, ioutil.WriteFile(text, []byte("chr1\t10\t20\n"), 0644))
	ok, err := IsASCIIText(ctx, text)
	require.NoError(t, err)
	assert.True(t, ok)

	binary := filepath.Join(tempDir, "a.bin")
	require.NoError(t, ioutil.WriteFile(binary, []byte{0x1f, 0x8b, 0x08, 0x00, 0xff}, 0644))
	ok, err = IsASCIIText(ctx, binary)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOptions(t *testing.T) {
	c, err := ParseCodec("lz4")
	require.NoError(t, err)
	expect.EQ(t, c, LZ4)
	_, err = ParseCodec("zip")
	assert.Error(t, err)

	expect.EQ(t, fanInFromLimit(0), 2)
	expect.EQ(t, fanInFromLimit(256), 128)
	expect.EQ(t, fanInFromLimit(1<<20), maxDefaultOpenFiles)
	o := Options{MaxOpenFiles: 1}.withDefaults()
	expect.EQ(t, o.MaxOpenFiles, 2)
	expect.EQ(t, o.BatchBytes, int64(DefaultBatchBytes))
	assert.True(t, Options{}.withDefaults().MaxOpenFiles >= 2)
}
