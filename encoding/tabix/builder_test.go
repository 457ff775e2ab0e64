package tabix

import (
	"testing"
	"time"

	"github.com/grailbio/bioindex/interval"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderCoalescesChunks(t *testing.T) {
	b := NewBuilder(BuildOpts{})
	require.NoError(t, b.Add("chr1", 10, 20, 0, 10))
	require.NoError(t, b.Add("chr1", 12, 30, 10, 25))
	// Crosses a 16 KiB boundary, so it goes to a coarser bin.
	require.NoError(t, b.Add("chr1", 16000, 17000, 25, 40))
	require.NoError(t, b.Add("chr1", 16500, 16600, 40, 50))
	require.NoError(t, b.Add("chr2", 5, 6, 50, 60))
	idx, err := b.Finish(60, time.Unix(5, 0))
	require.NoError(t, err)

	expect.EQ(t, idx.Chromosomes(), []string{"chr1", "chr2"})
	ref := idx.Ref("chr1")
	require.NotNil(t, ref)
	expect.EQ(t, ref.Bins, []Bin{
		{ID: 585, Chunks: []Chunk{{25, 40}}},
		{ID: 4681, Chunks: []Chunk{{0, 25}}},
		{ID: 4682, Chunks: []Chunk{{40, 50}}},
	})
	expect.EQ(t, ref.MaxEnd, 17000)
	expect.EQ(t, ref.Linear, []uint64{0, 25})
	n, err := idx.ChromLength("chr2")
	require.NoError(t, err)
	expect.EQ(t, n, 6)
}

func TestBuilderLinearGaps(t *testing.T) {
	b := NewBuilder(BuildOpts{})
	require.NoError(t, b.Add("chr1", 10, 20, 0, 10))
	// Window 1 ([16384, 32768)) has no records.
	require.NoError(t, b.Add("chr1", 40000, 40100, 10, 20))
	idx, err := b.Finish(20, time.Unix(5, 0))
	require.NoError(t, err)
	ref := idx.Ref("chr1")
	require.NotNil(t, ref)
	expect.EQ(t, ref.Linear, []uint64{0, 10, 10})
}

func TestBuilderChunkGap(t *testing.T) {
	build := func(opts BuildOpts) *Index {
		b := NewBuilder(opts)
		require.NoError(t, b.Add("chr1", 10, 20, 0, 10))
		// Crosses a 16 KiB boundary: bin 585.
		require.NoError(t, b.Add("chr1", 16000, 17000, 10, 20))
		// Back in bin 4681, 10 bytes after its last chunk.
		require.NoError(t, b.Add("chr1", 16100, 16200, 20, 30))
		idx, err := b.Finish(30, time.Time{})
		require.NoError(t, err)
		return idx
	}
	idx := build(BuildOpts{})
	expect.EQ(t, idx.Ref("chr1").bin(4681).Chunks, []Chunk{{0, 10}, {20, 30}})
	expect.EQ(t, idx.Ref("chr1").bin(585).Chunks, []Chunk{{10, 20}})
	assert.Nil(t, idx.Ref("chr1").bin(4682))

	idx = build(BuildOpts{ChunkGap: 10})
	expect.EQ(t, idx.Ref("chr1").bin(4681).Chunks, []Chunk{{0, 30}})
}

func TestBuilderSortOrder(t *testing.T) {
	b := NewBuilder(BuildOpts{})
	require.NoError(t, b.Add("chr1", 100, 200, 0, 10))
	err := b.Add("chr1", 50, 60, 10, 20)
	soe, ok := err.(*SortOrderError)
	require.True(t, ok, "%v", err)
	expect.EQ(t, *soe, SortOrderError{Chrom: "chr1", PrevStart: 100, Start: 50})
	// The builder stays poisoned.
	expect.EQ(t, b.Add("chr1", 300, 400, 20, 30), err)
	_, ferr := b.Finish(30, time.Time{})
	expect.EQ(t, ferr, err)

	b = NewBuilder(BuildOpts{})
	require.NoError(t, b.Add("chr1", 100, 200, 0, 10))
	require.NoError(t, b.Add("chr2", 1, 2, 10, 20))
	err = b.Add("chr1", 300, 400, 20, 30)
	soe, ok = err.(*SortOrderError)
	require.True(t, ok, "%v", err)
	assert.True(t, soe.Split)
	assert.Contains(t, err.Error(), "split chromosome chr1")
}

func TestBuilderRejects(t *testing.T) {
	b := NewBuilder(BuildOpts{})
	_, ok := b.Add("chr1", 10, 5, 0, 10).(*interval.InvalidIntervalError)
	assert.True(t, ok)

	b = NewBuilder(BuildOpts{})
	require.NoError(t, b.Add("chr1", 10, 20, 10, 20))
	assert.Error(t, b.Add("chr1", 10, 20, 5, 8), "offsets went backwards")

	b = NewBuilder(BuildOpts{Scheme: Scheme{Strict: true}})
	_, ok = b.Add("chr1", 1<<29, 1<<29+1, 0, 10).(*interval.InvalidIntervalError)
	assert.True(t, ok)
}

func TestChromLengthUnknown(t *testing.T) {
	b := NewBuilder(BuildOpts{})
	require.NoError(t, b.Add("chrI", 0, 10, 0, 10))
	require.NoError(t, b.Add("chrII", 0, 10, 10, 20))
	require.NoError(t, b.Add("chrIV", 0, 10, 20, 30))
	idx, err := b.Finish(30, time.Time{})
	require.NoError(t, err)
	_, err = idx.ChromLength("chrIII")
	uce, ok := err.(*UnknownChromosomeError)
	require.True(t, ok, "%v", err)
	expect.EQ(t, uce.Chrom, "chrIII")
	expect.EQ(t, uce.Suggestion, "chrII")
}

func TestBuilderEmpty(t *testing.T) {
	idx, err := NewBuilder(BuildOpts{}).Finish(0, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, idx.Chromosomes())
	chunks, err := idx.Chunks("chr1", 0, 100, QueryOpts{})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
