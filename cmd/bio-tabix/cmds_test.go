package main

import (
	"bytes"
	"context"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/bioindex/encoding/intervalfile"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (string, func()) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	data, err := ioutil.ReadFile("testdata/peaks.bed")
	require.NoError(t, err)
	path := filepath.Join(tempDir, "peaks.bed")
	require.NoError(t, ioutil.WriteFile(path, data, 0644))
	return path, cleanup
}

func TestQuery(t *testing.T) {
	path, cleanup := setup(t)
	defer cleanup()
	var out bytes.Buffer
	opts := intervalfile.Opts{NoCache: true}
	require.NoError(t, query(opts, path, []string{"chr1:180-160000", "chr2", "chr3"}, &out))
	expect.EQ(t, out.String(), strings.Join([]string{
		"chr1\t100\t200\tp1\t5\t+",
		"chr1\t150\t400\tp2\t3\t-",
		"chr1\t20000\t20100\tp3\t1\t+",
		"chr2\t0\t50\tp4\t9\t.",
	}, "\n")+"\n")

	out.Reset()
	require.NoError(t, query(opts, path, []string{"chr1:300"}, &out))
	expect.EQ(t, out.String(), "chr1\t150\t400\tp2\t3\t-\n")

	require.Error(t, query(opts, path, []string{"chr1:0"}, &out))
}

func TestStats(t *testing.T) {
	path, cleanup := setup(t)
	defer cleanup()
	var out bytes.Buffer
	require.NoError(t, stats(intervalfile.Opts{NoCache: true}, path, nil, &out))
	expect.EQ(t, out.String(), strings.Join([]string{
		"#CHROM\tSTART\tEND\tCOUNT\tBASES\tMIN_START\tMAX_END",
		"chr1\t0\t20100\t3\t450\t100\t20100",
		"chr2\t0\t50\t1\t50\t0\t50",
	}, "\n")+"\n")
}

func TestDump(t *testing.T) {
	path, cleanup := setup(t)
	defer cleanup()
	idx, err := intervalfile.BuildIndex(context.Background(), path, intervalfile.Opts{NoCache: true})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, dumpBins(idx, &out))
	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	expect.EQ(t, lines[0], "#CHROM\tBIN\tLEVEL\tBIN_START\tBIN_END\tCHUNK_BEGIN\tCHUNK_END")
	// p1 and p2 share bin 4681; p3 is in bin 4682; p4 is alone on chr2.
	expect.EQ(t, lines[1:], []string{
		"chr1\t4681\t5\t0\t16384\t17\t57",
		"chr1\t4682\t5\t16384\t32768\t57\t81",
		"chr2\t4681\t5\t0\t16384\t81\t98",
	})

	out.Reset()
	require.NoError(t, dumpLinear(idx, &out))
	expect.EQ(t, out.String(), strings.Join([]string{
		"#CHROM\tWINDOW_START\tMIN_OFFSET",
		"chr1\t0\t17",
		"chr1\t16384\t57",
		"chr2\t0\t81",
	}, "\n")+"\n")
}

func TestContigNamesWithColons(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "hla.bed")
	const hla = "HLA-A*01:01:01:01"
	require.NoError(t, ioutil.WriteFile(path, []byte(strings.Join([]string{
		hla + "\t0\t10\ta",
		hla + "\t5\t20\tb",
		"chr1\t100\t150\tc",
	}, "\n")+"\n"), 0644))
	opts := intervalfile.Opts{NoCache: true}

	var out bytes.Buffer
	require.NoError(t, stats(opts, path, nil, &out))
	expect.EQ(t, out.String(), strings.Join([]string{
		"#CHROM\tSTART\tEND\tCOUNT\tBASES\tMIN_START\tMAX_END",
		hla + "\t0\t20\t2\t25\t0\t20",
		"chr1\t0\t150\t1\t50\t100\t150",
	}, "\n")+"\n")

	out.Reset()
	require.NoError(t, query(opts, path, []string{hla}, &out))
	expect.EQ(t, out.String(), hla+"\t0\t10\ta\n"+hla+"\t5\t20\tb\n")

	out.Reset()
	require.NoError(t, query(opts, path, []string{hla + ":15-16"}, &out))
	expect.EQ(t, out.String(), hla+"\t5\t20\tb\n")
}
