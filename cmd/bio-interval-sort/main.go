package main

// bio-interval-sort sorts a BED, bedGraph or GeneTrack file by chromosome and
// start so that it can be indexed.
//
// Usage: bio-interval-sort [flags] input output

import (
	"flag"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/bioindex/encoding/intervalfile"
	"github.com/grailbio/bioindex/linesort"
)

var (
	formatFlag       = flag.String("format", "", "Input format: bed, bedgraph or genetrack. By default it is guessed from the input file extension")
	batchBytesFlag   = flag.Int64("batch-bytes", linesort.DefaultBatchBytes, "Approximate memory used to sort one batch of lines")
	batchLinesFlag   = flag.Int("batch-lines", 0, "If positive, the max number of lines sorted in memory at once")
	maxOpenFilesFlag = flag.Int("max-open-files", 0, "Max number of temp files merged at once. If zero, derived from the open file limit")
	tmpDirFlag       = flag.String("tmpdir", "", "Directory for temp files. By default, the system temp directory")
	codecFlag        = flag.String("codec", "snappy", "Temp file compression: snappy, lz4 or none")
	indexFlag        = flag.Bool("index", false, "Also build the index of the sorted output")
	forceFlag        = flag.Bool("force", false, "Sort even if the input does not look like ASCII text")
)

func main() {
	flag.Usage = func() {
		os.Stderr.WriteString(`Usage: bio-interval-sort [flags] <input> <output>

Sorts the records of <input> by chromosome name, then by start position, and
writes them to <output>. Header and comment lines are kept at the top, in their
original order. Records with equal keys keep their input order. Unparsable
lines are treated like header lines.
`)
		flag.PrintDefaults()
	}
	shutdown := grail.Init()
	defer shutdown()

	args := flag.Args()
	if len(args) != 2 {
		flag.Usage()
		os.Exit(1)
	}
	inPath, outPath := args[0], args[1]
	ctx := vcontext.Background()

	var (
		format intervalfile.Parser
		err    error
	)
	if *formatFlag != "" {
		format, err = intervalfile.FormatByName(*formatFlag)
	} else {
		format, err = intervalfile.FormatFromPath(inPath)
	}
	if err != nil {
		log.Panicf("%v", err)
	}
	codec, err := linesort.ParseCodec(*codecFlag)
	if err != nil {
		log.Panicf("%v", err)
	}
	if !*forceFlag {
		text, err := linesort.IsASCIIText(ctx, inPath)
		if err != nil {
			log.Panicf("%v", err)
		}
		if !text {
			log.Panicf("%v: not an ASCII text file; use -force to sort anyway", inPath)
		}
	}
	opts := linesort.Options{
		BatchBytes:   *batchBytesFlag,
		BatchLines:   *batchLinesFlag,
		MaxOpenFiles: *maxOpenFilesFlag,
		TmpDir:       *tmpDirFlag,
		Codec:        codec,
	}
	if err := intervalfile.SortFile(ctx, inPath, outPath, format, opts); err != nil {
		log.Panicf("sort %v to %v: %v", inPath, outPath, err)
	}
	if *indexFlag {
		idx, err := intervalfile.BuildIndex(ctx, outPath, intervalfile.Opts{Format: format, NoCache: true})
		if err != nil {
			log.Panicf("index %v: %v", outPath, err)
		}
		log.Printf("%v: indexed %d chromosomes", outPath, len(idx.Refs))
	}
}
