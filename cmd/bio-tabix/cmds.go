package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/bioindex/encoding/intervalfile"
	"github.com/grailbio/bioindex/encoding/tabix"
	"github.com/grailbio/bioindex/interval"
	"github.com/pkg/errors"
	"v.io/x/lib/cmdline"
)

// readerFlags are shared by every subcommand that opens a source file.
type readerFlags struct {
	format    *string
	indexPath *string
	strict    *bool
	mmap      *bool
}

func addReaderFlags(cmd *cmdline.Command) readerFlags {
	return readerFlags{
		format:    cmd.Flags.String("format", "", "Input format: bed, bedgraph or genetrack. By default it is guessed from the file extension"),
		indexPath: cmd.Flags.String("index", "", "Index file. By default, the input path + "+intervalfile.IndexSuffix),
		strict:    cmd.Flags.Bool("strict", false, "Fail on malformed lines instead of skipping them"),
		mmap:      cmd.Flags.Bool("mmap", false, "Memory-map the input instead of seeking. Local files only"),
	}
}

func (f readerFlags) opts() (intervalfile.Opts, error) {
	opts := intervalfile.Opts{IndexPath: *f.indexPath, Mmap: *f.mmap, NoCache: true}
	if *f.format != "" {
		var err error
		if opts.Format, err = intervalfile.FormatByName(*f.format); err != nil {
			return opts, err
		}
	}
	if *f.strict {
		opts.Policy = intervalfile.Strict
	}
	return opts, nil
}

func newCmdIndex() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "index",
		Short:    "Build or rebuild the index of sorted interval files",
		ArgsName: "path...",
	}
	rf := addReaderFlags(cmd)
	chunkGap := cmd.Flags.Uint64("chunk-gap", 0, "Max byte gap between records of one bin coalesced into one chunk")
	minShift := cmd.Flags.Uint("min-shift", tabix.DefaultMinShift, "log2 of the finest bin width")
	depth := cmd.Flags.Uint("depth", tabix.DefaultDepth, "Number of bin levels below the root, at most "+strconv.Itoa(tabix.MaxDepth))
	strictBins := cmd.Flags.Bool("strict-bins", false, "Reject coordinates past the binning span instead of clamping them")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) == 0 {
			return fmt.Errorf("index takes at least one pathname argument")
		}
		opts, err := rf.opts()
		if err != nil {
			return err
		}
		opts.Build = tabix.BuildOpts{
			Scheme:   tabix.Scheme{MinShift: *minShift, Depth: *depth, Strict: *strictBins},
			ChunkGap: *chunkGap,
		}
		if err := opts.Build.Scheme.Validate(); err != nil {
			return err
		}
		if len(argv) > 1 && opts.IndexPath != "" {
			return fmt.Errorf("-index cannot be used with more than one input")
		}
		ctx := vcontext.Background()
		for _, path := range argv {
			idx, err := intervalfile.BuildIndex(ctx, path, opts)
			if err != nil {
				return err
			}
			log.Printf("%v: indexed %d chromosomes", path, len(idx.Refs))
		}
		return nil
	})
	return cmd
}

func newCmdQuery() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "query",
		Short:    "Print the records overlapping regions",
		ArgsName: "path region...",
		Long: `
Each region is either 'chr', 'chr:pos' or 'chr:begin-end', where [begin,end] is
a 1-based, closed interval as in samtools.  Records are printed as they appear
in the file, in ascending start order for each region.`,
	}
	rf := addReaderFlags(cmd)
	mergeGap := cmd.Flags.Int64("merge-gap", tabix.DefaultMergeGap, "Max byte gap between chunks read together. Negative disables merging")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) < 2 {
			return fmt.Errorf("query takes a path and at least one region, but got %v", argv)
		}
		opts, err := rf.opts()
		if err != nil {
			return err
		}
		opts.Query.MergeGap = *mergeGap
		if opts.Query.MergeGap == 0 {
			// Zero would mean the default.
			opts.Query.MergeGap = -1
		}
		return query(opts, argv[0], argv[1:], env.Stdout)
	})
	return cmd
}

// resolveRegion parses region and, for whole-chromosome regions, limits the
// end to the last indexed position of the chromosome.  A region that is
// exactly the name of an indexed chromosome is that whole chromosome, even if
// the name contains ':'.
func resolveRegion(r *intervalfile.Reader, region string) (interval.Entry, error) {
	idx, err := r.Index()
	if err != nil {
		return interval.Entry{}, err
	}
	if ref := idx.Ref(region); ref != nil {
		return interval.Entry{ChrName: ref.Name, Limit: ref.MaxEnd}, nil
	}
	e, err := interval.ParseRegionString(region)
	if err != nil {
		return e, errors.Wrapf(err, "bad region %q", region)
	}
	if e.Limit != interval.MaxPos {
		return e, nil
	}
	n, err := idx.ChromLength(e.ChrName)
	if err != nil {
		// Unknown chromosomes match nothing; warn in case of a typo.
		log.Printf("%v", err)
		n = 0
	}
	e.Limit = n
	return e, nil
}

func query(opts intervalfile.Opts, path string, regions []string, w io.Writer) (err error) {
	r, err := intervalfile.Open(vcontext.Background(), path, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	for _, region := range regions {
		e, err := resolveRegion(r, region)
		if err != nil {
			return err
		}
		it := r.Query(e.ChrName, e.Start0, e.Limit)
		for it.Scan() {
			if _, err := w.Write(it.Record().Raw()); err != nil {
				_ = it.Close()
				return err
			}
			if _, err := io.WriteString(w, "\n"); err != nil {
				_ = it.Close()
				return err
			}
		}
		if err := it.Close(); err != nil {
			return err
		}
	}
	return nil
}

func newCmdDump() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "dump",
		Short:    "Print the bins and chunks of an index as TSV",
		ArgsName: "path",
	}
	rf := addReaderFlags(cmd)
	linear := cmd.Flags.Bool("linear", false, "Print the linear index instead of the bins")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("dump takes one pathname argument, but got %v", argv)
		}
		opts, err := rf.opts()
		if err != nil {
			return err
		}
		r, err := intervalfile.Open(vcontext.Background(), argv[0], opts)
		if err != nil {
			return err
		}
		defer r.Close() // nolint: errcheck
		idx, err := r.Index()
		if err != nil {
			return err
		}
		if *linear {
			return dumpLinear(idx, env.Stdout)
		}
		return dumpBins(idx, env.Stdout)
	})
	return cmd
}

func dumpBins(idx *tabix.Index, w io.Writer) error {
	out := tsv.NewWriter(w)
	out.WriteString("#CHROM\tBIN\tLEVEL\tBIN_START\tBIN_END\tCHUNK_BEGIN\tCHUNK_END")
	if err := out.EndLine(); err != nil {
		return err
	}
	for _, ref := range idx.Refs {
		for _, bin := range ref.Bins {
			binStart, binEnd := idx.Scheme.BinRange(bin.ID)
			for _, c := range bin.Chunks {
				out.WriteString(ref.Name)
				out.WriteUint32(bin.ID)
				writeInt(out, int64(idx.Scheme.Level(bin.ID)))
				writeInt(out, int64(binStart))
				writeInt(out, int64(binEnd))
				out.WriteString(strconv.FormatUint(c.Begin, 10))
				out.WriteString(strconv.FormatUint(c.End, 10))
				if err := out.EndLine(); err != nil {
					return err
				}
			}
		}
	}
	return out.Flush()
}

func writeInt(out *tsv.Writer, v int64) {
	out.WriteString(strconv.FormatInt(v, 10))
}

func dumpLinear(idx *tabix.Index, w io.Writer) error {
	out := tsv.NewWriter(w)
	out.WriteString("#CHROM\tWINDOW_START\tMIN_OFFSET")
	if err := out.EndLine(); err != nil {
		return err
	}
	width := int64(1) << idx.Scheme.MinShift
	for _, ref := range idx.Refs {
		for i, off := range ref.Linear {
			out.WriteString(ref.Name)
			writeInt(out, int64(i)*width)
			out.WriteString(strconv.FormatUint(off, 10))
			if err := out.EndLine(); err != nil {
				return err
			}
		}
	}
	return out.Flush()
}

func newCmdStats() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "stats",
		Short:    "Summarize the records of regions, or of every chromosome",
		ArgsName: "path [region...]",
	}
	rf := addReaderFlags(cmd)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) < 1 {
			return fmt.Errorf("stats takes a path and optional regions, but got %v", argv)
		}
		opts, err := rf.opts()
		if err != nil {
			return err
		}
		return stats(opts, argv[0], argv[1:], env.Stdout)
	})
	return cmd
}

func stats(opts intervalfile.Opts, path string, regions []string, w io.Writer) (err error) {
	r, err := intervalfile.Open(vcontext.Background(), path, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	var entries []interval.Entry
	if len(regions) == 0 {
		// Whole chromosomes, named as in the index.  Names may contain ':', so
		// they are not parsed as regions.
		idx, err := r.Index()
		if err != nil {
			return err
		}
		for _, ref := range idx.Refs {
			entries = append(entries, interval.Entry{ChrName: ref.Name, Limit: ref.MaxEnd})
		}
	}
	for _, region := range regions {
		e, err := resolveRegion(r, region)
		if err != nil {
			return err
		}
		entries = append(entries, e)
	}
	out := tsv.NewWriter(w)
	out.WriteString("#CHROM\tSTART\tEND\tCOUNT\tBASES\tMIN_START\tMAX_END")
	if err := out.EndLine(); err != nil {
		return err
	}
	for _, e := range entries {
		s := intervalfile.NewSummary()
		if err := r.Aggregate(e.ChrName, e.Start0, e.Limit, s); err != nil {
			return err
		}
		out.WriteString(e.ChrName)
		writeInt(out, int64(e.Start0))
		writeInt(out, int64(e.Limit))
		writeInt(out, int64(s.Count))
		writeInt(out, s.Bases)
		writeInt(out, int64(s.MinStart))
		writeInt(out, int64(s.MaxEnd))
		if err := out.EndLine(); err != nil {
			return err
		}
	}
	return out.Flush()
}

func newCmdCount() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "count",
		Short:    "Print the number of records",
		ArgsName: "path",
	}
	rf := addReaderFlags(cmd)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("count takes one pathname argument, but got %v", argv)
		}
		opts, err := rf.opts()
		if err != nil {
			return err
		}
		r, err := intervalfile.Open(vcontext.Background(), argv[0], opts)
		if err != nil {
			return err
		}
		defer r.Close() // nolint: errcheck
		n, err := r.Count()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(env.Stdout, n)
		return err
	})
	return cmd
}

// Run runs the bio-tabix command line.
func Run() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:     "bio-tabix",
			Short:    "Tools for indexing and querying sorted interval files",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdIndex(),
				newCmdQuery(),
				newCmdDump(),
				newCmdStats(),
				newCmdCount(),
			},
		})
}
