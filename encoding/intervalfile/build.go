package intervalfile

import (
	"context"

	"github.com/grailbio/bioindex/encoding/tabix"
)

// BuildIndex scans the source at path once, writes its index next to it (or
// to opts.IndexPath), and stores it in the cache.  On any error, including
// unsorted input, no index file is written and an existing one is left
// untouched.
func BuildIndex(ctx context.Context, path string, opts Opts) (idx *tabix.Index, err error) {
	r, err := Open(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if idx, err = r.buildIndex(); err != nil {
		return nil, err
	}
	if err = tabix.WriteIndexFile(ctx, opts.indexPath(path), idx); err != nil {
		return nil, err
	}
	if cache := opts.cache(); cache != nil {
		cache.Put(r.cacheKey(), idx)
	}
	return idx, nil
}
