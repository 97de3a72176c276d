package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/boycivenga/netgate/internal/intent"
)

// Result reports the outcome of a RenderTo run.
type Result struct {
	Written []string           `json:"written"`
	Errors  []intent.SiteError `json:"errors,omitempty"`
}

// OK reports whether the whole batch rendered without site errors.
func (r *Result) OK() bool { return len(r.Errors) == 0 }

// RenderTo renders the set and writes one file per successful site
// into dir. Sites are written by a bounded worker pool; output bytes
// do not depend on scheduling. Stale files from earlier runs are left
// alone: cleanup belongs to the caller.
func (r *Renderer) RenderTo(ctx context.Context, set *intent.Set, dir string) (*Result, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	configs, siteErrs := r.Render(set)

	slugs := make([]string, 0, len(configs))
	for slug := range configs {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	jobs := make(chan string, len(slugs))
	type writeResult struct {
		path string
		err  error
	}
	results := make(chan writeResult, len(slugs))

	workers := r.workers
	if len(slugs) < workers {
		workers = len(slugs)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for slug := range jobs {
				select {
				case <-ctx.Done():
					results <- writeResult{err: ctx.Err()}
					return
				default:
				}

				path := filepath.Join(dir, Filename(slug))
				data, err := Marshal(configs[slug])
				if err == nil {
					err = os.WriteFile(path, data, 0o644)
				}
				if err != nil {
					results <- writeResult{err: fmt.Errorf("site %s: %w", slug, err)}
					continue
				}
				r.log.WithField("file", path).Info("generated site config")
				results <- writeResult{path: path}
			}
		}()
	}

	for _, slug := range slugs {
		jobs <- slug
	}
	close(jobs)
	wg.Wait()
	close(results)

	res := &Result{Errors: siteErrs}
	for wr := range results {
		if wr.err != nil {
			return nil, wr.err
		}
		res.Written = append(res.Written, wr.path)
	}
	sort.Strings(res.Written)

	return res, nil
}
