// Package engine dispatches named dataset operations. It decodes and
// validates parameters, loads the referenced files once per request
// (sharing loads across concurrent requests), runs the analysis and wraps
// the result in a Response.
package engine

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/KaramelBytes/dfops/internal/analysis"
	"github.com/KaramelBytes/dfops/internal/dataset"
	"github.com/KaramelBytes/dfops/internal/logging"
)

// DefaultCacheMaxCost bounds the dataset cache, measured in cells.
const DefaultCacheMaxCost = 50_000_000

// Options configures an Engine. The zero value resolves paths relative to
// the working directory and disables the cache.
type Options struct {
	Resolver Resolver
	Load     dataset.LoadOptions
	// SampleLimit is the compare sample size used when a request leaves
	// sample_limit unset.
	SampleLimit int
	// AnomalyMultiplier is the IQR multiplier used when a request leaves
	// threshold unset.
	AnomalyMultiplier float64
	CacheEnabled      bool
	CacheMaxCost      int64
}

// Engine executes requests. It is safe for concurrent use; apart from the
// dataset cache it does not change after New.
type Engine struct {
	opts  Options
	cache *ristretto.Cache
	loads singleflight.Group
}

// New builds an Engine from opts.
func New(opts Options) (*Engine, error) {
	if opts.Resolver == nil {
		opts.Resolver = PathResolver{}
	}
	if opts.SampleLimit == 0 {
		opts.SampleLimit = analysis.DefaultSampleLimit
	}
	if opts.AnomalyMultiplier <= 0 {
		opts.AnomalyMultiplier = analysis.DefaultIQRMultiplier
	}
	e := &Engine{opts: opts}
	if opts.CacheEnabled {
		maxCost := opts.CacheMaxCost
		if maxCost <= 0 {
			maxCost = DefaultCacheMaxCost
		}
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: 1e4,
			MaxCost:     maxCost,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("create dataset cache: %w", err)
		}
		e.cache = cache
	}
	return e, nil
}

// Close releases the dataset cache.
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// Execute runs req, resolving file identifiers with the configured Resolver.
func (e *Engine) Execute(ctx context.Context, req Request) (*Response, error) {
	return e.ExecuteWith(ctx, e.opts.Resolver, req)
}

// ExecuteWith runs req, resolving file identifiers with res. Parameter
// errors and load errors are returned before any computation starts.
func (e *Engine) ExecuteWith(ctx context.Context, res Resolver, req Request) (*Response, error) {
	start := time.Now()
	name := strings.ToLower(strings.TrimSpace(req.Operation))
	op, ok := operations[name]
	if !ok {
		return nil, dataset.Invalid("unknown operation %q (available: %s)", req.Operation, strings.Join(Operations(), ", "))
	}
	p := op.newParams()
	if err := decodeParams(name, req.Params, p); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	files := append([]string{}, p.files()...)
	log := logging.WithFields(ctx, "operation", name, "run_id", id)
	log.Debug("operation started", "files", files)

	ds, err := e.loadAll(ctx, res, files)
	if err != nil {
		log.Info("operation failed", "kind", dataset.KindOf(err), "error", err)
		return nil, err
	}
	result, err := op.run(ctx, e, p, ds)
	if err != nil {
		log.Info("operation failed", "kind", dataset.KindOf(err), "error", err)
		return nil, err
	}

	resp := &Response{
		ID:         id,
		Operation:  name,
		Files:      files,
		DurationMS: time.Since(start).Milliseconds(),
		Message:    result.summary(),
		Result:     result,
	}
	log.Info("operation finished", "files", files, "duration_ms", resp.DurationMS)
	return resp, nil
}

// loadAll loads ids concurrently; an identifier listed twice is loaded once.
func (e *Engine) loadAll(ctx context.Context, res Resolver, ids []string) ([]*dataset.Dataset, error) {
	out := make([]*dataset.Dataset, len(ids))
	first := make(map[string]int, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		if _, dup := first[id]; dup {
			continue
		}
		first[id] = i
		i, id := i, id
		g.Go(func() error {
			d, err := e.load(gctx, res, id)
			if err != nil {
				return err
			}
			out[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, id := range ids {
		if out[i] == nil {
			out[i] = out[first[id]]
		}
	}
	return out, nil
}

// load returns the dataset for id. Concurrent loads of the same file
// version share one parse; callers see either the complete dataset or the
// load error.
func (e *Engine) load(ctx context.Context, res Resolver, id string) (*dataset.Dataset, error) {
	path, err := res.Resolve(id)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, dataset.NotFound(err, "file %s", id)
	}
	if info.IsDir() {
		return nil, dataset.NotFound(nil, "%s is a directory", id)
	}
	key := fmt.Sprintf("%s|%d|%d|%s", path, info.Size(), info.ModTime().UnixNano(), e.opts.Load.CacheKey())
	log := logging.FromContext(ctx)
	if e.cache != nil {
		if v, ok := e.cache.Get(key); ok {
			log.Debug("dataset cache hit", "file", id)
			return v.(*dataset.Dataset), nil
		}
	}
	v, err, shared := e.loads.Do(key, func() (any, error) {
		d, err := dataset.Load(path, e.opts.Load)
		if err != nil {
			return nil, err
		}
		if e.cache != nil {
			e.cache.Set(key, d, int64(d.NumRows()*d.NumCols())+1)
		}
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	d := v.(*dataset.Dataset)
	log.Debug("dataset loaded", "file", id, "rows", d.NumRows(), "columns", d.NumCols(), "shared", shared)
	return d, nil
}

// Health is the payload of the health endpoint.
type Health struct {
	Status       string    `json:"status"`
	Time         time.Time `json:"time"`
	CacheEnabled bool      `json:"cache_enabled"`
	Operations   int       `json:"operations"`
}

// Health reports liveness and static capabilities.
func (e *Engine) Health() Health {
	return Health{
		Status:       "healthy",
		Time:         time.Now().UTC(),
		CacheEnabled: e.cache != nil,
		Operations:   len(operations),
	}
}
