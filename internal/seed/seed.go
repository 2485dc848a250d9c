// Package seed populates the food guide from the catalog bundled with the
// binary.
//
// The catalog is JSON checked against a CUE schema before anything is
// written. A catalog that cannot be read, parsed, or validated is logged
// and skipped: the app keeps working with an empty food guide.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/santelocale/healthlog/internal/health"
	"github.com/santelocale/healthlog/internal/observability"
	"github.com/santelocale/healthlog/internal/store"
)

//go:embed content.json
var bundledCatalog []byte

//go:embed catalog.cue
var catalogSchema string

// ErrInvalidCatalog is returned when the asset does not match the schema.
var ErrInvalidCatalog = errors.New("seed: invalid food catalog")

// Target receives the parsed catalog. *store.FoodDAO satisfies it.
type Target interface {
	UpsertAll(ctx context.Context, foods []health.FoodReference) error
	Count(ctx context.Context) (int, error)
}

type catalog struct {
	Foods []catalogFood `json:"foods"`
}

type catalogFood struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	ImageURL string `json:"imageUrl"`
	Tip      string `json:"tip"`
}

// Loader reads the catalog and writes it through a Target.
type Loader struct {
	asset  func() ([]byte, error)
	source string
	logger *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(ld *Loader) { ld.logger = l }
}

// WithAssetFile reads the catalog from path instead of the bundled copy.
// An empty path keeps the bundled catalog.
func WithAssetFile(path string) Option {
	return func(ld *Loader) {
		if path == "" {
			return
		}
		ld.source = path
		ld.asset = func() ([]byte, error) { return os.ReadFile(path) }
	}
}

// WithAsset uses b as the catalog.
func WithAsset(b []byte) Option {
	return func(ld *Loader) {
		ld.source = "inline"
		ld.asset = func() ([]byte, error) { return b, nil }
	}
}

// NewLoader returns a Loader over the bundled catalog.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		asset:  func() ([]byte, error) { return bundledCatalog, nil },
		source: "bundled",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Parse reads and validates the catalog without writing anything.
func (l *Loader) Parse() ([]health.FoodReference, error) {
	raw, err := l.asset()
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", l.source, err)
	}
	return parseCatalog(raw)
}

func parseCatalog(raw []byte) ([]health.FoodReference, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(catalogSchema).LookupPath(cue.ParsePath("#Catalog"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile catalog schema: %w", err)
	}

	// JSON is valid CUE.
	data := ctx.CompileBytes(raw)
	if err := data.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	v := schema.Unify(data)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	var c catalog
	if err := v.Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	seen := make(map[string]struct{}, len(c.Foods))
	foods := make([]health.FoodReference, 0, len(c.Foods))
	for _, f := range c.Foods {
		if _, dup := seen[f.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidCatalog, f.ID)
		}
		seen[f.ID] = struct{}{}
		foods = append(foods, health.FoodReference{
			ID:       f.ID,
			Name:     f.Name,
			Category: health.Category(f.Category),
			ImageRef: f.ImageURL,
			Tip:      f.Tip,
		})
	}
	return foods, nil
}

// Load upserts the whole catalog into target and returns the number of
// rows written. Loading the same catalog twice leaves the table as after
// the first load.
func (l *Loader) Load(ctx context.Context, target Target) (int, error) {
	foods, err := l.Parse()
	if err == nil {
		err = target.UpsertAll(ctx, foods)
	}
	if err != nil {
		observability.RecordSeed(0, err)
		return 0, err
	}
	observability.RecordSeed(len(foods), nil)
	l.logger.Info("food catalog loaded", "source", l.source, "count", len(foods))
	return len(foods), nil
}

// LoadIfEmpty loads the catalog only when target has no rows. Failures
// are logged and swallowed.
func (l *Loader) LoadIfEmpty(ctx context.Context, target Target) {
	n, err := target.Count(ctx)
	if err != nil {
		l.logger.Warn("food catalog skipped", "error", err)
		return
	}
	if n > 0 {
		l.logger.Debug("food catalog already present", "count", n)
		return
	}
	if _, err := l.Load(ctx, target); err != nil {
		l.logger.Error("food catalog not loaded", "source", l.source, "error", err)
	}
}

// Seed adapts LoadIfEmpty to store.SeedFunc.
func (l *Loader) Seed(ctx context.Context, foods *store.FoodDAO) {
	l.LoadIfEmpty(ctx, foods)
}
