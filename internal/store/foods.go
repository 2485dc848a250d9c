package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/santelocale/healthlog/internal/health"
	"github.com/santelocale/healthlog/internal/live"
	"github.com/santelocale/healthlog/internal/observability"
)

// FoodDAO is the query and command surface over food_items. Rows are
// reference data and are stored in clear.
type FoodDAO struct {
	store *Store
}

// ObserveByCategory streams the foods of one category ordered by name.
func (d *FoodDAO) ObserveByCategory(ctx context.Context, c health.Category) *live.Subscription[[]health.FoodReference] {
	return live.Observe(ctx, d.store.tracker, "foods.by_category", func(ctx context.Context) ([]health.FoodReference, error) {
		return d.ByCategory(ctx, c)
	}, FoodsTable)
}

// ObserveAll streams every food, grouped VERT, JAUNE, ROUGE and ordered by
// name within a group.
func (d *FoodDAO) ObserveAll(ctx context.Context) *live.Subscription[[]health.FoodReference] {
	return live.Observe(ctx, d.store.tracker, "foods.all", d.All, FoodsTable)
}

// ByCategory returns one snapshot of ObserveByCategory. An unknown
// category yields an error rather than an empty list.
func (d *FoodDAO) ByCategory(ctx context.Context, c health.Category) ([]health.FoodReference, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("foods by category: %w: %q", health.ErrUnknownCategory, c)
	}
	foods, err := d.query(ctx, "foods.by_category", `
		SELECT id, name, category, image_url, tip
		FROM food_items
		WHERE category = ?
	`, string(c))
	if err != nil {
		return nil, err
	}
	sortFoods(foods, false)
	return foods, nil
}

// All returns one snapshot of ObserveAll.
func (d *FoodDAO) All(ctx context.Context) ([]health.FoodReference, error) {
	foods, err := d.query(ctx, "foods.all", `
		SELECT id, name, category, image_url, tip
		FROM food_items
	`)
	if err != nil {
		return nil, err
	}
	sortFoods(foods, true)
	return foods, nil
}

// UpsertAll inserts or replaces foods by ID in one transaction. Names are
// NFC-normalised so reseeding the same content never changes a row.
func (d *FoodDAO) UpsertAll(ctx context.Context, foods []health.FoodReference) error {
	if err := d.store.checkOpen(); err != nil {
		return err
	}
	for i, f := range foods {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("upsert foods: item %d: %w", i, err)
		}
	}

	tx, err := d.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert foods: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO food_items (id, name, category, image_url, tip)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			image_url = excluded.image_url,
			tip = excluded.tip
	`)
	if err != nil {
		return fmt.Errorf("upsert foods: prepare: %w", err)
	}
	defer stmt.Close()

	for _, f := range foods {
		_, err := stmt.ExecContext(ctx,
			strings.TrimSpace(f.ID),
			norm.NFC.String(f.Name),
			string(f.Category),
			f.ImageRef,
			norm.NFC.String(f.Tip),
		)
		if err != nil {
			return fmt.Errorf("upsert food %q: %w", f.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upsert foods: commit: %w", err)
	}

	observability.RecordWrite(FoodsTable, "upsert")
	d.store.tracker.Notify(FoodsTable)
	return nil
}

// Count returns the number of foods without loading them.
func (d *FoodDAO) Count(ctx context.Context) (int, error) {
	if err := d.store.checkOpen(); err != nil {
		return 0, err
	}
	var n int
	if err := d.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM food_items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count foods: %w", err)
	}
	return n, nil
}

func (d *FoodDAO) query(ctx context.Context, name, query string, args ...any) ([]health.FoodReference, error) {
	if err := d.store.checkOpen(); err != nil {
		return nil, err
	}
	defer observability.ObserveQuery(name, time.Now())

	rows, err := d.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query foods: %w", err)
	}
	defer rows.Close()

	foods := []health.FoodReference{}
	for rows.Next() {
		var (
			f        health.FoodReference
			category string
		)
		if err := rows.Scan(&f.ID, &f.Name, &category, &f.ImageRef, &f.Tip); err != nil {
			return nil, fmt.Errorf("scan food: %w", err)
		}
		f.Category = health.Category(category)
		foods = append(foods, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foods: %w", err)
	}
	return foods, nil
}

// sortFoods orders by French collation of name, then ID. With byCategory
// the category rank comes first.
func sortFoods(foods []health.FoodReference, byCategory bool) {
	// Collators are not safe for concurrent use.
	col := collate.New(language.French)
	slices.SortStableFunc(foods, func(a, b health.FoodReference) int {
		if byCategory {
			if c := a.Category.Rank() - b.Category.Rank(); c != 0 {
				return c
			}
		}
		if c := col.CompareString(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
