package cli

import (
	"github.com/spf13/cobra"

	"github.com/santelocale/healthlog/internal/health"
)

// FoodsOptions holds flags for the foods command.
type FoodsOptions struct {
	*RootOptions
	Category string
	Reload   bool
}

// NewFoodsCommand creates the foods command.
func NewFoodsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FoodsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "foods",
		Short: "Browse the food guide",
		Long: `Browse the food guide, grouped VERT (eat freely), JAUNE (moderate)
and ROUGE (avoid).

Example:
  santelocale foods --category vert
  santelocale foods --reload`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var category health.Category
			if opts.Category != "" {
				c, err := health.ParseCategory(opts.Category)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid --category", err)
				}
				category = c
			}
			return withApp(opts.RootOptions, cmd, func(a *app) error {
				ctx := cmd.Context()
				s, err := a.provider.Get(ctx)
				if err != nil {
					return wrapStoreError("failed to open food guide", err)
				}
				// First run seeds in the background.
				select {
				case <-a.provider.Seeded():
				case <-ctx.Done():
					return ctx.Err()
				}
				if opts.Reload {
					if _, err := a.loader.Load(ctx, s.Foods()); err != nil {
						return WrapExitError(ExitFailure, "failed to reload food guide", err)
					}
				}

				foods, err := a.repo.FoodsSnapshot(ctx, category)
				if err != nil {
					return wrapStoreError("failed to read food guide", err)
				}
				return opts.formatter(cmd).Result(foods, renderFoods(foods))
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Category, "category", "c", "", "VERT|JAUNE|ROUGE (or FREE|MODERATE|AVOID)")
	cmd.Flags().BoolVar(&opts.Reload, "reload", false, "upsert the catalog again before listing")

	return cmd
}
