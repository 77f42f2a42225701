package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"savethespice-backend/internal/di"
	"savethespice-backend/internal/domain"
)

func newUserCommand(opts *RootOptions, factory Factory) *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage user metadata records"}
	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Create the metadata record of a user; existing records are kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, factory, func(ctx context.Context, c *di.Container) (any, error) {
				return c.Meta.CreateUser(ctx, opts.User)
			})
		},
	})
	return cmd
}

// SweepResult is printed by `categories sweep`.
type SweepResult struct {
	UpdatedRecipes []int `json:"updatedRecipes"`
	FailedRecipes  []int `json:"failedRecipes,omitempty"`
}

func newCategoriesCommand(opts *RootOptions, factory Factory) *cobra.Command {
	cmd := &cobra.Command{Use: "categories", Short: "Maintain category references"}
	cmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Remove references to deleted categories from every recipe of a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, factory, func(ctx context.Context, c *di.Container) (any, error) {
				cleanup, err := c.Maintainer.SweepDanglingReferences(ctx, opts.User)
				result := SweepResult{UpdatedRecipes: cleanup.Updated(), FailedRecipes: cleanup.Failed}
				if result.UpdatedRecipes == nil {
					result.UpdatedRecipes = []int{}
				}
				return result, err
			})
		},
	})
	return cmd
}

func newIDsCommand(opts *RootOptions, factory Factory) *cobra.Command {
	var entity string
	cmd := &cobra.Command{Use: "ids", Short: "Inspect id allocation"}
	next := &cobra.Command{
		Use:   "next",
		Short: "Allocate the next id of an entity type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := domain.EntityType(entity)
			if !t.Valid() {
				return fmt.Errorf("invalid --type %q: must be recipe or category", entity)
			}
			return run(cmd, factory, func(ctx context.Context, c *di.Container) (any, error) {
				id, err := c.Allocator.NextID(ctx, opts.User, t)
				return map[string]any{"type": t, "id": id}, err
			})
		},
	}
	next.Flags().StringVarP(&entity, "type", "t", string(domain.EntityRecipe), "entity type (recipe|category)")
	cmd.AddCommand(next)
	return cmd
}
