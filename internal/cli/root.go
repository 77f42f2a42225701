// Package cli implements spicectl, the operator command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"savethespice-backend/internal/config"
	"savethespice-backend/internal/di"
)

// Factory builds the application container a command runs against.
type Factory func(ctx context.Context) (*di.Container, func(), error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	User string
}

// LoadContainer returns a Factory reading configuration from dir.
func LoadContainer(dir string) Factory {
	return func(ctx context.Context) (*di.Container, func(), error) {
		cfg, err := config.NewLoader(dir).Load()
		if err != nil {
			return nil, nil, err
		}
		return di.InitializeContainer(ctx, cfg)
	}
}

// NewRootCommand creates the spicectl root command.
func NewRootCommand(factory Factory) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "spicectl",
		Short:         "Operate on SaveTheSpice user data",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.User == "" && cmd.HasParent() && cmd.Parent().HasParent() {
				return fmt.Errorf("--user is required")
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.User, "user", "u", "", "user id to operate on")

	cmd.AddCommand(newUserCommand(opts, factory))
	cmd.AddCommand(newCategoriesCommand(opts, factory))
	cmd.AddCommand(newIDsCommand(opts, factory))
	return cmd
}

// run builds the container, calls fn and prints its result as JSON.
func run(cmd *cobra.Command, factory Factory, fn func(ctx context.Context, c *di.Container) (any, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c, cleanup, err := factory(ctx)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer cleanup()

	out, err := fn(ctx, c)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
