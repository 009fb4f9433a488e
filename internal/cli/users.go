package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/99minutos/user-directory/pkg/client"
)

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

func (o *RootOptions) timeoutContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), o.Timeout)
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var zip string
	cmd := &cobra.Command{
		Use:          "list",
		Short:        "List users, optionally filtered by zip code",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := rootOpts.timeoutContext(cmd)
			defer cancel()

			c := rootOpts.client()
			var (
				users []client.User
				err   error
			)
			if zip != "" {
				users, err = c.ListByZipCode(ctx, zip)
			} else {
				users, err = c.List(ctx)
			}
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).Users(users)
		},
	}
	cmd.Flags().StringVar(&zip, "zip", "", "only users with this 5-digit zip code")
	return cmd
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "get <id>",
		Short:        "Show one user",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := rootOpts.timeoutContext(cmd)
			defer cancel()

			u, err := rootOpts.client().Get(ctx, args[0])
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).User("", u)
		},
	}
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var req client.CreateRequest
	cmd := &cobra.Command{
		Use:          "create",
		Short:        "Create a user and resolve its location",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := rootOpts.timeoutContext(cmd)
			defer cancel()

			u, err := rootOpts.client().Create(ctx, req)
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).User("User created successfully", u)
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.ZipCode, "zip", "", "5-digit US zip code")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("zip")
	return cmd
}

// NewUpdateCommand creates the update command. Only flags that were set are sent.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var name, zip string
	cmd := &cobra.Command{
		Use:          "update <id>",
		Short:        "Change a user's name or zip code",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req client.UpdateRequest
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("zip") {
				req.ZipCode = &zip
			}
			if req.Name == nil && req.ZipCode == nil {
				return fmt.Errorf("nothing to update: pass --name and/or --zip")
			}

			ctx, cancel := rootOpts.timeoutContext(cmd)
			defer cancel()

			u, err := rootOpts.client().Update(ctx, args[0], req)
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).User("User updated successfully", u)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new display name")
	cmd.Flags().StringVar(&zip, "zip", "", "new 5-digit zip code")
	return cmd
}

// NewDeleteCommand creates the delete command. Several ids are deleted in
// parallel and summarised.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "delete <id> [id...]",
		Short:        "Delete one or more users",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := rootOpts.timeoutContext(cmd)
			defer cancel()

			c := rootOpts.client()
			out := rootOpts.formatter(cmd)

			if len(args) == 1 {
				u, err := c.Delete(ctx, args[0])
				if err != nil {
					return err
				}
				return out.User("User deleted successfully", u)
			}

			res := c.BulkDelete(ctx, args)
			if out.Format == "json" {
				failed := make(map[string]string, len(res.Failed))
				for id, err := range res.Failed {
					failed[id] = err.Error()
				}
				if err := out.JSON(map[string]any{"succeeded": res.Succeeded, "failed": failed}); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out.Writer, "deleted %d of %d users\n", res.Succeeded, len(args))
				for id, err := range res.Failed {
					fmt.Fprintf(out.Writer, "  %s: %v\n", id, err)
				}
			}
			if len(res.Failed) > 0 {
				return fmt.Errorf("%d deletes failed", len(res.Failed))
			}
			return nil
		},
	}
}

// NewRefreshCommand creates the refresh command.
func NewRefreshCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "refresh <id>",
		Short:        "Re-resolve a user's location from its stored zip code",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := rootOpts.timeoutContext(cmd)
			defer cancel()

			u, err := rootOpts.client().RefreshLocation(ctx, args[0])
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).User("Location data refreshed successfully", u)
		},
	}
}
