package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/initiativehq/initiativectl/internal/cache"
	"github.com/initiativehq/initiativectl/internal/client"
	"github.com/initiativehq/initiativectl/pkg/models"
)

const listCacheTTL = 30 * time.Second

func newListCmd(a *app) *cobra.Command {
	var page, limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List initiatives",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			key := cache.InitiativeListKey(page, limit)
			if a.cache != nil {
				if raw, found, err := a.cache.Get(ctx, key); err == nil && found {
					var initiatives []*models.Initiative
					if json.Unmarshal(raw, &initiatives) == nil {
						printInitiatives(cmd, initiatives)
						return nil
					}
				}
			}

			initiatives, meta, err := a.api.ListInitiatives(ctx, page, limit)
			if err != nil {
				return err
			}
			if a.cache != nil {
				if raw, err := json.Marshal(initiatives); err == nil {
					_ = a.cache.Set(ctx, key, raw, listCacheTTL)
				}
			}

			printInitiatives(cmd, initiatives)
			if meta.HasNext {
				cmd.Printf("\n%d total, use --page %d for more\n", meta.Total, meta.Page+1)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 20, "results per page")
	return cmd
}

func newCreateCmd(a *app) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a new initiative",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := a.api.CreateInitiative(cmd.Context(), client.CreateInitiativeRequest{
				Title:       args[0],
				Description: description,
			})
			if err != nil {
				return err
			}
			cmd.Printf("created initiative %s (%s)\n", in.ID, in.Status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "initiative description")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <initiative-id>",
		Short: "Show one initiative",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid initiative id: %w", err)
			}

			in, err := a.api.GetInitiative(cmd.Context(), id)
			if err != nil {
				return err
			}

			cmd.Printf("%s\n  status: %s\n  created: %s\n", in.Title, in.Status, in.CreatedAt.Format(time.RFC3339))
			if in.Description != "" {
				cmd.Printf("  description: %s\n", in.Description)
			}
			return nil
		},
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	var title, description, status string

	cmd := &cobra.Command{
		Use:   "update <initiative-id>",
		Short: "Update initiative fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid initiative id: %w", err)
			}

			var req client.UpdateInitiativeRequest
			if cmd.Flags().Changed("title") {
				req.Title = &title
			}
			if cmd.Flags().Changed("description") {
				req.Description = &description
			}
			if cmd.Flags().Changed("status") {
				req.Status = &status
			}

			in, err := a.api.UpdateInitiative(cmd.Context(), id, req)
			if err != nil {
				return err
			}
			cmd.Printf("updated initiative %s (%s)\n", in.ID, in.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <initiative-id>",
		Short: "Delete an initiative",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid initiative id: %w", err)
			}
			if err := a.api.DeleteInitiative(cmd.Context(), id); err != nil {
				return err
			}
			cmd.Printf("deleted initiative %s\n", id)
			return nil
		},
	}
}

func printInitiatives(cmd *cobra.Command, initiatives []*models.Initiative) {
	if len(initiatives) == 0 {
		cmd.Println("no initiatives")
		return
	}
	for _, in := range initiatives {
		cmd.Printf("%s  %-10s %s\n", in.ID, in.Status, in.Title)
	}
}
