package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"cleancity/backend/internal/auth"
	"cleancity/backend/internal/complaint"
	"cleancity/backend/internal/config"
	"cleancity/backend/internal/models"
	"cleancity/backend/internal/observability"
	"cleancity/backend/internal/storage"

	"github.com/spf13/cobra"
)

// adminService is the part of the lifecycle manager the CLI drives.
type adminService interface {
	Assign(ctx context.Context, actor models.Actor, id, workerID string) (*models.Complaint, error)
	UpdateStatus(ctx context.Context, actor models.Actor, id string, target models.Status) (*models.Complaint, error)
	Stats(ctx context.Context, actor models.Actor) (map[models.Status]int64, error)
	SetRole(ctx context.Context, actor models.Actor, userID, role string) error
}

type openFunc func(ctx context.Context, cfg *config.Config) (adminService, func(), error)

// openService connects storage and builds a lifecycle manager without
// evidence collaborators; the CLI never submits complaints.
func openService(ctx context.Context, cfg *config.Config) (adminService, func(), error) {
	store, err := storage.Open(ctx, cfg.Database, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	svc := complaint.NewService(store, nil, nil, observability.GetLogger().Named("complaint"))
	return svc, func() { _ = store.Close() }, nil
}

func newRootCmd(open openFunc, out io.Writer) *cobra.Command {
	var (
		cfgFile string
		adminID string
		cfg     *config.Config
	)

	root := &cobra.Command{
		Use:           "admin",
		Short:         "CleanCity administration tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = loaded
			observability.InitializeLogger(cfg.Logger)
			return nil
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	root.PersistentFlags().StringVar(&adminID, "as", "admin-cli", "admin identity recorded on changes")

	actor := func() models.Actor { return models.Actor{ID: adminID, Role: models.RoleAdmin} }

	// withService runs fn against a connected lifecycle manager.
	withService := func(cmd *cobra.Command, fn func(ctx context.Context, svc adminService) error) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		svc, closeFn, err := open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer closeFn()
		return fn(ctx, svc)
	}

	tokenCmd := &cobra.Command{
		Use:   "token <user_id> <role>",
		Short: "Issue a bearer token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, ok := models.ParseRole(args[1])
			if !ok {
				return fmt.Errorf("invalid role %q", args[1])
			}
			token, err := auth.NewTokens(cfg.Auth).Issue(args[0], role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	roleCmd := &cobra.Command{
		Use:   "role <user_id> <role>",
		Short: "Assign a role in the user registry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc adminService) error {
				if err := svc.SetRole(ctx, actor(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "User %s is now %s.\n", args[0], args[1])
				return nil
			})
		},
	}

	assignCmd := &cobra.Command{
		Use:   "assign <complaint_id> <worker_id>",
		Short: "Assign a complaint to a worker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc adminService) error {
				c, err := svc.Assign(ctx, actor(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Complaint %s assigned to %s (%s).\n", c.ID, args[1], c.Priority)
				return nil
			})
		},
	}

	closeCmd := &cobra.Command{
		Use:   "close <complaint_id>",
		Short: "Close a complaint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc adminService) error {
				c, err := svc.UpdateStatus(ctx, actor(), args[0], models.StatusClosed)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Complaint %s is %s.\n", c.ID, c.Status)
				return nil
			})
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print complaint counts per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc adminService) error {
				counts, err := svc.Stats(ctx, actor())
				if err != nil {
					return err
				}
				for _, s := range []models.Status{models.StatusOpen, models.StatusAssigned, models.StatusCleaned, models.StatusClosed} {
					fmt.Fprintf(cmd.OutOrStdout(), "%-9s %d\n", s, counts[s])
				}
				return nil
			})
		},
	}

	root.AddCommand(tokenCmd, roleCmd, assignCmd, closeCmd, statsCmd)
	return root
}
