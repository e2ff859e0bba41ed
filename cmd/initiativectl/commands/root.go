// Package commands wires the initiativectl CLI: thin cobra commands over
// the Initiative API client, with job watching through the poller.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/initiativehq/initiativectl/internal/cache"
	"github.com/initiativehq/initiativectl/internal/client"
	"github.com/initiativehq/initiativectl/internal/config"
	"github.com/initiativehq/initiativectl/internal/poller"
)

// app holds the dependencies shared by all commands, built once in the
// root PersistentPreRunE.
type app struct {
	cfg  *config.Config
	api  *client.HTTPClient
	jobs *poller.Poller

	// cache is nil when REDIS_URL is not configured; every use is
	// guarded. A broken cache never blocks a command.
	cache cache.Cache
}

// NewCommand constructs the top-level initiativectl command.
func NewCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:          "initiativectl",
		Short:        "Manage product initiatives and their AI discovery jobs",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a.cfg = cfg
			a.api = client.NewHTTPClient(cfg.API.BaseURL, cfg.API.Key, cfg.API.Timeout)
			a.jobs = poller.New(a.api.GetJob)

			if cfg.Redis.URL != "" {
				rc, err := cache.NewRedisCache(cfg.Redis.URL)
				if err != nil {
					slog.Warn("redis cache disabled", "error", err)
				} else {
					a.cache = rc
				}
			}
			return nil
		},
	}

	cmd.AddCommand(
		newLoginCmd(a),
		newListCmd(a),
		newCreateCmd(a),
		newShowCmd(a),
		newUpdateCmd(a),
		newDeleteCmd(a),
		newQuestionsCmd(a),
		newReadinessCmd(a),
		newMRDCmd(a),
		newScoreCmd(a),
		newWatchCmd(a),
	)

	return cmd
}
