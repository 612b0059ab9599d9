package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cppla/posturemon/config"
	"github.com/cppla/posturemon/jobs"
	"github.com/cppla/posturemon/rewards"
	"github.com/cppla/posturemon/routes"
	"github.com/cppla/posturemon/services"
	"github.com/cppla/posturemon/store"
	"github.com/cppla/posturemon/utils"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "posturemon",
		Short:         "Posture monitoring backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath, "path to the YAML config file")
	root.AddCommand(serveCmd(), sweepCmd(), levelCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func sweepCmd() *cobra.Command {
	var lookback time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the achievement sweep once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := boot(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			sweeper := jobs.NewAchievementSweeper(app.store, app.rewards, utils.Logger)
			sweeper.SetSince(time.Now().UTC().Add(-lookback))
			res, err := sweeper.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "users=%d granted=%d failed=%d\n", res.Users, res.Granted, res.Failed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&lookback, "lookback", jobs.DefaultLookback, "how far back to look for ended sessions")
	return cmd
}

func levelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "level <points>",
		Short: "Print the level and next threshold for a points total",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			points, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("points must be an integer: %w", err)
			}
			level, err := rewards.LevelFor(points)
			if err != nil {
				return err
			}
			next, err := rewards.NextLevelThreshold(level)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "level=%d next_level_points=%d points_to_next_level=%d\n", level, next, next-points)
			return nil
		},
	}
}

type app struct {
	cfg     config.AppConfig
	store   store.Store
	posture *services.PostureService
	rewards *services.RewardsService
	closers []utils.ShutdownHook
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, c := range a.closers {
		if err := c(ctx); err != nil {
			utils.Logger.Warn("close failed", zap.Error(err))
		}
	}
}

// boot loads configuration and builds the store and services shared by every command.
func boot(ctx context.Context) (*app, error) {
	config.DefaultConfigPath = configPath
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		return nil, err
	}

	st, err := config.OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	a := &app{cfg: cfg, store: st}
	a.closers = append(a.closers, st.Close)

	var locker services.Locker
	if cfg.LedgerLockEnabled {
		client := utils.NewRedisClient(cfg)
		locker = utils.NewRedisLocker(client, time.Duration(cfg.LedgerLockTTLSec)*time.Second)
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		utils.Logger.Info("ledger lock enabled", zap.String("redis", fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort)))
	}

	a.posture = services.NewPostureService(st, cfg.DefaultUserID, utils.Logger)
	a.rewards = services.NewRewardsService(st, locker, utils.Logger)
	return a, nil
}

func runServe() error {
	a, err := boot(context.Background())
	if err != nil {
		return err
	}

	r := routes.SetupRouter(a.cfg, routes.Deps{Store: a.store, Posture: a.posture, Rewards: a.rewards})

	hooks := []utils.ShutdownHook{}
	if a.cfg.AchievementSweepSpec != "" {
		sweeper := jobs.NewAchievementSweeper(a.store, a.rewards, utils.Logger)
		if err := sweeper.Start(a.cfg.AchievementSweepSpec); err != nil {
			a.close()
			return err
		}
		hooks = append(hooks, sweeper.Stop)
	}
	hooks = append(hooks, a.closers...)

	utils.Sugar.Infof("Starting server on port %s (graceful, store=%s)", a.cfg.AppPort, a.store.Driver())
	if err := utils.GraceServer(":"+a.cfg.AppPort, r, hooks...); err != nil {
		utils.Sugar.Errorf("server stopped with error: %v", err)
		return err
	}
	return nil
}
