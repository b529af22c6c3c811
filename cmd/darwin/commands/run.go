package commands

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/realjkeee/zenbot/internal/api"
	"github.com/realjkeee/zenbot/internal/api/handlers"
	"github.com/realjkeee/zenbot/internal/contracts"
	"github.com/realjkeee/zenbot/internal/evaluation"
	"github.com/realjkeee/zenbot/internal/export"
	"github.com/realjkeee/zenbot/internal/genome"
	"github.com/realjkeee/zenbot/internal/metrics"
	"github.com/realjkeee/zenbot/internal/population"
	"github.com/realjkeee/zenbot/internal/scheduler"
	"github.com/realjkeee/zenbot/internal/scheduler/jobs"
	"github.com/realjkeee/zenbot/internal/search"
	"github.com/realjkeee/zenbot/internal/store"
	"github.com/realjkeee/zenbot/pkg/config"
	"github.com/realjkeee/zenbot/pkg/database"
	"github.com/realjkeee/zenbot/pkg/logger"
	"github.com/realjkeee/zenbot/pkg/redis"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the generational search",
	Long: `Runs the generation loop until interrupted (or --generations is reached):

  1. backfill market data for the selector
  2. simulate every member of every selected strategy's population
  3. export results (CSV, optional Postgres/Redis) and a checkpoint
  4. breed the next generation

Every generation writes backtesting_<unix>_gen_<n>.csv and
generation_data_<unix>_gen_<n>.json into the output directory. A
checkpoint passed with --population_data seeds the next run.

Example:
  go run ./cmd/darwin run --selector=bitfinex.ETH-USD --days=10 --currency_capital=5000
  go run ./cmd/darwin run --use_strategies=macd,trend_ema --population=20 --generations=5
  go run ./cmd/darwin run --population_data=generation_data_1700000000_gen_3.json --serve`,
	RunE: runSearch,
}

var (
	runSelector       string
	runDays           int
	runCurrency       float64
	runAsset          float64
	runSymmetrical    bool
	runStrategies     string
	runPopulation     int
	runPopulationData string
	runWorkers        int
	runSeed           int64
	runGenerations    int
	runOutput         string
	runSkipBackfill   bool
	runZenbot         string
	runStrategiesFile string
	runServe          bool
	runMutationRate   float64
)

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringVar(&runSelector, "selector", "bitfinex.ETH-USD", "exchange.PAIR to simulate")
	f.IntVar(&runDays, "days", 0, "days of data to simulate (0 = evaluator default)")
	f.Float64Var(&runCurrency, "currency_capital", 0, "starting currency capital")
	f.Float64Var(&runAsset, "asset_capital", 0, "starting asset capital")
	f.BoolVar(&runSymmetrical, "symmetrical", false, "pass --symmetrical=true to the simulator")
	f.StringVar(&runStrategies, "use_strategies", genome.SelectAll, "all or a comma separated strategy list")
	f.IntVar(&runPopulation, "population", 100, "members per strategy population")
	f.StringVar(&runPopulationData, "population_data", "", "checkpoint file to seed the populations from")
	f.IntVar(&runWorkers, "workers", -1, "parallel simulations (0 = CPU count, default DARWIN_WORKERS)")
	f.Int64Var(&runSeed, "seed", 0, "random seed (0 = DARWIN_SEED or time based)")
	f.IntVar(&runGenerations, "generations", 0, "stop after N generations (0 = run until interrupted)")
	f.StringVar(&runOutput, "output", "", "artifact directory (default DARWIN_OUTPUT_DIR)")
	f.BoolVar(&runSkipBackfill, "skip-backfill", false, "do not refresh market data before each generation")
	f.StringVar(&runZenbot, "zenbot", "", "evaluator executable (default ZENBOT_BIN or ./zenbot.sh)")
	f.StringVar(&runStrategiesFile, "strategies-file", "", "YAML strategies override (default DARWIN_STRATEGIES_FILE)")
	f.BoolVar(&runServe, "serve", false, "start the status server (/api, /ws, /metrics)")
	f.Float64Var(&runMutationRate, "mutation-rate", genome.DefaultMutationRate, "per-gene resample probability")
}

// applyRunFlags lets explicit flags override the environment config
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if runWorkers >= 0 {
		cfg.Darwin.Workers = runWorkers
	}
	if runSeed != 0 {
		cfg.Darwin.Seed = runSeed
	}
	if runOutput != "" {
		cfg.Darwin.OutputDir = runOutput
	}
	if runZenbot != "" {
		cfg.Darwin.ZenbotBin = runZenbot
	}
	if runStrategiesFile != "" {
		cfg.Darwin.StrategiesFile = runStrategiesFile
	}
	if cmd.Flags().Changed("serve") {
		cfg.Status.Enabled = runServe
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	// 1. Load config
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)

	// 2. Initialize logger
	log := newLogger(cfg)

	sim := evaluation.SimConfig{
		Selector:        runSelector,
		Days:            runDays,
		CurrencyCapital: runCurrency,
		AssetCapital:    runAsset,
		Symmetrical:     runSymmetrical,
	}
	if err := sim.Validate(); err != nil {
		return fmt.Errorf("invalid simulation window: %w", err)
	}

	// 3. Strategies
	registry, err := loadRegistry(cfg.Darwin.StrategiesFile)
	if err != nil {
		return err
	}
	strategies, err := registry.Select(runStrategies)
	if err != nil {
		return err
	}

	// 4. Checkpoint
	var checkpoint *export.Checkpoint
	if runPopulationData != "" {
		checkpoint, err = export.LoadCheckpoint(runPopulationData, strategies)
		if err != nil {
			return err
		}
		if len(checkpoint.Ignored) > 0 {
			log.WithField("strategies", checkpoint.Ignored).Warn("Checkpoint strategies not selected, ignored")
		}
	}

	// 5. Populations
	seed := cfg.Darwin.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	opts := population.DefaultOptions(runPopulation)
	opts.MutationRate = runMutationRate

	pops := make([]*population.Population, 0, len(strategies))
	for _, s := range strategies {
		p, err := population.Seed(s, opts, rand.New(rand.NewSource(strategySeed(seed, s.Name))), checkpoint.Members(s.Name))
		if err != nil {
			return fmt.Errorf("create population: %w", err)
		}
		pops = append(pops, p)
	}

	runID := uuid.NewString()
	PrintHeader("darwin",
		fmt.Sprintf("Run ID    : %s", runID),
		fmt.Sprintf("Strategy  : %s", runStrategies),
		fmt.Sprintf("Population: %d per strategy (%d strategies)", runPopulation, len(strategies)),
		fmt.Sprintf("Selector  : %s", sim.Selector),
	)
	log.WithFields(map[string]interface{}{
		"run_id":     runID,
		"seed":       seed,
		"strategies": len(strategies),
		"population": runPopulation,
		"checkpoint": runPopulationData,
	}).Infof("Backtesting strategy %s ...", runStrategies)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Evaluation
	builder := evaluation.NewCommandBuilder(cfg.Darwin.ZenbotBin)
	runner := evaluation.ExecRunner{}
	pipeline := evaluation.NewPipeline(builder, runner, sim, evaluation.Options{
		Workers:   cfg.Darwin.Workers,
		SpawnRate: cfg.Darwin.SpawnRate,
	}, log)

	var refresher contracts.DataRefresher = evaluation.NewRefresher(builder, runner, sim, log)
	if runSkipBackfill {
		refresher = evaluation.NoopRefresher{}
	}

	// 7. Persistence
	sinks := []contracts.ResultSink{export.NewCSVSink(cfg.Darwin.OutputDir)}
	checkpoints := []contracts.CheckpointStore{export.NewCheckpointFile(cfg.Darwin.OutputDir)}

	if cfg.Database.Enabled() {
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()

		repo := store.NewRepository(db.Pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, repo)
		log.Info("Connected to database, results are stored in darwin.results")
	}

	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rc.Close()

		mirror := store.NewRedisMirror(rc)
		sinks = append(sinks, mirror)
		checkpoints = append(checkpoints, mirror)
		log.Info("Connected to redis, leaderboards are mirrored")
	}

	// 8. Observers
	loopOpts := []search.Option{
		search.WithSinks(sinks...),
		search.WithCheckpointStores(checkpoints...),
		search.WithOutput(os.Stdout),
	}

	var recorder *metrics.Recorder
	if cfg.MetricsEnabled {
		recorder = metrics.NewRecorder()
		pipeline.AddObserver(recorder)
		loopOpts = append(loopOpts, search.WithObservers(recorder))
	}

	var hub *api.Hub
	if cfg.Status.Enabled {
		hub = api.NewHub(log)
		loopOpts = append(loopOpts, search.WithObservers(hub))
	}

	loop, err := search.NewLoop(search.Config{
		RunID:              runID,
		MaxGenerations:     runGenerations,
		RetryDelay:         30 * time.Second,
		MaxRefreshFailures: 0,
	}, pipeline, refresher, pops, log, loopOpts...)
	if err != nil {
		return err
	}

	// 9. Status server
	if cfg.Status.Enabled {
		server := startStatusServer(cfg, log, loop, hub, recorder)
		defer func() {
			hub.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("Status server shutdown failed")
			}
		}()
	}

	// 10. Housekeeping
	sched := scheduler.New(log)
	if cfg.Darwin.ArtifactRetention > 0 {
		if err := sched.AddJob(jobs.NewArtifactCleanupJob(cfg.Darwin.OutputDir, cfg.Darwin.ArtifactRetention, log)); err != nil {
			return err
		}
	}
	if err := sched.AddJob(jobs.NewProgressReportJob(loop, log)); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	// 11. Run
	err = loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Info("Interrupted, stopping after the current generation was abandoned")
		return nil
	}
	return err
}

func startStatusServer(cfg *config.Config, log *logger.Logger, loop *search.Loop, hub *api.Hub, recorder *metrics.Recorder) *api.Server {
	routes := api.Routes{
		Status: handlers.NewStatusHandler(loop, log),
		Hub:    hub,
	}
	if recorder != nil {
		routes.Metrics = recorder.Handler()
	}

	server := api.New(cfg.Status.Port, log, api.NewRouter(routes, log))
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Error("Status server stopped")
		}
	}()

	fmt.Printf("\n✅ Status server on http://localhost:%s (GET /api/populations, /ws, /metrics)\n", cfg.Status.Port)
	return server
}

// strategySeed derives an independent deterministic stream per strategy
func strategySeed(seed int64, strategy string) int64 {
	h := fnv.New64a()
	h.Write([]byte(strategy))
	return seed ^ int64(h.Sum64())
}
