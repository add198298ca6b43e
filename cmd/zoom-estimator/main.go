package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	zoomestimator "github.com/menta2k/zoom-estimator"
	"github.com/menta2k/zoom-estimator/internal/config"
	"github.com/menta2k/zoom-estimator/internal/history"
	"github.com/menta2k/zoom-estimator/internal/logger"
	"github.com/menta2k/zoom-estimator/internal/server"
	"github.com/menta2k/zoom-estimator/internal/utils"
	"github.com/menta2k/zoom-estimator/pkg/analyzer"
	"github.com/menta2k/zoom-estimator/pkg/types"
	"github.com/menta2k/zoom-estimator/pkg/zoomstore"
)

// Exit codes
const (
	exitOK         = 0
	exitFailure    = 1
	exitMissing    = 2
	exitEmpty      = 3
	exitArithmetic = 4
	exitInvalid    = 5
)

var (
	Version   = zoomestimator.Version
	GitCommit = "unknown"
)

type options struct {
	blue, gray, obj string
	serial          string
	settings        string
	outDir          string
	debug           bool
	serve           bool
	writeConfig     bool
}

func main() {
	os.Exit(run())
}

func run() int {
	var opts options
	flag.StringVar(&opts.blue, "blue", "", "blue disc (calibration) photo")
	flag.StringVar(&opts.gray, "gray", "", "gray disc (background) photo")
	flag.StringVar(&opts.obj, "obj", "", "object photo")
	flag.StringVar(&opts.serial, "sn", "", "camera serial number")
	flag.StringVar(&opts.settings, "settings", config.GetConfigPath(), "settings file (json or yaml)")
	flag.StringVar(&opts.outDir, "out", "", "output directory for the bounding image and zoom file (overrides settings)")
	flag.BoolVar(&opts.debug, "debug", false, "development logging")
	flag.BoolVar(&opts.serve, "serve", false, "run the HTTP API instead of a single measurement")
	flag.BoolVar(&opts.writeConfig, "write-config", false, "write the default settings file and exit")
	flag.Parse()

	if opts.writeConfig {
		return writeDefaultConfig(opts.settings)
	}

	cfg, err := config.LoadFromFile(opts.settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "settings: %v\n", err)
		return exitCode(err)
	}
	if opts.outDir != "" {
		cfg.Output.Dir = opts.outDir
	}
	if opts.debug {
		cfg.Logging.Mode = "development"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "settings: %v\n", err)
		return exitCode(err)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return exitFailure
	}
	defer logger.Sync(log)
	defer logger.LogPanic(log)

	log.Info("starting zoom estimator",
		zap.String("version", Version),
		zap.String("git_commit", GitCommit),
		zap.String("settings", opts.settings))

	if err := utils.EnsureDir(cfg.Output.Dir); err != nil {
		log.Error("failed to create output directory", zap.String("dir", cfg.Output.Dir), zap.Error(err))
		return exitFailure
	}

	stores, err := openStores(cfg, log)
	if err != nil {
		log.Error("failed to open stores", zap.Error(err))
		return exitCode(err)
	}
	defer stores.Close()

	estOpts := cfg.EstimatorOptions(log)
	// concurrent requests must not share a bounding image
	estOpts.Output.UniqueNames = opts.serve
	est := zoomestimator.NewWithOptions(estOpts)
	est.SetStore(stores.all)

	if opts.serve {
		return serve(cfg, est, stores, log)
	}
	return measure(est, opts, log)
}

func measure(est *zoomestimator.Estimator, opts options, log *zap.Logger) int {
	if opts.serial == "" {
		log.Error("camera serial number is required, pass -sn")
		return exitMissing
	}

	paths := analyzer.PhotoPaths{Calibration: opts.blue, Background: opts.gray, Object: opts.obj}
	for name, path := range map[string]string{"blue": opts.blue, "gray": opts.gray, "obj": opts.obj} {
		log.Debug("photo", zap.String("role", name), zap.String("path", path),
			zap.String("size", utils.FormatFileSize(utils.FileSize(path))))
	}

	res, err := est.MeasureFiles(context.Background(), paths, opts.serial)
	if err != nil {
		stage, _ := types.StageOf(err)
		log.Error("measurement failed",
			zap.String("stage", string(stage)),
			zap.Stringer("kind", types.KindOf(err)),
			zap.Error(err))
		return exitCode(err)
	}

	m := res.Measurement
	fmt.Printf("Object size: %.1f x %.1f mm\n", m.ObjectSize.Width, m.ObjectSize.Height)
	fmt.Printf("Focal length: %.0f mm (estimated %.2f mm)\n", m.FocalMM, m.EstimatedFocal)
	fmt.Println(zoomstore.Line(m.SerialNumber, m.ZoomIndex))
	return exitOK
}

func serve(cfg *config.Config, est *zoomestimator.Estimator, stores *storeSet, log *zap.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg.Server, est, stores.all, stores.history, log)
	if err := srv.Run(ctx); err != nil {
		log.Error("server stopped", zap.Error(err))
		return exitFailure
	}
	return exitOK
}

func writeDefaultConfig(path string) int {
	if utils.FileExists(path) {
		fmt.Fprintf(os.Stderr, "%s already exists, not overwriting\n", path)
		return exitInvalid
	}
	if err := config.Default().SaveToFile(path); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write %s: %v\n", path, err)
		return exitFailure
	}
	abs, _ := filepath.Abs(path)
	fmt.Printf("default settings written to %s\n", abs)
	return exitOK
}

// storeSet holds the configured zoom stores
type storeSet struct {
	all     zoomstore.Multi
	redis   *zoomstore.RedisStore
	history *history.DB
}

func openStores(cfg *config.Config, log *zap.Logger) (*storeSet, error) {
	set := &storeSet{all: zoomstore.Multi{zoomstore.NewFileStore(cfg.ZoomFilePath())}}

	if cfg.Redis.Enabled {
		rs := zoomstore.NewRedisStore(zoomstore.RedisOptions{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			TTL:       cfg.Redis.TTL,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, log.Named("redis"))
		if err := rs.Ping(context.Background()); err != nil {
			log.Warn("redis connection failed, zoom is only written to file", zap.Error(err))
			rs.Close()
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
			set.redis = rs
			set.all = append(set.all, rs)
		}
	}

	if cfg.History.Enabled {
		db, err := history.Open(cfg.History.Path)
		if err != nil {
			set.Close()
			return nil, err
		}
		set.history = db
		set.all = append(set.all, db)
	}

	return set, nil
}

func (s *storeSet) Close() {
	if s.redis != nil {
		s.redis.Close()
	}
	if s.history != nil {
		s.history.Close()
	}
}

// exitCode maps an error onto the process exit status
func exitCode(err error) int {
	switch types.KindOf(err) {
	case types.KindMissingInputFile:
		return exitMissing
	case types.KindEmptyDetectionResult:
		return exitEmpty
	case types.KindArithmeticFailure:
		return exitArithmetic
	case types.KindInvalidInput:
		return exitInvalid
	default:
		return exitFailure
	}
}
