// gpumon serves per-GPU telemetry collected from nvidia-smi or amd-smi.
//
// Usage:
//
//	gpumon [--config path] [--host h] [--port p] [--log-level l] [--once] [--version]
//
// With --once it prints a single telemetry response as JSON and exits.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/shepherd-project/gpumon/internal/api"
	"github.com/shepherd-project/gpumon/internal/config"
	"github.com/shepherd-project/gpumon/internal/gpu"
	"github.com/shepherd-project/gpumon/internal/logger"
	"github.com/shepherd-project/gpumon/internal/netutil"
	"github.com/shepherd-project/gpumon/internal/server"
	"github.com/shepherd-project/gpumon/internal/shutdown"
	"github.com/shepherd-project/gpumon/internal/version"
)

type options struct {
	configPath  string
	host        string
	port        int
	logLevel    string
	once        bool
	showVersion bool
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	flagSet := pflag.NewFlagSet(version.Name, pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&opts.configPath, "config", "", "path to the YAML config file (default: $GPUMON_CONFIG_DIR/gpumon.config.yaml)")
	flagSet.StringVar(&opts.host, "host", "", "listen host (overrides server.host)")
	flagSet.IntVar(&opts.port, "port", 0, "listen port (overrides server.port)")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides log.level)")
	flagSet.BoolVar(&opts.once, "once", false, "print one telemetry response as JSON and exit")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if flagSet.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", flagSet.Args())
	}
	return opts, nil
}

// loadConfig reads the config file with flag values layered on top.
func loadConfig(opts *options) (*config.Config, string, error) {
	mgr := config.NewManagerWithPath(config.ResolvePath(opts.configPath))
	cfg, err := mgr.Load(
		config.WithHost(opts.host),
		config.WithPort(opts.port),
		config.WithLogLevel(opts.logLevel),
	)
	if err != nil {
		return nil, mgr.GetConfigPath(), err
	}
	return cfg, mgr.GetConfigPath(), nil
}

func newService(cfg *config.Config, log *logger.Logger) (*gpu.Service, error) {
	vendor, err := gpu.ParseVendor(cfg.GPU.PreferredVendor)
	if err != nil {
		return nil, err
	}
	var gpuLog gpu.Logger
	if log != nil {
		gpuLog = log
	}
	return gpu.NewService(&gpu.Config{
		PreferredVendor: vendor,
		QueryTimeout:    cfg.GPU.QueryTimeoutDuration(),
		NvidiaSMIPath:   cfg.GPU.NvidiaSMIPath,
		AMDSMIPath:      cfg.GPU.AMDSMIPath,
		DeviceOrder:     cfg.GPU.DeviceOrder,
		Logger:          gpuLog,
	}), nil
}

func run(args []string, stdout io.Writer) error {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if opts.showVersion {
		fmt.Fprintln(stdout, version.GetVersionInfo().FullString())
		return nil
	}

	cfg, path, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	if err := logger.InitLogger(&cfg.Log); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log := logger.GetLogger()
	defer log.Close()

	svc, err := newService(cfg, log)
	if err != nil {
		return err
	}

	if opts.once {
		return runOnce(context.Background(), svc, stdout)
	}
	return serve(cfg, path, svc, log)
}

// runOnce prints one telemetry response. A query failure is printed in the
// 500 response shape and also returned.
func runOnce(ctx context.Context, source api.SnapshotSource, stdout io.Writer) error {
	snap, err := source.Snapshot(ctx)

	var resp api.TelemetryResponse
	switch {
	case errors.Is(err, gpu.ErrNoVendor):
		resp = api.NewTelemetryResponse(false, nil, err.Error())
		err = nil
	case err != nil:
		resp = api.NewTelemetryResponse(false, nil, api.FetchErrorPrefix+err.Error())
	default:
		resp = api.NewTelemetryResponse(snap.Found(), snap.GPUs, "")
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(resp); encErr != nil {
		return encErr
	}
	return err
}

func serve(cfg *config.Config, configPath string, svc *gpu.Service, log *logger.Logger) error {
	log.Infof("%s %s starting", version.Name, version.GetVersionInfo())
	log.Infof("Config file: %s", configPath)
	log.Infof("GPU tools: %+v", svc.Detect(context.Background()))

	srv, err := server.NewServer(&server.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		CORSEnabled:    cfg.Security.CORSEnabled,
		AllowedOrigins: cfg.Security.AllowedOrigins,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
		ScrapeTimeout:  cfg.GPU.QueryTimeoutDuration(),
	}, svc, log)
	if err != nil {
		return err
	}

	shutdownMgr := shutdown.NewManager(10*time.Second, log)
	shutdownMgr.Register("http-server", srv.Shutdown, shutdown.PriorityCritical)
	shutdownMgr.Register("logger", func(ctx context.Context) error {
		_ = log.Sync()
		return nil
	}, shutdown.PriorityLow)

	if err := srv.Start(); err != nil {
		return err
	}
	shutdownMgr.Start()
	log.Infof("Telemetry available at %s/api/gpu", netutil.BaseURL(cfg.Server.Host, cfg.Server.Port, nil))

	shutdownMgr.Wait()
	log.Info("Server stopped")
	return nil
}
