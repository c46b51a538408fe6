package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/ruya/internal/flagx"
)

var knownFlags = []string{
	"-d", "-l", "-a", "-h", "-r", "-m", "-p", "-x", "-s", "-no-remote-video",
}

// parseFlags overlays cfg with command-line flags.
//
//	-d string   data directory
//	-l string   log level (debug, info, warn, error)
//	-a string   gRPC control API address
//	-h string   HTTP address for /healthz and /metrics
//	-r string   address of a running daemon; the REPL connects to it instead of running in-process
//	-m string   interpretation method
//	-p int      video poll interval (in seconds)
//	-x int      maximum video poll attempts
//	-s string   reconcile schedule (cron expression)
//	-no-remote-video   always render locally
//
// Only the flags above are parsed; everything else on the command line is
// left to other loaders.
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("ruya", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.GRPCAddr, "a", cfg.GRPCAddr, "gRPC control API address")
	fs.StringVar(&cfg.HTTPAddr, "h", cfg.HTTPAddr, "HTTP address")
	fs.StringVar(&cfg.RemoteAddr, "r", cfg.RemoteAddr, "daemon address")
	fs.StringVar(&cfg.InterpretMethod, "m", cfg.InterpretMethod, "interpretation method")
	pollInterval := fs.Int("p", int(cfg.PollInterval.Seconds()), "video poll interval (in seconds)")
	fs.IntVar(&cfg.MaxAttempts, "x", cfg.MaxAttempts, "maximum video poll attempts")
	fs.StringVar(&cfg.ReconcileSchedule, "s", cfg.ReconcileSchedule, "reconcile schedule")
	fs.BoolVar(&cfg.DisableRemoteVideo, "no-remote-video", cfg.DisableRemoteVideo, "always render locally")

	if err := fs.Parse(flagx.FilterArgs(args, knownFlags)); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "p" {
			cfg.PollInterval = time.Duration(*pollInterval) * time.Second
		}
	})
	return nil
}
