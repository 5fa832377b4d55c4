package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/podlink/podfs/internal/logging"
	"github.com/podlink/podfs/internal/observability"
	"github.com/podlink/podfs/pkg/podfs"
)

type options struct {
	configPath  string
	addr        string
	dialTimeout time.Duration
	opTimeout   time.Duration
	metricsAddr string
	symbolic    bool
}

func main() {
	opts := parseFlags()
	logging.ConfigureRuntime()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fatalf("%v", err)
	}

	if opts.metricsAddr != "" {
		serveMetrics(opts.metricsAddr)
	}

	conn, err := net.DialTimeout("tcp", cfg.Address, cfg.DialTimeout)
	if err != nil {
		fatalf("dial %s: %v", cfg.Address, err)
	}
	defer conn.Close()

	clientCfg := podfs.DefaultConfig()
	if cfg.MaxReadSize > 0 {
		clientCfg.MaxReadSize = cfg.MaxReadSize
	}
	if cfg.MaxWriteSize > 0 {
		clientCfg.MaxWriteSize = cfg.MaxWriteSize
	}
	clientCfg.OpTimeout = cfg.OpTimeout
	logger := log.Logger.With().Str("device", cfg.Address).Logger()
	clientCfg.Logger = &logger

	c := podfs.NewClient(conn, clientCfg)
	defer c.Close()

	if err := dispatch(context.Background(), c, opts, flag.Arg(0), flag.Args()[1:]); err != nil {
		fatalf("%v", err)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "TOML config file path")
	flag.StringVar(&opts.addr, "addr", "", "device file service address (host:port)")
	flag.DurationVar(&opts.dialTimeout, "dial-timeout", 0, "TCP dial timeout")
	flag.DurationVar(&opts.opTimeout, "op-timeout", 0, "per-response timeout; 0 waits forever")
	flag.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flag.BoolVar(&opts.symbolic, "s", false, "ln: create a symbolic link instead of a hard link")
	flag.Usage = usage
	flag.Parse()
	return opts
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: podctl [flags] <command> [args]

Commands:
  ls [path]            list a directory
  tree [path]          list a subtree recursively
  stat <path>          show entry details
  cat <path>           print file content
  get <remote> [local] copy a device file to the local disk
  put <local> [remote] copy a local file to the device
  mkdir <path>         create a directory
  rm <path>            remove a file or empty directory
  mv <old> <new>       rename or move an entry
  ln <target> <link>   create a link (pass -s for a symbolic one)
  df                   show device model and capacity
  hash <path>          print the device-computed file digest

Flags:
`)
	flag.PrintDefaults()
}

func serveMetrics(addr string) {
	observability.RegisterMetrics()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error().Err(err).Str("addr", addr).Msg("metrics endpoint failed")
		}
	}()
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "podctl: "+format+"\n", args...)
	os.Exit(1)
}
