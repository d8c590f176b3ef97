// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// projfs mounts a read-only projection of a source directory. Files the
// projection policy selects (audio and video by default) appear under a
// new extension and read as the output of a conversion command, run
// once per file on first access and cached; every other file reads
// through unchanged.
//
//	projfs [flags] <mountpoint> <source> [cache_dir]
//
// Without cache_dir, outputs are kept under the user cache directory
// in a subdirectory derived from the source path. The policy is read
// from --policy, or from <user config dir>/projfs/policy.yaml; a
// missing or invalid policy file falls back to the built-in default.
//
// The mount stays up until SIGINT or SIGTERM, or until it is unmounted
// externally (fusermount -u).
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/projfs/lib/cachedir"
	"github.com/bureau-foundation/projfs/lib/policy"
	"github.com/bureau-foundation/projfs/lib/process"
	"github.com/bureau-foundation/projfs/lib/projection"
	projfuse "github.com/bureau-foundation/projfs/lib/projection/fuse"
	"github.com/bureau-foundation/projfs/lib/version"
)

// debugEnvironment forces debug logging when set to a non-empty value.
const debugEnvironment = "PROJFS_DEBUG"

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

// config is the parsed command line.
type config struct {
	mountpoint string
	source     string
	cacheDir   string

	policyPath  string
	logLevel    slog.Level
	parallelism int
	allowOther  bool
	autoUnmount bool
	fuseDebug   bool
}

// usageError is a command-line mistake. The usage text has already been
// printed when it is returned.
type usageError struct {
	message string
}

func (e *usageError) Error() string { return e.message }

func (e *usageError) ExitCode() int { return 2 }

// errExit reports that parseArgs handled the invocation itself (--help,
// --version) and the process should exit successfully.
var errExit = errors.New("exit")

func parseArgs(args []string, stdout, stderr io.Writer) (*config, error) {
	var (
		cfg           config
		logLevel      string
		noAutoUnmount bool
		showVersion   bool
		showHelp      bool
	)

	flagSet := pflag.NewFlagSet("projfs", pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVarP(&cfg.policyPath, "policy", "c", "", "projection policy file, YAML or JSONC (default <user config dir>/projfs/policy.yaml)")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error (PROJFS_DEBUG=1 forces debug)")
	flagSet.IntVarP(&cfg.parallelism, "parallelism", "j", 1, "projections materialized concurrently while listing a directory")
	flagSet.BoolVar(&cfg.allowOther, "allow-other", false, "let other users access the mount (needs user_allow_other in /etc/fuse.conf)")
	flagSet.BoolVar(&noAutoUnmount, "no-auto-unmount", false, "leave the mount in place if projfs dies")
	flagSet.BoolVar(&cfg.fuseDebug, "fuse-debug", false, "log every FUSE request to stderr")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.BoolVarP(&showHelp, "help", "h", false, "show help")

	usage := func(format string, args ...any) error {
		message := fmt.Sprintf(format, args...)
		fmt.Fprintf(stderr, "projfs: %s\n\n", message)
		printUsage(stderr, flagSet)
		return &usageError{message: message}
	}

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printUsage(stdout, flagSet)
			return nil, errExit
		}
		return nil, usage("%v", err)
	}
	if showHelp {
		printUsage(stdout, flagSet)
		return nil, errExit
	}
	if showVersion {
		fmt.Fprintf(stdout, "projfs %s\n", version.Info())
		return nil, errExit
	}

	positional := flagSet.Args()
	if len(positional) < 2 || len(positional) > 3 {
		return nil, usage("expected 2 or 3 arguments, got %d", len(positional))
	}
	cfg.mountpoint = positional[0]
	cfg.source = positional[1]
	if len(positional) == 3 {
		cfg.cacheDir = positional[2]
	}

	if err := cfg.logLevel.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, usage("invalid --log-level %q", logLevel)
	}
	if cfg.parallelism < 1 {
		return nil, usage("--parallelism must be at least 1, got %d", cfg.parallelism)
	}
	cfg.autoUnmount = !noAutoUnmount

	return &cfg, nil
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `projfs mounts a read-only projection of a source directory.

Files the policy selects are listed under their projected name and read
as the output of the policy's command, run once per file on first
access. All other files read through unchanged.

Usage:
  projfs [flags] <mountpoint> <source> [cache_dir]

Flags:
%s`, flagSet.FlagUsages())
}

// newLogger follows the CLI convention: human-readable text on a
// terminal, JSON when stderr is piped or redirected.
func newLogger(stderr *os.File, level slog.Level) *slog.Logger {
	if os.Getenv(debugEnvironment) != "" {
		level = slog.LevelDebug
	}
	options := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if term.IsTerminal(int(stderr.Fd())) {
		handler = slog.NewTextHandler(stderr, options)
	} else {
		handler = slog.NewJSONHandler(stderr, options)
	}
	return slog.New(handler)
}

// loadPolicy reads the policy file named on the command line or the one
// at the default location. It never fails.
func loadPolicy(policyPath string, logger *slog.Logger) *policy.Rules {
	if policyPath == "" {
		defaultPath, err := policy.DefaultPath()
		if err != nil {
			logger.Warn("using default projection policy", "error", err)
			return policy.Default()
		}
		policyPath = defaultPath
	}
	return policy.LoadOrDefault(policyPath, logger)
}

func run(args []string) error {
	cfg, err := parseArgs(args, os.Stdout, os.Stderr)
	if errors.Is(err, errExit) {
		return nil
	}
	if err != nil {
		return err
	}

	logger := newLogger(os.Stderr, cfg.logLevel)
	logger.Debug("projfs starting", "version", version.Info())

	rules := loadPolicy(cfg.policyPath, logger)

	cacheRoot := cfg.cacheDir
	if cacheRoot == "" {
		cacheRoot, err = cachedir.Derive(cfg.source)
		if err != nil {
			return fmt.Errorf("choosing cache directory: %w", err)
		}
	}

	filesystem, err := projection.New(projection.Options{
		SourceRoot:  cfg.source,
		CacheRoot:   cacheRoot,
		Policy:      rules,
		Parallelism: cfg.parallelism,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	server, err := projfuse.Mount(projfuse.Options{
		Mountpoint:  cfg.mountpoint,
		Filesystem:  filesystem,
		AllowOther:  cfg.allowOther,
		AutoUnmount: cfg.autoUnmount,
		Debug:       cfg.fuseDebug,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverDone := make(chan struct{})
	go func() {
		server.Wait()
		close(serverDone)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down", "mountpoint", cfg.mountpoint)
		if err := server.Unmount(); err != nil {
			logger.Error("failed to unmount FUSE filesystem", "error", err)
			return fmt.Errorf("unmounting %s: %w", cfg.mountpoint, err)
		}
		<-serverDone
		logger.Info("FUSE filesystem unmounted", "mountpoint", cfg.mountpoint)
	case <-serverDone:
		logger.Info("FUSE filesystem unmounted externally", "mountpoint", cfg.mountpoint)
	}

	filesystem.Destroy()
	return nil
}
