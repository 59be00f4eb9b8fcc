package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/brettbedarf/scopedfs/config"
	"github.com/brettbedarf/scopedfs/filter"
	"github.com/brettbedarf/scopedfs/internal/util"
	"github.com/brettbedarf/scopedfs/server"
	"golang.org/x/sync/errgroup"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] ROOT MOUNTPOINT\n\n", os.Args[0])
	fmt.Fprintln(flag.CommandLine.Output(), "Mounts ROOT read-only at MOUNTPOINT, hiding everything outside it.")
	flag.PrintDefaults()
}

func main() {
	var (
		configPath string
		rulesPath  string
		verbose    int
		watch      bool
		umount     bool
		rules      filter.Rules
	)
	override := &config.ConfigOverride{}

	flag.Usage = usage
	flag.StringVar(&configPath, "config", "", "Path to a YAML or JSON config file")
	flag.StringVar(&configPath, "c", "", "--config (shorthand)")
	flag.StringVar(&rulesPath, "rules", "", "Path to a YAML or JSON filter rules file, merged with -allow/-deny")
	flag.IntVar(&verbose, "verbose", config.InfoVerbose, "Log verbosity level between 1 (error) and 5 (trace)")
	flag.IntVar(&verbose, "v", config.InfoVerbose, "--verbose (shorthand)")
	flag.Func("allow", "Glob of paths to show (repeatable)", func(s string) error {
		rules.Allow = append(rules.Allow, s)
		return nil
	})
	flag.Func("deny", "Glob of paths to hide (repeatable)", func(s string) error {
		rules.Deny = append(rules.Deny, s)
		return nil
	})
	flag.BoolVar(&rules.HideDotfiles, "hide-dotfiles", false, "Hide every path with a segment starting with '.'")
	flag.BoolVar(&watch, "watch", false, "Log changes below ROOT while mounted")
	flag.BoolVar(&umount, "umount", false,
		"Unmount the fs first if needed before mounting again. Useful for debuggers that don't exit properly.")
	flag.BoolVar(&umount, "u", false, "--umount (shorthand)")
	flag.Parse()

	// only explicitly set flags override the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "verbose", "v":
			override.LogLvl = &verbose
		}
	})

	util.InitializeLogger(util.LevelFromVerbosity(verbose))
	logger := util.GetLogger("main")

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	root, mnt := flag.Arg(0), flag.Arg(1)
	override.Root = &root

	cfg := config.NewDefaultConfig()
	if configPath != "" {
		fileOverride, err := config.LoadConfigOverrideFile(configPath)
		if err != nil {
			logger.Fatal().Err(err).Str("config", configPath).Msg("Failed to load config")
		}
		cfg.Merge(fileOverride)
	}
	cfg.Merge(override)
	if rulesPath != "" {
		fileRules, err := filter.LoadRulesFile(rulesPath)
		if err != nil {
			logger.Fatal().Err(err).Str("rules", rulesPath).Msg("Failed to load filter rules")
		}
		cfg.Filter.Merge(fileRules)
	}
	cfg.Filter.Merge(rules)

	// reinitialize in case the config file changed the level
	util.InitializeLogger(cfg.LogLvl)
	logger = util.GetLogger("main")
	logger.Info().Str("root", cfg.Root).Str("mnt", mnt).Str("backend", cfg.Backend.Type).Msg("ScopedFS initializing")

	if umount { // send cli command
		cmd := exec.Command("fusermount", "-u", mnt)
		// we ignore error here if not already mounted
		cmd.Run() // nolint:errcheck
	}

	srv, err := server.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}
	if err := srv.Serve(mnt); err != nil {
		logger.Fatal().Err(err).Msg("Failed to mount filesystem")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if watch {
		w, err := srv.Watch(ctx, "/", func(p string) {
			logger.Info().Str("path", p).Msg("Changed")
		})
		if err != nil {
			logger.Error().Err(err).Msg("Failed to watch root")
		} else {
			logger.Info().Str("id", w.ID()).Str("dir", w.Dir()).Msg("Watching for changes")
		}
	}

	// an external fusermount -u ends Wait without a signal
	g.Go(func() error {
		srv.Wait()
		stop()
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("Unmounting filesystem")
		return srv.Unmount()
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Failed to unmount filesystem")
		os.Exit(1)
	}
	logger.Info().Msg("Filesystem unmounted successfully")
}
