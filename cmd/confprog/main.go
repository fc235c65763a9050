package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"confprog/internal/auth"
	appLog "confprog/internal/log"
	"confprog/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values shared by the subcommands.
type flagConfig struct {
	configPath string
	listen     string
}

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe(args)
	case "add-user":
		err = runAddUser(args)
	case "export":
		err = runExport(args)
	case "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}

	appLog.Sync()
	if err != nil {
		appLog.Error("confprog failed", err, "command", cmd)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: confprog [command] [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  serve     run the HTTP API (default)\n")
	fmt.Fprintf(os.Stderr, "  add-user  register an account, password read from the terminal\n")
	fmt.Fprintf(os.Stderr, "  export    write one session's .ics file\n")
}

func registerCommonFlags(fs *flag.FlagSet, cfg *flagConfig) {
	fs.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
}

func runServe(args []string) error {
	var flags flagConfig
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	registerCommonFlags(fs, &flags)
	fs.StringVar(&flags.listen, "listen", "", "HTTP listen address (overrides config if set)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, flags.configPath)
	if err != nil {
		return err
	}
	defer a.close()

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		a.cfg.Listen = flags.listen
	}

	appLog.Info("confprog starting", "version", version)
	appLog.Info("effective config",
		"listen", a.cfg.Listen,
		"timezone", a.cfg.Timezone,
		"catalog_source", a.cfg.CatalogSource,
		"store_backend", a.cfg.Store.Backend,
		"session_ttl", a.cfg.SessionTTL().String(),
		"janitor_cron", a.cfg.Auth.JanitorCron,
	)

	srv := web.NewServer(a.cfg, web.Deps{
		Catalog:   a.catalog,
		Provider:  a.provider,
		Favorites: a.favorites,
		Encoder:   a.encoder,
		Location:  a.loc,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	g.Go(func() error {
		janitor, err := auth.StartJanitor(a.cfg.Auth.JanitorCron, srv.Clients())
		if err != nil {
			return err
		}
		<-ctx.Done()
		<-janitor.Stop().Done()
		return nil
	})

	err = g.Wait()
	appLog.Info("confprog exiting")
	return err
}
