package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/danielhkuo/quickly-survey/auth"
	"github.com/danielhkuo/quickly-survey/catalog"
	"github.com/danielhkuo/quickly-survey/cliparse"
	"github.com/danielhkuo/quickly-survey/db"
	"github.com/danielhkuo/quickly-survey/middleware"
	"github.com/danielhkuo/quickly-survey/registry"
	"github.com/danielhkuo/quickly-survey/router"
)

func main() {
	root := &cli.Command{
		Name:            "quickly-survey",
		Usage:           "Survey schema compiler and submission API",
		SkipFlagParsing: true,
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			buildFormsCommand(),
			seedPermissionsCommand(),
			addProjectCommand(),
		},
		// Running without a command starts the server
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServer(ctx, cmd.Args().Slice())
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// Config flags (-p, -d, -t, ...) are handled by cliparse, so commands pass their args through
func serveCommand() *cli.Command {
	return &cli.Command{
		Name:            "serve",
		Usage:           "Run the HTTP server",
		SkipFlagParsing: true,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServer(ctx, cmd.Args().Slice())
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:            "migrate",
		Usage:           "Apply metadata migrations",
		SkipFlagParsing: true,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			conn, _, err := connect(ctx, cmd.Args().Slice())
			if err != nil {
				return err
			}
			defer conn.Close()

			slog.Info("Database schema ready")
			return nil
		},
	}
}

func buildFormsCommand() *cli.Command {
	return &cli.Command{
		Name:            "build-forms",
		Usage:           "Rebuild the question catalog of every active subunit",
		SkipFlagParsing: true,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			conn, _, err := connect(ctx, cmd.Args().Slice())
			if err != nil {
				return err
			}
			defer conn.Close()

			start := time.Now()
			built, err := catalog.NewBuilder(conn).BuildAll(ctx)
			fmt.Printf("Rebuilt %s catalogs in %s\n",
				humanize.Comma(int64(built)), humanize.RelTime(start, time.Now(), "", ""))
			return err
		},
	}
}

func seedPermissionsCommand() *cli.Command {
	return &cli.Command{
		Name:            "seed-permissions",
		Usage:           "Load the role and permission catalog",
		SkipFlagParsing: true,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			conn, _, err := connect(ctx, cmd.Args().Slice())
			if err != nil {
				return err
			}
			defer conn.Close()

			perms, err := auth.LoadPermissionConfig()
			if err != nil {
				return err
			}
			if err := auth.SeedPermissions(ctx, conn, perms); err != nil {
				return err
			}
			fmt.Printf("Seeded %d roles\n", len(perms.Roles))
			return nil
		},
	}
}

func addProjectCommand() *cli.Command {
	return &cli.Command{
		Name:      "add-project",
		Usage:     "Create a project",
		ArgsUsage: "[-- config flags]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Required: true, Usage: "project name"},
			&cli.StringFlag{Name: "acronym", Required: true, Usage: "project acronym, used as table name prefix"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			conn, _, err := connect(ctx, cmd.Args().Slice())
			if err != nil {
				return err
			}
			defer conn.Close()

			project, err := registry.NewStore(conn).CreateProject(ctx, cmd.String("name"), cmd.String("acronym"))
			if err != nil {
				return err
			}
			fmt.Printf("Created project %s (%s): %s\n", project.Name, project.Acronym, project.ID)
			return nil
		},
	}
}

// connect parses configuration, opens the database and applies migrations
func connect(ctx context.Context, args []string) (*db.Conn, cliparse.Config, error) {
	cfg, err := cliparse.ParseFlags(args)
	if err != nil {
		return nil, cfg, fmt.Errorf("error parsing flags: %w", err)
	}

	conn, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		return nil, cfg, err
	}

	if err := db.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, cfg, fmt.Errorf("schema migration failed: %w", err)
	}
	return conn, cfg, nil
}

func runServer(ctx context.Context, args []string) error {
	conn, cfg, err := connect(ctx, args)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := cfg.RequireSecrets(); err != nil {
		return err
	}
	slog.Info("Database schema ready", "dialect", conn.Dialect)

	// Create router
	mux := router.NewRouter(conn, cfg)

	// Create server
	server := http.Server{
		Handler:           middleware.CORS(mux),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal
		<-ctrlc
		server.Close()
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
		return err
	}
	slog.Info("Server closed")
	return nil
}
