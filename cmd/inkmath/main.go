package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/inkmath/internal"
	"github.com/starford/inkmath/internal/block"
	"github.com/starford/inkmath/internal/jiix"
	"github.com/starford/inkmath/internal/models"
	pkgconfig "github.com/starford/inkmath/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	loaded, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !loaded {
		slog.Info("config file not found, using defaults", slog.String("path", configPath))
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

// parse prints the tree of a JIIX file as indented JSON.
func parse(_ context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return errors.New("usage: inkmath parse <file>")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	root, err := block.ParseDocument(data)
	if err != nil {
		var pe *jiix.ParseError
		if errors.As(err, &pe) {
			fmt.Fprintln(os.Stderr, pe.Fragment())
		}
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if err := block.Verify(root); err != nil {
		return fmt.Errorf("verify %s: %w", path, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(models.NewNode(root))
}

func main() {
	cmd := &cli.Command{
		Name:   "inkmath",
		Usage:  "Handwritten math recognition server keeping an editable expression tree",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and the drop directory watcher",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the expression tree tools over MCP stdio",
				Action: serveMCP,
			},
			{
				Name:      "parse",
				Usage:     "Parse a JIIX file and print its expression tree",
				ArgsUsage: "<file>",
				Action:    parse,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
