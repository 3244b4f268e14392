// Command manifestctl is a thin demonstration front-end over the manifest
// core: a `build` subcommand that runs the composer (§4.6) and a
// `preflight` subcommand that runs the validator (§4.7). It adds no design
// content of its own — every invariant lives in pkg/build and
// pkg/preflight — and mirrors the teacher's cmd/kmsServer flag-wiring
// style: one urfave/cli App, StringFlag/Uint64Flag with Aliases/Required.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/payrox/manifest-core/pkg/build"
	"github.com/payrox/manifest-core/pkg/manifest"
	"github.com/payrox/manifest-core/pkg/manifestlog"
	"github.com/payrox/manifest-core/pkg/preflight"
	"github.com/payrox/manifest-core/pkg/store"
)

func main() {
	app := &cli.App{
		Name:        "manifestctl",
		Usage:       "build and preflight-validate facet deployment manifests",
		Description: "A command-line front-end over the manifest build pipeline and preflight validator.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable debug-level logging",
			},
		},
		Commands: []*cli.Command{
			buildCommand(),
			preflightCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("manifestctl: %v", err)
	}
}

func buildCommand() *cli.Command {
	return &cli.Command{
		Name:  "build",
		Usage: "compose a manifest from a release config",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "release-config",
				Aliases:  []string{"c"},
				Usage:    "path to the release config JSON",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "network-name",
				Aliases:  []string{"n"},
				Usage:    "human name of the target network",
				Required: true,
			},
			&cli.Uint64Flag{
				Name:     "chain-id",
				Usage:    "chain ID of the target network",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "factory",
				Usage:    "CREATE2 factory address",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "dispatcher",
				Usage: "dispatcher address, if already deployed",
			},
			&cli.StringFlag{
				Name:     "out-dir",
				Aliases:  []string{"o"},
				Usage:    "directory the manifest, merkle sidecar, and chunk map are written to",
				Required: true,
			},
		},
		Action: runBuild,
	}
}

func preflightCommand() *cli.Command {
	return &cli.Command{
		Name:  "preflight",
		Usage: "re-validate a persisted manifest offline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "manifest",
				Aliases:  []string{"m"},
				Usage:    "path to the persisted manifest JSON",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "report-out",
				Usage: "path the preflight report is written to",
			},
		},
		Action: runPreflight,
	}
}

func runBuild(c *cli.Context) error {
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := loadReleaseConfig(c.String("release-config"))
	if err != nil {
		return fmt.Errorf("load release config: %w", err)
	}

	outDir := c.String("out-dir")
	st, err := store.New(outDir)
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}

	var dispatcher common.Address
	if d := c.String("dispatcher"); d != "" {
		dispatcher = common.HexToAddress(d)
	}

	opts := build.Options{
		Network:    manifest.NetworkRef{Name: c.String("network-name"), ChainID: c.Uint64("chain-id")},
		Factory:    common.HexToAddress(c.String("factory")),
		Dispatcher: dispatcher,
		Resolver:   newFilesystemArtifactResolver(outDir),
		Store:      st,
		Paths: build.Paths{
			Manifest: filepath.Join(outDir, "manifest.json"),
			Merkle:   filepath.Join(outDir, "merkle.json"),
			ChunkMap: filepath.Join(outDir, "chunks.json"),
		},
		Logger: logger,
	}

	result, err := build.Compose(cfg, opts)
	if err != nil {
		return fmt.Errorf("compose manifest: %w", err)
	}

	logger.Sugar().Infow("build complete",
		"facets", len(result.Manifest.Facets),
		"routes", len(result.Manifest.Routes),
		"merkleRoot", result.Manifest.MerkleRoot.String(),
	)
	return nil
}

func runPreflight(c *cli.Context) error {
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	manifestPath := c.String("manifest")
	dir := filepath.Dir(manifestPath)
	st, err := store.New(dir)
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}

	report, err := preflight.Run(context.Background(), manifestPath, nil, preflight.Options{
		Resolver:   newFilesystemArtifactResolver(dir),
		Store:      st,
		ReportPath: c.String("report-out"),
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("run preflight: %w", err)
	}

	logger.Sugar().Infow("preflight complete", "passed", report.Passed, "networks", len(report.Networks))
	if !report.Passed {
		return cli.Exit("preflight failed", 1)
	}
	return nil
}

func newLogger(c *cli.Context) (*zap.Logger, error) {
	if c.Bool("verbose") {
		return manifestlog.NewDevelopment()
	}
	return manifestlog.NewProduction()
}

func loadReleaseConfig(path string) (manifest.ReleaseConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return manifest.ReleaseConfig{}, err
	}
	var cfg manifest.ReleaseConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return manifest.ReleaseConfig{}, err
	}
	return cfg, nil
}
