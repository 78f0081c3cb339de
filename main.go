package main

import (
	"fmt"
	"os"
	"os/signal"

	"tokamak-group-rollup/common"
	"tokamak-group-rollup/config"
	"tokamak-group-rollup/database"
	"tokamak-group-rollup/log"
	"tokamak-group-rollup/node"

	"github.com/urfave/cli"
)

const (
	flagCfg     = "cfg"
	flagMigrate = "nMigrations"
)

func parseCli(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String(flagCfg))
	if err != nil {
		if err := cli.ShowAppHelp(c); err != nil {
			panic(err)
		}
		return nil, common.Wrap(err)
	}
	return cfg, nil
}

func waitSigInt() {
	stopCh := make(chan interface{})

	// catch ^C to send the stop signal
	ossig := make(chan os.Signal, 1)
	signal.Notify(ossig, os.Interrupt)
	const forceStopCount = 3
	go func() {
		n := 0
		for sig := range ossig {
			if sig == os.Interrupt {
				log.Info("Received Interrupt Signal")
				stopCh <- nil
				n++
				if n == forceStopCount {
					log.Fatalf("Received %v Interrupt Signals", forceStopCount)
				}
			}
		}
	}()
	<-stopCh
}

func cmdRun(c *cli.Context) error {
	cfg, err := parseCli(c)
	if err != nil {
		return common.Wrap(fmt.Errorf("error parsing flags and config: %w", err))
	}
	log.Init(cfg.Log.Level, cfg.Log.Outputs)
	innerNode, err := node.NewNode(cfg)
	if err != nil {
		return common.Wrap(fmt.Errorf("error starting node: %w", err))
	}
	innerNode.Start()
	waitSigInt()
	innerNode.Stop()

	return nil
}

func cmdMigrateDown(c *cli.Context) error {
	cfg, err := parseCli(c)
	if err != nil {
		return common.Wrap(fmt.Errorf("error parsing flags and config: %w", err))
	}
	log.Init(cfg.Log.Level, cfg.Log.Outputs)
	db, err := database.InitSQLDB(
		cfg.PostgreSQL.PortWrite,
		cfg.PostgreSQL.HostWrite,
		cfg.PostgreSQL.UserWrite,
		cfg.PostgreSQL.PasswordWrite,
		cfg.PostgreSQL.NameWrite,
	)
	if err != nil {
		return common.Wrap(fmt.Errorf("error connecting to the database: %w", err))
	}
	return database.MigrationsDown(db.DB, uint(c.Uint64(flagMigrate)))
}

func main() {
	app := cli.NewApp()
	app.Name = "group-rollup-node"
	app.Version = "v1"

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     flagCfg,
			Usage:    "Node configuration `FILE`",
			Required: false,
		},
	}

	app.Commands = []cli.Command{
		{
			Name:    "run",
			Aliases: []string{},
			Usage:   "Run the group-rollup-node",
			Action:  cmdRun,
			Flags:   flags,
		},
		{
			Name:    "migratedown",
			Aliases: []string{},
			Usage:   "Revert database migrations",
			Action:  cmdMigrateDown,
			Flags: append(flags, &cli.Uint64Flag{
				Name:  flagMigrate,
				Usage: "Number of migrations to leave applied",
			}),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Printf("\nError: %v\n", common.Wrap(err))
		os.Exit(1)
	}
}
