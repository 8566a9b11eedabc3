package flags

import (
	"gopkg.in/urfave/cli.v1"
)

// CommonFlags returns the CLI flags cmd/stakecored wires up. There is no RPC
// surface at the core level (spec.md §6: "CLI/env/config: none at the core
// level"), so this keeps only what the demo binary itself needs to start —
// a datadir, a genesis file, and logging — and drops the http/ws/ipc/metrics
// groups the teacher's own opera node carries for its EVM RPC surface.
func CommonFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "datadir",
			Usage: "Data directory for the staking node",
			Value: "~/.stakecored",
		},
		cli.StringFlag{
			Name:  "genesis",
			Usage: "Path to the genesis JSON file",
		},
		cli.StringFlag{
			Name:  "log.format",
			Usage: "Log output format (text|json)",
			Value: "text",
		},
		cli.IntFlag{
			Name:  "log.verbosity",
			Usage: "Logging verbosity (0=fatal,1=error,2=warn,3=info,4=debug,5=trace)",
			Value: 3,
		},
		cli.BoolFlag{
			Name:  "log.color",
			Usage: "Enable colored log output",
		},
		cli.StringFlag{
			Name:  "sentry.dsn",
			Usage: "Optional Sentry DSN for error-tracking on Fatal-level halts",
		},
	}
}
