package flags

import (
	"gopkg.in/urfave/cli.v1"
)

// NodeFlags holds knobs specific to the local node instance (keys, database, workers).
func NodeFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "keys",
			Usage: "File with the authority secret keys held by this node, one hex key per line",
		},
		cli.IntFlag{
			Name:  "workers",
			Usage: "Number of concurrent slot evaluation tasks (0 = preset default)",
		},
		cli.IntFlag{
			Name:  "cache",
			Usage: "Megabytes of memory allocated to the database cache (0 = preset default)",
		},
		cli.IntFlag{
			Name:  "handles",
			Usage: "Number of open file handles of the database (0 = preset default)",
		},
		cli.StringFlag{
			Name:  "datadir.epochs",
			Usage: "Override path to the epoch database (defaults to <datadir>/epochs)",
		},
	}
}

// EpochFlags select the epoch a command works on.
func EpochFlags() []cli.Flag {
	return []cli.Flag{
		cli.Uint64Flag{
			Name:  "epoch",
			Usage: "Index of the epoch to read from the epoch database",
		},
		cli.StringFlag{
			Name:  "epoch.file",
			Usage: "Read the epoch from a JSON file instead of the epoch database",
		},
	}
}
