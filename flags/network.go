package flags

import (
	"gopkg.in/urfave/cli.v1"
)

// NetworkFlags selects the network rules and overrides their selection
// parameters.
func NetworkFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "network",
			Usage: "Network rules preset (main|test|fake)",
			Value: "main",
		},
		cli.StringFlag{
			Name:  "selection.c",
			Usage: "Override the primary slot probability of legacy epochs, as num/den",
		},
		cli.StringFlag{
			Name:  "selection.allowed",
			Usage: "Override the allowed slots of legacy epochs (primary|plain|vrf)",
		},
		cli.Uint64Flag{
			Name:  "upgrades.epochconfig",
			Usage: "First epoch whose records carry their own selection parameters, for networks that switched schema mid-chain",
		},
	}
}
