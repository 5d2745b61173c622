package launcher

import (
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-rrsc/flags"
)

const version = "0.1.0"

var app = newApp()

func newApp() *cli.App {
	app := flags.NewApp(version, "RRSC slot authorship and epoch record tool")
	app.Flags = flags.Merge(
		flags.CommonFlags(),
		flags.NetworkFlags(),
		flags.NodeFlags(),
	)
	app.Commands = []cli.Command{
		authorshipCommand,
		epochCommand,
		importCommand,
		migrateCommand,
		rulesCommand,
	}
	return app
}

// Launch runs the CLI with the given process arguments.
func Launch(args []string) error {
	return app.Run(args)
}
