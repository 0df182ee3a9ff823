package clipresentation

import (
	"github.com/urfave/cli/v2"
)

// NewApp assembles the paywall command line.
func NewApp(version string) *cli.App {
	return &cli.App{
		Name:    "paywall",
		Usage:   "Mobile-money paywall for a single video landing page",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				EnvVars: []string{"PAYWALL_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			ServeCommand(),
			PayCommand(),
			StatusCommand(),
			ResetCommand(),
			ConfigCommand(),
		},
	}
}
