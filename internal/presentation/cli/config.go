package clipresentation

import (
	"fmt"

	"github.com/Zhima-Mochi/paywall/internal/config"
	"github.com/urfave/cli/v2"
)

func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the configuration file",
		Subcommands: []*cli.Command{
			{
				Name:      "init",
				Usage:     "Write a sample configuration",
				ArgsUsage: "[FILE]",
				Action: func(c *cli.Context) error {
					path := c.Args().First()
					if path == "" {
						path = "paywall.toml"
					}
					if err := config.InitConfig(path); err != nil {
						return err
					}
					_, _ = fmt.Fprintf(c.App.Writer, "wrote %s\n", path)
					return nil
				},
			},
			{
				Name:  "check",
				Usage: "Load and validate the configuration",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}
					_, _ = fmt.Fprintf(c.App.Writer, "ok: tiers=%v endpoint=%s\n", cfg.Payment.Tiers, cfg.Payment.Endpoint)
					return nil
				},
			},
		},
	}
}
