package clipresentation

import (
	"errors"
	"fmt"

	domentitlement "github.com/Zhima-Mochi/paywall/internal/domain/entitlement"
	"github.com/Zhima-Mochi/paywall/internal/infrastructure/entitlement"
	"github.com/Zhima-Mochi/paywall/internal/observability"
	"github.com/Zhima-Mochi/paywall/internal/observability/logctx"
	"github.com/urfave/cli/v2"
)

var stateFlag = &cli.StringFlag{
	Name:  "state",
	Usage: "Entitlement state `FILE`, overriding entitlement.file",
}

func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Print whether the video is unlocked",
		Flags: []cli.Flag{stateFlag},
		Action: func(c *cli.Context) error {
			rt, err := bootstrap(c)
			if err != nil {
				return err
			}
			defer rt.close()

			store, err := resolveStore(rt, c.String("state"), false)
			if err != nil {
				return err
			}
			ctx := WithCommandContext(c.Context, rt.log, "status", "")
			entitled, err := store.Read(ctx)
			if err != nil {
				return err
			}
			logctx.FromOr(ctx, rt.log).Debug("entitlement_read",
				observability.F("store", storeLocation(store)),
				observability.F("entitled", entitled),
			)
			if entitled {
				_, _ = fmt.Fprintln(c.App.Writer, "unlocked")
			} else {
				_, _ = fmt.Fprintln(c.App.Writer, "locked")
			}
			return nil
		},
	}
}

// ResetCommand clears the local flag. It is a development affordance.
func ResetCommand() *cli.Command {
	return &cli.Command{
		Name:   "reset",
		Usage:  "Clear the local unlock flag (development)",
		Hidden: true,
		Flags:  []cli.Flag{stateFlag},
		Action: func(c *cli.Context) error {
			rt, err := bootstrap(c)
			if err != nil {
				return err
			}
			defer rt.close()

			store, err := resolveStore(rt, c.String("state"), false)
			if err != nil {
				return err
			}
			clearer, ok := store.(domentitlement.Clearer)
			if !ok {
				return errors.New("entitlement store cannot be cleared")
			}
			ctx := WithCommandContext(c.Context, rt.log, "reset", "")
			if err := clearer.Clear(ctx); err != nil {
				return err
			}
			logctx.FromOr(ctx, rt.log).Info("entitlement_reset", observability.F("store", storeLocation(store)))
			_, _ = fmt.Fprintln(c.App.Writer, "locked")
			return nil
		},
	}
}

// storeLocation names where the flag lives, for logs.
func storeLocation(store domentitlement.Store) string {
	if fs, ok := store.(*entitlement.FileStore); ok {
		return fs.Path()
	}
	return "memory"
}
