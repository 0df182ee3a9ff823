package clipresentation

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	apppay "github.com/Zhima-Mochi/paywall/internal/application/payment"
	domentitlement "github.com/Zhima-Mochi/paywall/internal/domain/entitlement"
	dompay "github.com/Zhima-Mochi/paywall/internal/domain/payment"
	"github.com/Zhima-Mochi/paywall/internal/infrastructure/airtel"
	"github.com/Zhima-Mochi/paywall/internal/infrastructure/entitlement"
	"github.com/Zhima-Mochi/paywall/internal/infrastructure/feedback"
	"github.com/Zhima-Mochi/paywall/internal/infrastructure/id"
	"github.com/Zhima-Mochi/paywall/internal/infrastructure/memory"
	"github.com/urfave/cli/v2"
)

func PayCommand() *cli.Command {
	return &cli.Command{
		Name:  "pay",
		Usage: "Unlock the video from the terminal with a mobile-money payment",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "phone",
				Aliases: []string{"p"},
				Usage:   "Subscriber `NUMBER` (074/077 followed by 6 digits); prompted when empty",
			},
			&cli.Int64Flag{
				Name:    "amount",
				Aliases: []string{"a"},
				Usage:   "Tier `AMOUNT` to pay",
				Value:   dompay.DefaultTiers[0],
			},
			&cli.StringFlag{
				Name:  "state",
				Usage: "Entitlement state `FILE`, overriding entitlement.file",
			},
			&cli.BoolFlag{
				Name:  "ephemeral",
				Usage: "Keep the entitlement in memory only",
			},
		},
		Action: func(c *cli.Context) error {
			rt, err := bootstrap(c)
			if err != nil {
				return err
			}
			defer rt.close()

			store, err := resolveStore(rt, c.String("state"), c.Bool("ephemeral"))
			if err != nil {
				return err
			}
			processor := airtel.NewClient(airtel.Config{
				Endpoint: rt.cfg.Payment.Endpoint,
				Timeout:  rt.cfg.Payment.Timeout,
			}, nil, rt.tel)

			ctx := WithCommandContext(c.Context, rt.log, "pay", "")
			return runPay(ctx, rt, processor, store, payArgs{
				phone:  c.String("phone"),
				amount: c.Int64("amount"),
				in:     c.App.Reader,
				out:    c.App.Writer,
			})
		},
	}
}

type payArgs struct {
	phone  string
	amount int64
	in     io.Reader
	out    io.Writer
}

func runPay(ctx context.Context, rt *runtime, processor apppay.Processor, store domentitlement.Store, args payArgs) error {
	tiers := dompay.Tiers(rt.cfg.Payment.Tiers)
	if !tiers.Contains(args.amount) {
		return cli.Exit(fmt.Sprintf("amount %d is not one of %v", args.amount, []int64(tiers)), 2)
	}

	entitled, err := store.Read(ctx)
	if err != nil {
		return err
	}
	if entitled {
		_, _ = fmt.Fprintln(args.out, "Already unlocked.")
		return nil
	}

	phone := args.phone
	if phone == "" {
		_, _ = fmt.Fprint(args.out, "Phone (Ex: 077123456): ")
		line, readErr := bufio.NewReader(args.in).ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return readErr
		}
		phone = strings.TrimSpace(line)
	}

	term := feedback.NewTerminal(args.out)
	gate := apppay.NewGate(processor, store, term, term, id.NewUUIDGenerator(), apppay.GateConfig{
		Currency: rt.cfg.Payment.Currency,
		Timeout:  rt.cfg.Payment.Timeout,
	}, rt.tel)

	res, err := gate.Execute(ctx, apppay.SubmitPaymentInput{
		RawPhone: phone,
		Amount:   args.amount,
		OnSuccess: func(context.Context) {
			_, _ = fmt.Fprintln(args.out, "Video unlocked.")
		},
	})
	if err != nil {
		return err
	}
	if !res.Result.Succeeded() {
		return cli.Exit("", 1)
	}
	return nil
}

func resolveStore(rt *runtime, path string, ephemeral bool) (domentitlement.Store, error) {
	if ephemeral {
		return memory.NewEntitlementStore(), nil
	}
	if path == "" {
		path = rt.cfg.Entitlement.File
	}
	if path == "" {
		p, err := entitlement.DefaultFilePath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return entitlement.NewFileStore(path), nil
}
