package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/brojonat/blinks/client"
	"github.com/urfave/cli/v2"
)

func actionCommands() *cli.Command {
	return &cli.Command{
		Name:  "action",
		Usage: "Fetch action menus and build unsigned transactions",
		Subcommands: []*cli.Command{
			actionCommand("donate", false, "[amount]", "Donate SOL to the configured destination"),
			actionCommand("buy", true, "<mint> [amount]", "Buy a pump.fun token with SOL"),
			actionCommand("swap", true, "<inputMint-outputMint> [amount]", "Swap tokens through the aggregator"),
		},
	}
}

func actionCommand(name string, needsTarget bool, argsUsage, usage string) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: argsUsage,
		Description: fmt.Sprintf(`Without --account the action menu is printed. With --account the service
builds an unsigned transaction and the base64 payload is printed.

Examples:
  blinks action %[1]s %[2]s
  blinks action %[1]s %[2]s --account <pubkey>
  blinks action %[1]s %[2]s --account <pubkey> --json | blinks tx decode`, name, argsUsage),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "account",
				Aliases: []string{"a"},
				Usage:   "Base58 public key of the signing wallet",
				EnvVars: []string{"BLINKS_ACCOUNT"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 30 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			args := c.Args().Slice()
			var target string
			if needsTarget {
				if len(args) < 1 {
					return fmt.Errorf("%s requires %s", name, argsUsage)
				}
				target, args = args[0], args[1:]
			}
			var amount string
			if len(args) > 0 {
				amount = args[0]
			}

			path := client.ActionPath(name, target, amount)
			cl := client.NewClient(c.String("server-url"), nil, nil)

			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
			defer cancel()

			account := c.String("account")
			if account == "" {
				md, err := cl.Menu(ctx, path)
				if err != nil {
					return fmt.Errorf("failed to fetch menu: %w", err)
				}
				if c.Bool("json") {
					return printJSON(md)
				}
				printMenu(md)
				return nil
			}

			tx, err := cl.Build(ctx, path, account)
			if err != nil {
				return fmt.Errorf("failed to build transaction: %w", err)
			}
			if c.Bool("json") {
				return printJSON(tx)
			}
			if tx.Message != "" {
				fmt.Fprintln(os.Stderr, tx.Message)
			}
			fmt.Println(tx.Transaction)
			return nil
		},
	}
}

func printMenu(md *client.Metadata) {
	fmt.Printf("%s\n", md.Title)
	if md.Description != "" {
		fmt.Printf("  %s\n", md.Description)
	}
	fmt.Printf("  Default: %s\n", md.Label)
	if md.Links == nil {
		return
	}
	for _, a := range md.Links.Actions {
		fmt.Printf("  - %-10s %s\n", a.Label, a.Href)
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
