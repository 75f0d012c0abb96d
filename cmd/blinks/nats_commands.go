package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	natspkg "github.com/brojonat/blinks/service/nats"
	"github.com/itchyny/gojq"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

func natsCommands() *cli.Command {
	return &cli.Command{
		Name:  "nats",
		Usage: "NATS action event commands",
		Subcommands: []*cli.Command{
			subscribeCommand(),
			inspectStreamCommand(),
		},
	}
}

// subscribeCommand streams action events from JetStream.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Stream action events as transactions are built",
		ArgsUsage: "[donate|buy|swap]",
		Description: `Subscribe to the ACTIONS stream. With no argument every action is shown.

Examples:
  blinks nats subscribe
  blinks nats subscribe buy --must-jq '.amount | tonumber > 1'
  blinks nats subscribe --durable --consumer-name audit`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "durable",
				Usage: "Use a durable consumer that resumes where it left off",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Durable consumer name",
				Value: "blinks-cli",
			},
			&cli.StringSliceFlag{
				Name:  "must-jq",
				Usage: "jq filter that must evaluate to true for an event to be shown (repeatable, all must match)",
			},
		},
		Action: func(c *cli.Context) error {
			subject := natspkg.StreamSubjects
			if action := c.Args().First(); action != "" {
				subject = natspkg.Subject(action)
			}

			filters, err := compileFilters(c.StringSlice("must-jq"))
			if err != nil {
				return err
			}

			return streamActions(c.String("nats-url"), subject, c.Bool("durable"), c.String("consumer-name"), filters, c.Bool("json"))
		},
	}
}

// streamActions connects to NATS and prints matching action events until interrupted.
func streamActions(natsURL, subject string, durable bool, consumerName string, filters []*gojq.Code, jsonOutput bool) error {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if !jsonOutput {
		fmt.Printf("📡 Subscribing to: %s\n", subject)
		fmt.Printf("   NATS: %s\n", natsURL)
		if durable {
			fmt.Printf("   Consumer: %s (durable)\n", consumerName)
		}
		fmt.Printf("\nWaiting for action events... (Ctrl-C to exit)\n\n")
	}

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	}
	if durable {
		consumerConfig.Durable = consumerName
		consumerConfig.Name = consumerName
	}

	cons, err := js.CreateOrUpdateConsumer(context.Background(), natspkg.StreamName, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	msgChan := make(chan jetstream.Msg, 10)
	consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
		msgChan <- msg
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer consumeCtx.Stop()

	count := 0
	for {
		select {
		case msg := <-msgChan:
			var event natspkg.ActionEvent
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				if !jsonOutput {
					fmt.Fprintf(os.Stderr, "Error parsing event: %v\n", err)
				}
				msg.Ack()
				continue
			}

			if !matchesAll(filters, msg.Data()) {
				msg.Ack()
				continue
			}

			count++
			if jsonOutput {
				data, _ := json.Marshal(event)
				fmt.Println(string(data))
			} else {
				printEvent(count, &event)
			}

			msg.Ack()

		case <-sigChan:
			if !jsonOutput {
				fmt.Printf("\n\n✅ Received %d action events\n", count)
				fmt.Println("Shutting down...")
			}
			return nil
		}
	}
}

func printEvent(n int, event *natspkg.ActionEvent) {
	fmt.Printf("─────────────────────────────────────────────────────\n")
	fmt.Printf("Action #%d: %s\n", n, event.Action)
	fmt.Printf("─────────────────────────────────────────────────────\n")
	fmt.Printf("Account:      %s\n", event.Account)
	if event.Target != "" {
		fmt.Printf("Target:       %s\n", event.Target)
	}
	fmt.Printf("Amount:       %s\n", event.Amount)
	fmt.Printf("Blockhash:    %s\n", event.Blockhash)
	fmt.Printf("Instructions: %d\n", event.InstructionCount)
	fmt.Printf("Built:        %s\n", event.BuiltAt.Format(time.RFC3339))
	fmt.Printf("\n")
}

// compileFilters parses and compiles jq predicates.
func compileFilters(filters []string) ([]*gojq.Code, error) {
	compiled := make([]*gojq.Code, len(filters))
	for i, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		compiled[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
	}
	return compiled, nil
}

// matchesAll reports whether every filter's first result over the JSON document is truthy.
func matchesAll(filters []*gojq.Code, data []byte) bool {
	if len(filters) == 0 {
		return true
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return false
	}
	for _, code := range filters {
		iter := code.Run(doc)
		v, ok := iter.Next()
		if !ok {
			return false
		}
		if _, isErr := v.(error); isErr {
			return false
		}
		if !isTruthy(v) {
			return false
		}
	}
	return true
}

// isTruthy checks if a jq result value is truthy.
// In jq, false and null are falsy, everything else is truthy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

// inspectStreamCommand shows information about the ACTIONS JetStream stream.
func inspectStreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect-stream",
		Usage: "Inspect the ACTIONS JetStream stream",
		Action: func(c *cli.Context) error {
			natsURL := c.String("nats-url")
			jsonOutput := c.Bool("json")

			nc, err := nats.Connect(natsURL)
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			stream, err := js.Stream(context.Background(), natspkg.StreamName)
			if err != nil {
				return fmt.Errorf("failed to get stream: %w", err)
			}

			info, err := stream.Info(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get stream info: %w", err)
			}

			if jsonOutput {
				data, _ := json.MarshalIndent(info, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("Stream: %s\n", info.Config.Name)
			fmt.Printf("─────────────────────────────────────────────────────\n")
			fmt.Printf("Description:  %s\n", info.Config.Description)
			fmt.Printf("Subjects:     %v\n", info.Config.Subjects)
			fmt.Printf("Messages:     %d\n", info.State.Msgs)
			fmt.Printf("Bytes:        %d\n", info.State.Bytes)
			fmt.Printf("Consumers:    %d\n", info.State.Consumers)
			fmt.Printf("Max Age:      %s\n", info.Config.MaxAge)
			fmt.Printf("Storage:      %s\n", info.Config.Storage)
			return nil
		},
	}
}
