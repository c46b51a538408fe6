package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. *App
// satisfies it; tests use a stub.
type execIface interface {
	Balance(ctx context.Context) error
	Packages(ctx context.Context) error
	Buy(ctx context.Context, productID string) error
	Restore(ctx context.Context) error
	Dream(ctx context.Context, prompt string) error
	Interpret(ctx context.Context, prompt string) error
	History(ctx context.Context) error
	Delete(ctx context.Context, id string) error
	Logs(ctx context.Context, limit string) error
}

const helpText = `Available commands:
  dream <text>      generate a video for a dream (Ctrl+C cancels and refunds)
  interpret <text>  interpretation only, free
  balance           show credits
  packages          list credit packages
  buy <product-id>  purchase a package
  restore           restore previous purchases
  history           list saved dreams
  delete <id>       delete a saved dream
  logs [n]          show the offline dream log
  exit | quit       leave the program`

// runREPL reads one command per line from scanner and dispatches it to a.
// Handlers report their own errors, so the loop only stops on EOF, exit or
// quit.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("ruya %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]
		rest := strings.Join(args, " ")

		switch cmd {
		case "help":
			printlnFn(helpText)

		case "balance", "b":
			_ = a.Balance(ctx)

		case "packages":
			_ = a.Packages(ctx)

		case "buy":
			if len(args) == 0 {
				printlnFn("Usage: buy <product-id>")
				continue
			}
			_ = a.Buy(ctx, args[0])

		case "restore":
			_ = a.Restore(ctx)

		case "dream", "d":
			if rest == "" {
				printlnFn("Usage: dream <text>")
				continue
			}
			_ = a.Dream(ctx, rest)

		case "interpret", "i":
			if rest == "" {
				printlnFn("Usage: interpret <text>")
				continue
			}
			_ = a.Interpret(ctx, rest)

		case "history", "l":
			_ = a.History(ctx)

		case "delete":
			if len(args) == 0 {
				printlnFn("Usage: delete <id>")
				continue
			}
			_ = a.Delete(ctx, args[0])

		case "logs":
			_ = a.Logs(ctx, rest)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
