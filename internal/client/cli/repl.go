package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface is the command surface the REPL dispatches to.
type execIface interface {
	isLoggedIn() bool
	Generate(ctx context.Context) error
	Login(ctx context.Context) error
	Status(ctx context.Context) error
	Submit(ctx context.Context) error
	DeleteReplies(ctx context.Context) error
	Logout(ctx context.Context) error
	Metadata(ctx context.Context) error
	JournalistKey(ctx context.Context) error
}

// runREPL reads commands from reader until EOF, "exit" or "quit". Handlers
// report their own errors, so the loop ignores them.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, w io.Writer) {
	for {
		fmt.Fprintf(w, "dd %s> ", statusFn())
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(w, "Available commands: status, submit, delete, logout, metadata, key, exit")
			} else {
				fmt.Fprintln(w, "Available commands: generate, login, metadata, key, exit")
			}

		case "generate":
			_ = a.Generate(ctx)

		case "login":
			_ = a.Login(ctx)

		case "status", "lookup":
			_ = a.Status(ctx)

		case "submit":
			_ = a.Submit(ctx)

		case "delete":
			_ = a.DeleteReplies(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "metadata":
			_ = a.Metadata(ctx)

		case "key":
			_ = a.JournalistKey(ctx)

		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return

		default:
			fmt.Fprintln(w, "Unknown command:", parts[0])
		}

		if err != nil {
			return
		}
	}
}
