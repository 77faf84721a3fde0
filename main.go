// Command coino runs the color round engine. Maintenance subcommands act on
// the ledger database and exit.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"coino/cmd"
	"coino/database"

	log "github.com/sirupsen/logrus"
)

const migrateUsage = "migrate up | down [steps] | status"

type subcommand struct {
	usage string
	run   func(ctx context.Context, args []string) error
}

var subcommands = map[string]subcommand{
	"serve": {
		usage: "serve",
		run: func(ctx context.Context, _ []string) error {
			return cmd.Run(ctx)
		},
	},
	"migrate": {
		usage: migrateUsage,
		run:   migrate,
	},
}

func main() {
	name, args := "serve", os.Args[1:]
	if len(args) > 0 {
		name, args = args[0], args[1:]
	}

	sub, ok := subcommands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", name, usage())
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sub.run(ctx, args); err != nil {
		stop()
		log.WithFields(log.Fields{
			"command": name,
			"error":   err,
		}).Fatal("coino exited with an error")
	}
}

func migrate(_ context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: coino %s", migrateUsage)
	}

	switch args[0] {
	case "up":
		return database.MigrateUp()
	case "down":
		steps := "1"
		if len(args) > 1 {
			steps = args[1]
		}
		return database.MigrateDown(steps)
	case "status":
		return database.MigrateStatus()
	default:
		return fmt.Errorf("unknown migrate action %q (want up, down or status)", args[0])
	}
}

func usage() string {
	names := make([]string, 0, len(subcommands))
	for name := range subcommands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("usage:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  coino %s\n", subcommands[name].usage)
	}
	return b.String()
}
