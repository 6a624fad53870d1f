// Command accessctl administers a goAccess credential store: schema migration, seeding,
// lockout resets, permission grants and role or impersonation checks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrEthical07/goAccess/internal/logger"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, app *app, args []string) error
}

var commands = []command{
	{name: "migrate", summary: "apply embedded SQL migrations", run: runMigrate},
	{name: "seed", summary: "create tenants, accounts and memberships from a YAML file", run: runSeed},
	{name: "unlock", summary: "reset failed-login state for an account", run: runUnlock},
	{name: "grant", summary: "grant a direct permission", run: runGrant},
	{name: "revoke", summary: "revoke a direct permission", run: runRevoke},
	{name: "roles", summary: "list roles an admin may assign", run: runRoles},
	{name: "can-impersonate", summary: "check the impersonation gate for two accounts", run: runCanImpersonate},
	{name: "bench", summary: "measure Authenticate latency under concurrency", run: runBench},
}

type app struct {
	cfg    cliConfig
	log    *logger.Logger
	stdout io.Writer
}

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		usage(stderr)
		return 2
	}

	cfg, err := loadCLIConfig()
	if err != nil {
		fmt.Fprintf(stderr, "accessctl: %v\n", err)
		return 1
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "accessctl: %v\n", err)
		return 2
	}
	a := &app{cfg: cfg, log: logger.New(stderr, level), stdout: stdout}

	for _, cmd := range commands {
		if cmd.name != args[0] {
			continue
		}
		err := cmd.run(ctx, a, args[1:])
		switch {
		case err == nil:
			return 0
		case errors.Is(err, flag.ErrHelp), errors.Is(err, errUsage):
			return 2
		default:
			a.log.Error("command failed", "command", cmd.name, "error", err)
			return 1
		}
	}

	fmt.Fprintf(stderr, "accessctl: unknown command %q\n", args[0])
	usage(stderr)
	return 2
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: accessctl <command> [flags]")
	fmt.Fprintln(w)
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-16s %s\n", cmd.name, cmd.summary)
	}
}
