package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"finance/internal/api"
	"finance/internal/app"
	"finance/internal/cli"
	"finance/internal/log"
	"finance/internal/services"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(stderr)
		if len(args) == 0 {
			return 2
		}
		return 0
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	repo := cli.InitSQLite(logger, cfg.StateDBPath)

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger, app.Options{Repo: repo, Out: stdout, Err: stderr})
	if err != nil {
		logger.Error("Failed to start", log.FieldError, err)
		repo.Close()
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("Shutdown error", log.FieldError, err)
		}
	}()

	env := &env{app: a, logger: logger, in: stdin, out: stdout, errOut: stderr}
	if err := cmd.run(ctx, env, args[1:]); err != nil {
		return report(stderr, err)
	}
	return 0
}

// report prints err unless it was already shown as a validation notification
// or a login prompt, and returns the exit code.
func report(stderr io.Writer, err error) int {
	var verr *services.ValidationError
	switch {
	case errors.Is(err, errUsage):
		return 2
	case api.IsAuthError(err):
	case errors.As(err, &verr):
	default:
		fmt.Fprintln(stderr, "error:", err)
	}
	return 1
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: finance <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-20s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run `finance <command> -h` for command flags.")
	fmt.Fprintln(w, "Configuration comes from the environment or .env: "+strings.Join([]string{
		"FINANCE_API_BASE_URL", "FINANCE_STATE_DB_PATH", "LOG_LEVEL", "EXPORT_BACKEND", "AMQP_URL",
	}, ", "))
}
