package main

import (
	"bufio"
	"cmp"
	"context"
	"crypto/cipher"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/GlycoKeeper/internal/client/api"
	"github.com/atinyakov/GlycoKeeper/internal/client/geocode"
	"github.com/atinyakov/GlycoKeeper/internal/client/service"
	"github.com/atinyakov/GlycoKeeper/internal/client/storage"
	"github.com/atinyakov/GlycoKeeper/internal/config"
	"github.com/atinyakov/GlycoKeeper/internal/logger"
)

var (
	version   string
	buildDate string
)

// repl runs the interactive shell loop, dispatching each line as a command.
func repl(ctx context.Context, a *app, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(a.out, "glycokeeper> ")
		if !scanner.Scan() {
			fmt.Fprintln(a.out)
			return
		}
		args := strings.Fields(scanner.Text())
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			fmt.Fprintln(a.out, "Bye")
			return
		}
		if err := a.run(ctx, args[0], args[1:]); err != nil {
			fmt.Fprintln(a.out, describeError(err))
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// newApp wires the client stack from opts.
func newApp(opts *config.ClientOptions, log *zap.Logger, out io.Writer) (*app, error) {
	var aead cipher.AEAD
	if opts.StorageSecret != "" {
		var err error
		if aead, err = storage.NewAEADFromSecret([]byte(opts.StorageSecret)); err != nil {
			return nil, err
		}
	}
	ls, err := storage.Open(opts.StoragePath, aead)
	if err != nil {
		return nil, fmt.Errorf("open local storage: %w", err)
	}

	httpClient, err := storage.NewHTTPClient(opts.CAFile, opts.Timeout)
	if err != nil {
		return nil, err
	}

	client := api.New(opts.BaseURL, ls,
		api.WithHTTPClient(httpClient),
		api.WithLogger(log),
		api.WithSessionExpiredHook(func() {
			log.Info("session expired, local credentials cleared")
		}),
	)

	return &app{
		api:       client,
		glycemia:  service.NewGlycemiaService(client),
		dashboard: service.NewDashboardService(client),
		users:     service.NewUsersService(client),
		geo:       geocode.New(opts.GeocodeURL, opts.GeocodeUserAgent, geocode.WithLogger(log)),
		out:       out,
		now:       time.Now,
	}, nil
}

// main parses flags and runs one command, or the interactive shell.
func main() {
	fs := flag.NewFlagSet("glycokeeper", flag.ExitOnError)
	cmd := fs.String("cmd", "shell", "command to run (see -cmd help)")
	showVer := fs.Bool("version", false, "show build version and date")

	opts, err := config.ParseClient(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if *showVer {
		fmt.Printf("GlycoKeeper Client\nVersion: %s\nBuild Date: %s\n", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))
		return
	}

	log := logger.New()
	if err := log.InitConsole(opts.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Log.Sync() }()

	a, err := newApp(opts, log.Log, os.Stdout)
	if err != nil {
		log.Log.Fatal("cannot start client", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *cmd == "shell" {
		fmt.Fprintln(a.out, "Type 'help' for a list of commands.")
		repl(ctx, a, os.Stdin)
		return
	}
	if err := a.run(ctx, *cmd, fs.Args()); err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(1)
	}
}
