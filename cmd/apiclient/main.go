// Command apiclient issues a single API call and prints the decoded body as JSON.
//
//	apiclient [-X METHOD] [-d JSON] [-timeout 2s] [-v] path
//	apiclient -version
//
// Settings come from APICLIENT_* environment variables (see
// apiclient.ConfigFromEnv). APICLIENT_TOKEN and APICLIENT_TENANT_ID supply
// credentials.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	apiclient "github.com/michaelayoade/dotmac-shared-sub011"
)

const envPrefix = "APICLIENT"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "apiclient:", err)
		if status, ok := apiclient.StatusCode(err); ok && status >= 400 && status < 500 {
			os.Exit(4)
		}
		os.Exit(1)
	}
}

func run() error {
	method := flag.String("X", http.MethodGet, "HTTP method")
	data := flag.String("d", "", "JSON request body")
	timeout := flag.Duration("timeout", 0, "override the configured timeout")
	verbose := flag.Bool("v", false, "log debug output to stderr")
	version := flag.Bool("version", false, "print the version and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] path\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *version {
		fmt.Println(apiclient.GetVersion())
		return nil
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := apiclient.ConfigFromEnv(envPrefix)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	for k, v := range apiclient.GetVersionInfo() {
		logger = logger.With(k, v)
	}

	opts := []apiclient.Option{
		apiclient.WithConfig(cfg),
		apiclient.WithLogger(logger),
	}
	if *verbose {
		opts = append(opts, apiclient.WithDebug())
	}
	if *timeout > 0 {
		opts = append(opts, apiclient.WithTimeout(*timeout))
	}
	if token := os.Getenv(envPrefix + "_TOKEN"); token != "" {
		opts = append(opts, apiclient.WithSession(apiclient.StaticSession{
			AccessToken: token,
			TenantID:    os.Getenv(envPrefix + "_TENANT_ID"),
		}))
	}

	d := apiclient.New(opts...)
	defer d.Close()
	if err := d.ValidationError(); err != nil {
		return err
	}

	var body any
	if *data != "" {
		if !json.Valid([]byte(*data)) {
			return errors.New("-d is not valid JSON")
		}
		body = json.RawMessage(*data)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	value, err := d.Do(ctx, *method, flag.Arg(0), body)
	logger.Debug("Call finished", "duration", time.Since(start), "error", err)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
