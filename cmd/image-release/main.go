package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ironsheep/image-release-tools/internal/config"
	"github.com/ironsheep/image-release-tools/internal/httpapi"
	"github.com/ironsheep/image-release-tools/internal/logging"
	"github.com/ironsheep/image-release-tools/internal/release"
	"github.com/ironsheep/image-release-tools/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func usage() {
	fmt.Println("image-release - build augmented dataset releases")
	fmt.Println()
	fmt.Println("Usage: image-release <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run  -f release.yaml   Run a release and print its record")
	fmt.Println("  plan -f release.yaml   Print the configs a release would generate")
	fmt.Println("  serve [-addr :8080]    Serve the HTTP API and /metrics")
	fmt.Println("  mcp                    Serve MCP over stdin/stdout")
	fmt.Println("  reap [-max-age 24h]    Remove orphaned staging directories")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println("  -config path     Service configuration (default image-release.yaml)")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  IMAGE_RELEASE__<SECTION>__<KEY>   Override any configuration key,")
	fmt.Println("                                    e.g. IMAGE_RELEASE__RELEASE__WORKERS=8")
	fmt.Println("  IMAGE_RELEASE_LOG_LEVEL=debug     Log level before configuration is read")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "--version", "-v", "version":
		fmt.Printf("image-release %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	case "--help", "-h", "help":
		usage()
		return
	}

	// stdout is reserved for command output and the MCP protocol
	logging.InitFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "run":
		err = runCmd(ctx, args)
	case "plan":
		err = planCmd(ctx, args)
	case "serve":
		err = serveCmd(ctx, args)
	case "mcp":
		err = mcpCmd(ctx, args)
	case "reap":
		err = reapCmd(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		logging.L().Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func newFlags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	cfgPath := fs.String("config", "image-release.yaml", "service configuration file")
	return fs, cfgPath
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runCmd(ctx context.Context, args []string) error {
	fs, cfgPath := newFlags("run")
	reqPath := fs.String("f", "", "release request (YAML)")
	_ = fs.Parse(args)
	if *reqPath == "" {
		return errors.New("run: -f is required")
	}

	a, err := newApp(*cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	req, err := config.LoadRequest(*reqPath)
	if err != nil {
		return err
	}
	rec, err := a.orch.Run(ctx, req)
	if rec != nil {
		if perr := printJSON(rec); perr != nil {
			return perr
		}
	}
	return err
}

func planCmd(ctx context.Context, args []string) error {
	fs, cfgPath := newFlags("plan")
	reqPath := fs.String("f", "", "release request (YAML)")
	imageID := fs.String("image", "", "image id for per-image plans")
	_ = fs.Parse(args)
	if *reqPath == "" {
		return errors.New("plan: -f is required")
	}

	a, err := newApp(*cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	req, err := config.LoadRequest(*reqPath)
	if err != nil {
		return err
	}
	sum, err := a.orch.PlanRelease(ctx, release.PlanRequest{
		VersionTag:      req.VersionTag,
		Transformations: req.Transformations,
		Policy:          req.Policy,
		ImageID:         *imageID,
	})
	if err != nil {
		return err
	}
	return printJSON(sum)
}

func serveCmd(ctx context.Context, args []string) error {
	fs, cfgPath := newFlags("serve")
	addr := fs.String("addr", "", "listen address (overrides server.addr)")
	_ = fs.Parse(args)

	a, err := newApp(*cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()
	if *addr != "" {
		a.cfg.Server.Addr = *addr
	}

	go a.reapLoop(ctx)

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           httpapi.SetupRouter(httpapi.NewReleaseHandler(ctx, a.orch), a.metrics),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func mcpCmd(ctx context.Context, args []string) error {
	fs, cfgPath := newFlags("mcp")
	_ = fs.Parse(args)

	a, err := newApp(*cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	a.log.Debug("mcp server starting", "version", Version, "built", BuildTime, "commit", GitCommit)
	server.Version = Version
	return server.New(a.orch).Run(ctx)
}

func reapCmd(args []string) error {
	fs, cfgPath := newFlags("reap")
	maxAge := fs.Duration("max-age", 0, "minimum staging age (default release.staging_max_age)")
	_ = fs.Parse(args)

	a, err := newApp(*cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	age := a.cfg.Release.StagingMaxAge
	if *maxAge > 0 {
		age = *maxAge
	}
	n, err := a.orch.Reap(age)
	fmt.Printf("removed %d staging directories\n", n)
	return err
}
