package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/hostbridge/convert"
	"github.com/wippyai/hostbridge/runtime"
)

func main() {
	var (
		scriptFile  = flag.String("script", "", "Path to a Starlark script to run")
		expr        = flag.String("expr", "", "Expression to evaluate")
		configFile  = flag.String("config", "", "CUE configuration file")
		list        = flag.Bool("list", false, "List registered overloads and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Debug logging")
	)
	flag.Parse()

	if *scriptFile == "" && *expr == "" && !*list && !*interactive {
		fmt.Fprintln(os.Stderr, "Usage: bridge -script <file.star> [-config bridge.cue] [-v]")
		fmt.Fprintln(os.Stderr, "       bridge -expr <expression>")
		fmt.Fprintln(os.Stderr, "       bridge -list")
		fmt.Fprintln(os.Stderr, "       bridge -i  (interactive mode)")
		os.Exit(1)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: config: %v\n", err)
		os.Exit(1)
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}

	if *interactive {
		if err := runInteractive(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(os.Stdout, cfg, *scriptFile, *expr, *list); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds a development logger for terminals and a production
// logger otherwise.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	if term.IsTerminal(int(os.Stderr.Fd())) {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = lvl
	return zcfg.Build()
}

// newRuntime creates a runtime with the demo library and the configured
// globals.
func newRuntime(ctx context.Context, cfg *bridgeConfig, out io.Writer) (*runtime.Runtime, error) {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	opts := []runtime.Option{
		runtime.WithLogger(logger),
		runtime.WithMaxSteps(cfg.MaxSteps),
		runtime.WithPrint(func(msg string) { fmt.Fprintln(out, msg) }),
	}
	if !cfg.allowThreads() {
		opts = append(opts, runtime.WithoutAllowThreads())
	}

	rt, err := runtime.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create runtime: %w", err)
	}
	if err := registerDemo(rt, time.Now); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("register demo library: %w", err)
	}

	names := make([]string, 0, len(cfg.Globals))
	for name := range cfg.Globals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := rt.SetGlobal(name, cfg.Globals[name]); err != nil {
			rt.Close(ctx)
			return nil, fmt.Errorf("global %s: %w", name, err)
		}
	}
	return rt, nil
}

func run(out io.Writer, cfg *bridgeConfig, scriptFile, expr string, listOnly bool) error {
	ctx := context.Background()

	rt, err := newRuntime(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	if listOnly {
		printOverloads(out, rt)
		return nil
	}

	if scriptFile != "" {
		src, err := os.ReadFile(scriptFile)
		if err != nil {
			return fmt.Errorf("read file: %w", err)
		}
		globals, err := rt.Exec(ctx, scriptFile, src)
		if err != nil {
			return err
		}
		for _, v := range globals {
			convert.CloseObjects(reflect.ValueOf(v))
		}
	}

	if expr != "" {
		result, err := rt.Eval(ctx, expr, nil)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%v\n", result)
		convert.CloseObjects(reflect.ValueOf(result))
	}
	return nil
}

// printOverloads lists every overload set with the precedence score of
// each candidate, in resolution order.
func printOverloads(out io.Writer, rt *runtime.Runtime) {
	b := rt.Binder()
	for _, name := range b.Names() {
		o, _ := b.Lookup(name)
		fmt.Fprintf(out, "%s\n", name)
		for _, c := range o.Candidates() {
			fmt.Fprintf(out, "  %6d  %s\n", c.Score(), c)
		}
	}
}
