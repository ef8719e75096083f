package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jogardn/xconnect/internal/agent"
	"github.com/jogardn/xconnect/internal/config"
	"github.com/jogardn/xconnect/internal/events"
	"github.com/jogardn/xconnect/internal/httpapi"
	"github.com/jogardn/xconnect/internal/ledger"
	"github.com/jogardn/xconnect/internal/logging"
	"github.com/jogardn/xconnect/pkg/transport"
)

// listFlag collects a repeatable, comma separated flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(value string) error {
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("xconnect-send", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: xconnect-send -source <lang> -target <lang>[,<lang>...] [flags] <file>...")
		fs.PrintDefaults()
	}

	var targets, instructions listFlag
	envFile := fs.String("env", ".env", "Path to the .env file")
	source := fs.String("source", "", "Source language of the files, for example en-GB")
	fs.Var(&targets, "target", "Target language; repeat or separate with commas")
	fs.Var(&instructions, "instruction", "Instruction for the translator; may be repeated")
	reference := fs.String("reference", "", "Client reference echoed back in the delivery")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")
	dryRun := fs.Bool("dry-run", false, "Build the archive without sending it")
	agentURL := fs.String("agent", "", "Submit through a running xconnect-agent at this URL instead of connecting to the provider")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if strings.TrimSpace(*source) == "" || len(targets) == 0 || fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	for _, path := range fs.Args() {
		if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
			fmt.Fprintf(os.Stderr, "%s is not a readable file\n", path)
			return 2
		}
	}

	if *agentURL != "" {
		return sendThroughAgent(*agentURL, *timeout, httpapi.OrderRequest{
			SourceLanguage:  *source,
			TargetLanguages: targets,
			Reference:       *reference,
			Instructions:    instructions,
		}, fs.Args())
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	logger, err := logging.NewWithOutput(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	service, err := transport.New(ctx, cfg.Transport())
	if err != nil {
		logger.WithError(err).Error("Failed to connect to provider")
		return 1
	}
	defer service.Close()

	store, closeStore, err := ledger.Open(ctx, cfg.DatabaseURL, 3, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to open ledger")
		return 1
	}
	defer closeStore()

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := events.NewKafkaProducer(cfg.KafkaBrokers, logger)
		if err != nil {
			logger.WithError(err).Error("Failed to create Kafka producer")
			return 1
		}
		defer producer.Close()
		publisher = producer
	}

	dispatcher := agent.New(service, store, publisher, nil, agent.Options{
		WorkDir:       cfg.WorkDir,
		OutputDir:     cfg.OutputDir,
		DryRun:        *dryRun || cfg.DryRun,
		OrderDefaults: cfg.OrderDefaults(),
	}, logger)

	req, err := dispatcher.NewRequest(*source)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	for _, lang := range targets {
		req.AddTargetLanguage(lang)
	}
	for _, instruction := range instructions {
		req.AddInstruction(instruction)
	}
	if *reference != "" {
		req.SetReference(*reference)
	}
	for _, path := range fs.Args() {
		req.AddFile(path)
	}

	result, err := dispatcher.Send(ctx, req)
	if err != nil && result != nil {
		logger.WithError(err).Warn("Order sent with warning")
	} else if err != nil {
		logger.WithError(err).Error("Failed to send order")
		return 1
	}

	return printResult(result)
}

func sendThroughAgent(baseURL string, timeout time.Duration, order httpapi.OrderRequest, paths []string) int {
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		order.Files = append(order.Files, httpapi.FileUpload{Name: filepath.Base(path), Content: content})
	}

	logger, err := logging.NewWithOutput(os.Stderr, "warn", "text")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := httpapi.NewClient(baseURL, logger).SendOrder(ctx, order)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return printResult(result)
}

func printResult(result *agent.SendResult) int {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
