package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/fennelworks/claude-go/anthropic"
	"github.com/fennelworks/claude-go/client"
	"github.com/fennelworks/claude-go/internal/fsio"
	"github.com/fennelworks/claude-go/memory"
	"github.com/fennelworks/claude-go/runner"
	"github.com/fennelworks/claude-go/streaming"
	"github.com/fennelworks/claude-go/tools"
)

const (
	defaultModel = "claude-sonnet-4-5"
	maxTokens    = 4096
	workDir      = "agent-data"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := client.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("missing ANTHROPIC_API_KEY; export it before running")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).With().Timestamp().Logger()

	c := client.NewWithConfig(*cfg, client.WithLogger(log))

	sandbox, err := fsio.NewSandbox(workDir)
	if err != nil {
		return err
	}
	store, err := memory.NewStore(workDir + "/memories")
	if err != nil {
		return err
	}
	reg, err := tools.NewRegistry(
		tools.NewReadFileTool(sandbox),
		tools.NewListFilesTool(sandbox),
		tools.NewEditFileTool(sandbox),
		tools.NewMemoryTool(store),
	)
	if err != nil {
		return err
	}

	// Graceful shutdown on Ctrl-C (SIGINT) / SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigch)
	go func() {
		<-sigch
		fmt.Println("\nExiting...")
		cancel()
	}()

	// stdin reader goroutine -> lines into channel.
	scanner := bufio.NewScanner(os.Stdin)
	inputCh := make(chan string)
	go func() {
		for scanner.Scan() {
			inputCh <- scanner.Text()
		}
		close(inputCh)
	}()

	fmt.Println("Chat with Claude (Ctrl-C to quit)")

	var conv []anthropic.MessageParam
	for {
		fmt.Print("[94mYou[0m: ")
		var (
			user string
			ok   bool
		)
		select {
		case <-ctx.Done():
			return scanner.Err()
		case user, ok = <-inputCh:
			if !ok {
				return scanner.Err()
			}
		}
		conv = append(conv, anthropic.NewUserMessage(anthropic.NewTextBlock(user)))

		final, history, err := runTurn(ctx, c, reg, log, conv)
		if err != nil {
			if ctx.Err() != nil {
				return scanner.Err()
			}
			log.Error().Err(err).Msg("turn failed")
			// Drop the failed user turn so the history stays consistent.
			conv = conv[:len(conv)-1]
			continue
		}
		conv = append(history, final.ToParam())
	}
}

// runTurn drives one assistant turn to completion, printing text as it
// streams. Returns the final assistant message and the runner's view of the
// conversation so far.
func runTurn(ctx context.Context, c *client.Client, reg *tools.Registry, log zerolog.Logger, conv []anthropic.MessageParam) (*anthropic.Message, []anthropic.MessageParam, error) {
	r := runner.NewStreaming(c.Messages, anthropic.MessageNewParams{
		Model:     defaultModel,
		MaxTokens: maxTokens,
		Messages:  conv,
	}, reg,
		runner.WithLogger(log),
		runner.WithCompaction(runner.CompactionControl{Enabled: true}),
	)

	for {
		stream, err := r.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		fmt.Print("[93mClaude[0m: ")
		for {
			ev, err := stream.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, nil, err
			}
			if ev.Type == streaming.EventTypeText {
				fmt.Print(ev.Text)
			}
		}
		fmt.Println()
	}

	final := r.LastMessage()
	if final == nil {
		return nil, nil, fmt.Errorf("model produced no messages")
	}
	return final, r.Params().Messages, nil
}
