package main

import (
	"bufio"
	"chat-relay/client"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/kelseyhightower/envconfig"
)

// Config defines the client-side environment variables.
type Config struct {
	RelayAddr string `envconfig:"RELAY_ADDR" default:"localhost:8080"`
	// RELAY_COLOURS colours relay announcements
	Colours bool `envconfig:"RELAY_COLOURS" default:"true"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
		os.Exit(1)
	}
}

// run pipes stdin to the relay and relay lines to stdout until either side ends.
func run() error {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.Dial(ctx, config.RelayAddr)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if err := c.Send(scanner.Text()); err != nil {
				return
			}
		}
		// end of input: let the relay announce our departure
		_ = c.CloseWrite()
	}()

	received := make(chan error, 1)
	go func() {
		for {
			line, err := c.ReadLine()
			if err != nil {
				received <- err
				return
			}
			fmt.Println(client.Render(line, config.Colours))
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-received:
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
}
