// Command qride-send submits a message for a sticker code and waits for
// delivery confirmation, mirroring what the scan landing page does in the
// browser. Useful for end-to-end checks against a running relay and agent.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qride/pkg/poller"
	"qride/pkg/relayclient"
)

func main() {
	var (
		relayURL = flag.String("relay", "http://localhost:8090", "relay base URL")
		code     = flag.String("code", "", "sticker code")
		message  = flag.String("message", "", "message to relay")
		interval = flag.Duration("interval", poller.DefaultInterval, "confirmation poll interval")
		attempts = flag.Int("attempts", poller.DefaultMaxAttempts, "confirmation poll attempts")
	)
	flag.Parse()
	if *code == "" || *message == "" {
		fmt.Fprintln(os.Stderr, "usage: qride-send -code <code> -message <text> [-relay URL]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := relayclient.NewClient(*relayURL, "")
	p := poller.New(poller.Config{
		Ingress:     client,
		Checker:     client,
		Interval:    *interval,
		MaxAttempts: *attempts,
		OnTransition: func(s poller.State) {
			fmt.Printf("%s %s\n", time.Now().Format(time.TimeOnly), s)
		},
	})

	res := p.Run(ctx, *code, *message)
	switch res.State {
	case poller.StateDelivered:
		fmt.Printf("delivered after %d checks\n", res.Attempts)
	case poller.StateTimedOut:
		fmt.Printf("no confirmation after %d checks\n", res.Attempts)
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "failed: %v\n", res.Err)
		os.Exit(1)
	}
}
