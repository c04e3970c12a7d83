package main

import (
	"fmt"
	"os"
	"time"

	"github.com/LeeDigitalWorks/zaps3/cmd"

	"github.com/getsentry/sentry-go"
)

func main() {
	// DSN comes from SENTRY_DSN; without it Init is a no-op client.
	err := sentry.Init(sentry.ClientOptions{
		SampleRate:       0.1,
		EnableTracing:    true,
		TracesSampleRate: 0.1,
		Release:          "zaps3@" + cmd.Version,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sentry.Init: %v", err)
	}
	// Flush buffered events before the program terminates.
	defer sentry.Flush(2 * time.Second)

	cmd.Execute()
}
