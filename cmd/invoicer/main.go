package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/andy/invoicer/internal/cli"
	"github.com/joho/godotenv"
)

func main() {
	// Secrets like OPENAI_API_KEY may live in a local .env file
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
