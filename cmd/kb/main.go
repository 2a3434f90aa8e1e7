package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jbrcoleman/bedrock-vector-search/internal/adapters/driven/config/file"
	"github.com/jbrcoleman/bedrock-vector-search/internal/adapters/driving/cli"
)

func main() {
	if err := file.LoadEnv(file.DefaultEnvFiles()...); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
