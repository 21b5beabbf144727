package main

import (
	"context"
	"fmt"
	"os"

	"github.com/danmuck/bondx/internal/logging"
)

func main() {
	logging.ConfigureRuntime()
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "bondx: %v\n", err)
		os.Exit(1)
	}
}
