package main

import (
	"context"
	"fmt"
	"os"

	"github.com/irfndi/prism-dashboard-go/internal/cmd/server"
)

func main() {
	if err := server.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}
