package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Youssef-Hossam5/Blog-app/pkg/blogapp"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := blogapp.Main(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "blogapp:", err)
		os.Exit(1)
	}
}
