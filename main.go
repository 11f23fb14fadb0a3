package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zheng/assetgraph/cmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "assetgraph",
		Short: "Unity asset reference graph - find what keeps an asset loaded",
		Long: `assetgraph extracts every object and reference from a directory of Unity
containers into a SQLite database, then answers which chain of references
keeps a given object alive.`,
	}

	cmd.RegisterCommands(rootCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
