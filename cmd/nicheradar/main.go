package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "nicheradar",
		Short: "Discover and rank under-served YouTube niches by opportunity",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(discoverCmd())
	root.AddCommand(nichesCmd())
	root.AddCommand(trendCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func discoverCmd() *cobra.Command {
	var (
		seeds      []string
		target     int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Run a discovery pass over seed keywords or channel refs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(seeds, target, jsonOutput)
		},
	}

	cmd.Flags().StringSliceVar(&seeds, "seed", nil, "seed keywords or channel refs (e.g. 'cooking tutorials', @veritasium)")
	cmd.Flags().IntVar(&target, "target", 0, "max candidates to discover (default: from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func nichesCmd() *cobra.Command {
	var (
		jsonOutput bool
		minScore   float64
		limit      int
		all        bool
	)

	cmd := &cobra.Command{
		Use:   "niches",
		Short: "Show ranked niches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNiches(jsonOutput, minScore, limit, all)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "minimum overall score")
	cmd.Flags().IntVar(&limit, "limit", 20, "max niches to show")
	cmd.Flags().BoolVar(&all, "all", false, "include deactivated niches")
	return cmd
}

func trendCmd() *cobra.Command {
	var (
		window     int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "trend <niche-id>",
		Short: "Show the trailing trend series for a niche",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrend(args[0], window, jsonOutput)
		},
	}

	cmd.Flags().IntVar(&window, "window", 0, "trailing window in scoring passes (default: from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with discovery scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
