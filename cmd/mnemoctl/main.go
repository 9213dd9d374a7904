package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	apiFlag  string
	userFlag string
	rootCmd  = &cobra.Command{
		Use:   "mnemoctl",
		Short: "CLI client for the mnemo memory service REST API",
	}
)

func requireUser() error {
	if userFlag == "" {
		return fmt.Errorf("--user required")
	}
	return nil
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:8080", "mnemo service base URL")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "User ID")

	rememberCmd := &cobra.Command{
		Use:   "remember <message>",
		Short: "Extract facts from a message and store them as memories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			return newClient(apiFlag).remember(os.Stdout, userFlag, args[0])
		},
	}
	rootCmd.AddCommand(rememberCmd)

	forgetCmd := &cobra.Command{
		Use:   "forget <message>",
		Short: "Extract deletion facts from a message and remove the matching memories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			return newClient(apiFlag).forget(os.Stdout, userFlag, args[0])
		},
	}
	rootCmd.AddCommand(forgetCmd)

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search memories by semantic similarity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			topN, _ := cmd.Flags().GetInt("topn")
			return newClient(apiFlag).search(os.Stdout, userFlag, args[0], topN)
		},
	}
	searchCmd.Flags().IntP("topn", "n", 5, "Number of results to return")
	rootCmd.AddCommand(searchCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List active memories, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			return newClient(apiFlag).list(os.Stdout, userFlag, limit)
		},
	}
	listCmd.Flags().IntP("limit", "l", 0, "Maximum number of memories to list (0 = all)")
	rootCmd.AddCommand(listCmd)

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show memory stats and recent memories for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			return newClient(apiFlag).stats(os.Stdout, userFlag)
		},
	}
	rootCmd.AddCommand(statsCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(apiFlag).status(os.Stdout)
		},
	}
	rootCmd.AddCommand(statusCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
