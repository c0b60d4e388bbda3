// Package main implements the audctl CLI: offline tools over a taxonomy file
// and manual operations against the audienced HTTP server.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/audienced/pkg/selection"
)

var (
	// serverURL is the base URL for the audienced HTTP server
	serverURL string
	// apiToken authenticates write requests
	apiToken string
	// treePath is the taxonomy file for offline commands
	treePath string
	version  = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "audctl",
	Short: "CLI for audience taxonomies and the audienced server",
	Long: `audctl works with audience selections.

Offline commands (labels, check, pick) read a taxonomy file given by --tree.
Server commands (health, list, get, put, delete) talk to audienced.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8480", "audienced server URL")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", os.Getenv("AUDIENCED_API_TOKEN"), "API token for write requests")
	rootCmd.PersistentFlags().StringVar(&treePath, "tree", "", "taxonomy file (.json or .toml) for offline commands")

	rootCmd.AddCommand(labelsCmd, checkCmd, pickCmd)
	rootCmd.AddCommand(healthCmd, listCmd, getCmd, putCmd, deleteCmd)
}

// readInput reads a file argument, or stdin for "-" or no argument.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", args[0], err)
	}
	return data, nil
}

// parseSelection decodes a payload. Empty input is the empty selection.
func parseSelection(data []byte) (selection.State, error) {
	if len(data) == 0 {
		return selection.Empty(), nil
	}
	var s selection.State
	if err := json.Unmarshal(data, &s); err != nil {
		return selection.Empty(), fmt.Errorf("invalid selection: %w", err)
	}
	return s, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
