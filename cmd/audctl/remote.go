package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/audienced/internal/store"
	"github.com/fyrsmithlabs/audienced/pkg/labels"
	"github.com/fyrsmithlabs/audienced/pkg/selection"
)

var listKind string

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check audienced server health",
	Long: `Check the health status of the audienced HTTP server.

Examples:
  audctl health
  audctl health --server http://localhost:9090`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return newClient(serverURL, apiToken).health(cmd.Context(), cmd.OutOrStdout())
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored selections",
	RunE: func(cmd *cobra.Command, args []string) error {
		return newClient(serverURL, apiToken).list(cmd.Context(), cmd.OutOrStdout(), listKind)
	},
}

var getCmd = &cobra.Command{
	Use:   "get <kind> <id>",
	Short: "Show a stored selection with its labels",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newClient(serverURL, apiToken).get(cmd.Context(), cmd.OutOrStdout(), store.Ref{Kind: args[0], ID: args[1]})
	},
}

var putCmd = &cobra.Command{
	Use:   "put <kind> <id> [selection.json]",
	Short: "Store the selection of a content item",
	Long: `Store a selection payload for a content item. The payload is read from
the file argument or stdin.

Examples:
  audctl put post 42 selection.json
  audctl pick --tree tree.json | audctl put post 42 -`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd, args[2:])
		if err != nil {
			return err
		}
		s, err := parseSelection(data)
		if err != nil {
			return err
		}
		return newClient(serverURL, apiToken).put(cmd.Context(), cmd.OutOrStdout(), store.Ref{Kind: args[0], ID: args[1]}, s)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <kind> <id>",
	Short: "Delete a stored selection",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newClient(serverURL, apiToken).delete(cmd.Context(), cmd.OutOrStdout(), store.Ref{Kind: args[0], ID: args[1]})
	},
}

func init() {
	listCmd.Flags().StringVar(&listKind, "kind", "", "only list this content kind")
}

// healthResponse matches internal/http HealthResponse.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// storedSelection matches internal/http StoredSelectionResponse.
type storedSelection struct {
	Ref             store.Ref       `json:"ref"`
	Selection       selection.State `json:"selection"`
	Labels          labels.Labels   `json:"labels"`
	Summary         string          `json:"summary"`
	TaxonomyVersion string          `json:"taxonomy_version"`
	Stale           bool            `json:"stale"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type listResponse struct {
	Selections []store.Ref `json:"selections"`
}

type client struct {
	baseURL string
	token   string
	http    *http.Client
}

func newClient(baseURL, token string) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// do sends body as JSON and decodes a 2xx response into out. Any other
// status is returned as an error carrying the response body.
func (c *client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	target := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, target, r)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, readErr := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func refPath(ref store.Ref) string {
	return "/api/v1/selections/" + url.PathEscape(ref.Kind) + "/" + url.PathEscape(ref.ID)
}

func (c *client) health(ctx context.Context, w io.Writer) error {
	var h healthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &h); err != nil {
		return err
	}
	fmt.Fprintf(w, "Server Status: %s\n", h.Status)
	if h.Version != "" {
		fmt.Fprintf(w, "Server Version: %s\n", h.Version)
	}
	fmt.Fprintf(w, "Server URL: %s\n", c.baseURL)
	return nil
}

func (c *client) list(ctx context.Context, w io.Writer, kind string) error {
	path := "/api/v1/selections"
	if kind != "" {
		path += "?kind=" + url.QueryEscape(kind)
	}
	var resp listResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return err
	}
	for _, ref := range resp.Selections {
		fmt.Fprintln(w, ref.String())
	}
	return nil
}

func (c *client) get(ctx context.Context, w io.Writer, ref store.Ref) error {
	var resp storedSelection
	if err := c.do(ctx, http.MethodGet, refPath(ref), nil, &resp); err != nil {
		return err
	}
	return writeJSON(w, resp)
}

func (c *client) put(ctx context.Context, w io.Writer, ref store.Ref, s selection.State) error {
	var resp storedSelection
	body := map[string]selection.State{"selection": s}
	if err := c.do(ctx, http.MethodPut, refPath(ref), body, &resp); err != nil {
		return err
	}
	fmt.Fprintf(w, "saved %s: %s\n", resp.Ref, resp.Summary)
	return nil
}

func (c *client) delete(ctx context.Context, w io.Writer, ref store.Ref) error {
	if err := c.do(ctx, http.MethodDelete, refPath(ref), nil, nil); err != nil {
		return err
	}
	fmt.Fprintf(w, "deleted %s\n", ref)
	return nil
}
