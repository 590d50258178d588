package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const (
	serverFlag   = "server"
	tokenFlag    = "token"
	providerFlag = "provider"
)

// apiClient talks to the admin API of one streamwatch instance.
type apiClient struct {
	base     string
	token    string
	provider string
	http     *http.Client
}

func clientFromFlags(cmd *cobra.Command) *apiClient {
	server, _ := cmd.Flags().GetString(serverFlag)
	token, _ := cmd.Flags().GetString(tokenFlag)
	provider, _ := cmd.Flags().GetString(providerFlag)
	return &apiClient{
		base:     strings.TrimRight(server, "/"),
		token:    token,
		provider: provider,
		http:     &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("X-Admin-Token", c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		return fmt.Errorf("%s %s: %s (HTTP %d)", method, path, apiErr.Error, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) streamersPath(name ...string) string {
	p := "/providers/" + url.PathEscape(c.provider) + "/streamers"
	if len(name) > 0 {
		p += "/" + url.PathEscape(name[0])
	}
	return p
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "streamwatchctl",
		Short:         "Manage streamwatch watchlists and check who is live",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	server := os.Getenv("STREAMWATCH_URL")
	if server == "" {
		server = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().String(serverFlag, server, "streamwatch admin API base URL (env STREAMWATCH_URL)")
	rootCmd.PersistentFlags().String(tokenFlag, os.Getenv("ADMIN_TOKEN"), "admin token sent as X-Admin-Token (env ADMIN_TOKEN)")
	rootCmd.PersistentFlags().StringP(providerFlag, "p", "twitch", "provider: twitch, kick or youtube")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "add NAME",
			Short: "Start watching a streamer",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c := clientFromFlags(cmd)
				var out struct {
					Added bool `json:"added"`
				}
				if err := c.do(cmd.Context(), http.MethodPost, c.streamersPath(), map[string]string{"name": args[0]}, &out); err != nil {
					return err
				}
				if out.Added {
					fmt.Fprintf(cmd.OutOrStdout(), "Added %s to the %s watchlist.\n", args[0], c.provider)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is already on the %s watchlist.\n", args[0], c.provider)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove NAME",
			Short: "Stop watching a streamer",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c := clientFromFlags(cmd)
				var out struct {
					Removed bool `json:"removed"`
				}
				if err := c.do(cmd.Context(), http.MethodDelete, c.streamersPath(args[0]), nil, &out); err != nil {
					return err
				}
				if out.Removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from the %s watchlist.\n", args[0], c.provider)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s was not on the %s watchlist.\n", args[0], c.provider)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List watched streamers",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c := clientFromFlags(cmd)
				var out struct {
					Streamers []string `json:"streamers"`
				}
				if err := c.do(cmd.Context(), http.MethodGet, c.streamersPath(), nil, &out); err != nil {
					return err
				}
				if len(out.Streamers) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No %s streamers are being watched.\n", c.provider)
					return nil
				}
				for _, name := range out.Streamers {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "check NAME",
			Short: "Check whether a streamer is live right now",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c := clientFromFlags(cmd)
				var out struct {
					Live     bool `json:"live"`
					Metadata *struct {
						Title       string `json:"title"`
						Category    string `json:"category"`
						ViewerCount int    `json:"viewer_count"`
					} `json:"metadata"`
				}
				if err := c.do(cmd.Context(), http.MethodGet, c.streamersPath(args[0])+"/live", nil, &out); err != nil {
					return err
				}
				if !out.Live {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is offline.\n", args[0])
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is LIVE.\n", args[0])
				if md := out.Metadata; md != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Title: %s\nCategory: %s\nViewers: %d\n", md.Title, md.Category, md.ViewerCount)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "live",
			Short: "List watched streamers that are live right now",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c := clientFromFlags(cmd)
				var out struct {
					Live []string `json:"live"`
				}
				if err := c.do(cmd.Context(), http.MethodGet, "/providers/"+url.PathEscape(c.provider)+"/live", nil, &out); err != nil {
					return err
				}
				if len(out.Live) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Nobody is live right now.")
					return nil
				}
				for _, name := range out.Live {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			},
		},
	)
	return rootCmd
}
