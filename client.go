package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aldehir/cache-service/types"
	"github.com/aldehir/cache-service/ui"
)

// Client talks to a running cache service.
type Client struct {
	BaseURL string
	client  *http.Client
}

// APIError is a non-2xx reply from the service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

func NewClient(baseURL string) *Client {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Add(ctx context.Context, rec types.Record) (string, error) {
	return c.doText(ctx, http.MethodPost, "/cache/add", rec)
}

func (c *Client) Remove(ctx context.Context, rec types.Record) (string, error) {
	return c.doText(ctx, http.MethodDelete, "/cache/remove", rec)
}

func (c *Client) RemoveAll(ctx context.Context) (string, error) {
	return c.doText(ctx, http.MethodDelete, "/cache/removeAll", nil)
}

func (c *Client) Clear(ctx context.Context) (string, error) {
	return c.doText(ctx, http.MethodDelete, "/cache/clear", nil)
}

func (c *Client) Get(ctx context.Context, id int64) (types.Record, error) {
	var rec types.Record
	body, err := c.do(ctx, http.MethodGet, "/cache/get/"+strconv.FormatInt(id, 10), nil)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(body, &rec); err != nil {
		return rec, fmt.Errorf("failed to decode record: %w", err)
	}
	return rec, nil
}

func (c *Client) Stats(ctx context.Context) (StatsResponse, error) {
	var stats StatsResponse
	body, err := c.do(ctx, http.MethodGet, "/cache/stats", nil)
	if err != nil {
		return stats, err
	}
	if err := json.Unmarshal(body, &stats); err != nil {
		return stats, fmt.Errorf("failed to decode stats: %w", err)
	}
	return stats, nil
}

func (c *Client) doText(ctx context.Context, method, path string, payload any) (string, error) {
	body, err := c.do(ctx, method, path, payload)
	return string(body), err
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var errResp ErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
			apiErr.Message = errResp.Message
		}
		return nil, apiErr
	}

	return body, nil
}

var (
	serverAddr string
	noColor    bool
)

func newRenderer(cmd *cobra.Command) *ui.Renderer {
	return ui.NewRenderer(
		ui.WithOutput(cmd.OutOrStdout()),
		ui.WithError(cmd.ErrOrStderr()),
		ui.WithNoColor(noColor || os.Getenv("NO_COLOR") != ""),
	)
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: must be an integer", arg)
	}
	return id, nil
}

func addClientCommands(root *cobra.Command) {
	root.PersistentFlags().StringVarP(&serverAddr, "addr", "a", "localhost:8080", "Address of the cache service")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	addCmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Add a record to the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			name, _ := cmd.Flags().GetString("name")
			salary, _ := cmd.Flags().GetFloat64("salary")

			msg, err := NewClient(serverAddr).Add(cmd.Context(), types.Record{ID: id, Name: name, Salary: salary})
			if err != nil {
				return err
			}
			newRenderer(cmd).Success(msg)
			return nil
		},
	}
	addCmd.Flags().String("name", "", "Record name")
	addCmd.Flags().Float64("salary", 0, "Record salary")

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Fetch a record from the cache or the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			rec, err := NewClient(serverAddr).Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			newRenderer(cmd).Record(rec)
			return nil
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a record from the cache and the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			msg, err := NewClient(serverAddr).Remove(cmd.Context(), types.Record{ID: id})
			if err != nil {
				return err
			}
			newRenderer(cmd).Success(msg)
			return nil
		},
	}

	removeAllCmd := &cobra.Command{
		Use:   "remove-all",
		Short: "Remove every record from the cache and the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := NewClient(serverAddr).RemoveAll(cmd.Context())
			if err != nil {
				return err
			}
			newRenderer(cmd).Success(msg)
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cache without touching the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := NewClient(serverAddr).Clear(cmd.Context())
			if err != nil {
				return err
			}
			newRenderer(cmd).Success(msg)
			return nil
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache counters and the cached ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := NewClient(serverAddr).Stats(cmd.Context())
			if err != nil {
				return err
			}
			newRenderer(cmd).Stats(stats.Stats, stats.Keys)
			return nil
		},
	}

	root.AddCommand(addCmd, getCmd, removeCmd, removeAllCmd, clearCmd, statsCmd)
}
