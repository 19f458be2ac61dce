package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/kalambet/quill/internal/config"
	"github.com/kalambet/quill/internal/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show quill status and style profile summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		showStatus(cmd.Context(), cfg, client)
		return nil
	},
}

type statusSummary struct {
	Training struct {
		SamplesAnalyzed int     `json:"samplesAnalyzed"`
		Confidence      float64 `json:"confidence"`
	} `json:"training"`
	StyleTags struct {
		Tone string `json:"tone"`
	} `json:"styleTags"`
}

// showStatus prints what it can reach. Sections whose request fails are
// skipped rather than failing the whole command.
func showStatus(ctx context.Context, cfg config.Config, client *apiClient) {
	defer printStatus("Data dir", "%s", cfg.Storage.DataDir)

	resp, err := client.get(ctx, "/health")
	if err != nil {
		printStatus("Server", "stopped")
		return
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		return
	}
	printStatus("Server", "running on port %d", cfg.Server.Port)

	if cfg.Proxy.OpenRouterAPIKey != "" {
		printStatus("Model", "%s", cfg.Proxy.DefaultModel)
	} else {
		printStatus("Model", "fallback only (no API key)")
	}

	var summary statusSummary
	if getJSON(ctx, client, "/style/profile", &summary) {
		printStatus("Samples trained", "%d", summary.Training.SamplesAnalyzed)
		printStatus("Confidence", "%.0f%%", summary.Training.Confidence)
		printStatus("Tone", "%s", summary.StyleTags.Tone)
	}

	var samples []sampleView
	if getJSON(ctx, client, fmt.Sprintf("/samples?limit=%d", cfg.Style.MaxSamples), &samples) {
		printStatus("Samples stored", "%s", countLabel(len(samples), cfg.Style.MaxSamples))
	}

	var queue storage.JobStats
	if getJSON(ctx, client, "/style/training", &queue) && queue.Pending+queue.Running > 0 {
		printStatus("Training", "%d queued", queue.Pending+queue.Running)
	}
}

func getJSON(ctx context.Context, client *apiClient, path string, v any) bool {
	resp, err := client.get(ctx, path)
	if err != nil {
		return false
	}
	return decodeJSON(resp, v) == nil
}

func countLabel(count, limit int) string {
	if limit > 0 && count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
