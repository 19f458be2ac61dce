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

	"github.com/kalambet/quill/internal/config"
	"github.com/kalambet/quill/internal/extract"
	"github.com/kalambet/quill/internal/storage"
	"github.com/kalambet/quill/internal/style"
)

// --- samples ---

type sampleView struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Source    string     `json:"source"`
	AddedAt   time.Time  `json:"addedAt"`
	WordCount int        `json:"wordCount"`
	TrainedAt *time.Time `json:"trainedAt,omitempty"`
}

type addSampleResult struct {
	Sample         sampleView `json:"sample"`
	Redacted       bool       `json:"redacted"`
	Pruned         int64      `json:"pruned"`
	TrainScheduled bool       `json:"trainScheduled"`
}

var samplesCmd = &cobra.Command{
	Use:   "samples",
	Short: "Manage writing samples",
}

var samplesAddCmd = &cobra.Command{
	Use:   "add [text]",
	Short: "Add a writing sample",
	Long: `Add a writing sample to the training list.

Examples:
  quill samples add "Thanks for the update, I'll review it tomorrow."
  quill samples add --file ./draft.md
  quill samples add --file ./meeting.txt --source note`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		source, _ := cmd.Flags().GetString("source")

		text := strings.Join(args, " ")
		if file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			text, err = extract.Text(file, data)
			if err != nil {
				return err
			}
		}
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("sample text or --file is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		res, err := addSample(cmd.Context(), client, text, source)
		if err != nil {
			return err
		}
		reportAdded(res)
		return nil
	},
}

func addSample(ctx context.Context, client *apiClient, text, source string) (addSampleResult, error) {
	resp, err := client.post(ctx, "/samples", map[string]string{"text": text, "source": source})
	if err != nil {
		return addSampleResult{}, err
	}
	var res addSampleResult
	if err := decodeJSON(resp, &res); err != nil {
		return addSampleResult{}, err
	}
	return res, nil
}

func reportAdded(res addSampleResult) {
	printSuccess("Added sample %s (%d words)", shortID(res.Sample.ID), res.Sample.WordCount)
	if res.Redacted {
		printWarning("Secrets were redacted before storing")
	}
	if res.Pruned > 0 {
		printStep("Pruned %d oldest samples", res.Pruned)
	}
	if res.TrainScheduled {
		printStep("Training scheduled")
	}
}

var samplesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored samples, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return listSamples(cmd.Context(), client, limit, dataOut)
	},
}

func listSamples(ctx context.Context, client *apiClient, limit int, w io.Writer) error {
	resp, err := client.get(ctx, fmt.Sprintf("/samples?limit=%d", limit))
	if err != nil {
		return err
	}
	var samples []sampleView
	if err := decodeJSON(resp, &samples); err != nil {
		return err
	}

	if len(samples) == 0 {
		fmt.Fprintln(w, "No samples stored.")
		return nil
	}
	for _, s := range samples {
		state := "pending"
		if s.TrainedAt != nil {
			state = "trained"
		}
		fmt.Fprintf(w, "%s  %s  %-6s  %-7s  %s\n",
			colorize(colorCyan, shortID(s.ID)),
			s.AddedAt.Local().Format("2006-01-02 15:04"),
			s.Source,
			state,
			preview(s.Text, 60),
		)
	}
	return nil
}

var samplesRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a sample",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/samples/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Deleted sample %s", args[0])
		return nil
	},
}

func init() {
	samplesAddCmd.Flags().String("file", "", "read the sample from a text, markdown, HTML or PDF file")
	samplesAddCmd.Flags().String("source", "manual", "sample source: manual or note")
	samplesListCmd.Flags().Int("limit", 20, "maximum number of samples to list")
	samplesCmd.AddCommand(samplesAddCmd, samplesListCmd, samplesRmCmd)
}

// --- train ---

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the style profile on pending samples now",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if status, _ := cmd.Flags().GetBool("status"); status {
			return showTrainingStatus(cmd.Context(), client)
		}
		resp, err := client.post(cmd.Context(), "/style/train", nil)
		if err != nil {
			return err
		}
		var res struct {
			Samples int  `json:"samples"`
			Deleted int  `json:"deleted"`
			Skipped bool `json:"skipped"`
			Profile struct {
				Training struct {
					Confidence float64 `json:"confidence"`
				} `json:"training"`
			} `json:"profile"`
		}
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		if res.Skipped {
			printWarning("No pending samples to train on")
			return nil
		}
		printSuccess("Trained on %d samples (confidence %.0f%%)", res.Samples, res.Profile.Training.Confidence)
		if res.Deleted > 0 {
			printStep("Privacy mode removed %d trained samples", res.Deleted)
		}
		return nil
	},
}

func showTrainingStatus(ctx context.Context, client *apiClient) error {
	resp, err := client.get(ctx, "/style/training")
	if err != nil {
		return err
	}
	var st storage.JobStats
	if err := decodeJSON(resp, &st); err != nil {
		return err
	}
	printStatus("Pending", "%d", st.Pending)
	printStatus("Running", "%d", st.Running)
	printStatus("Failed", "%d", st.Failed)
	if st.LastRunAt != nil {
		printStatus("Last run", "%s", st.LastRunAt.Local().Format(time.DateTime))
	} else {
		printStatus("Last run", "never")
	}
	if st.LastError != "" {
		printWarning("Last error: %s", st.LastError)
	}
	return nil
}

func init() {
	trainCmd.Flags().Bool("status", false, "show the training queue instead of training")
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect and manage the style profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current profile as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/style/profile")
		if err != nil {
			return err
		}
		var p any
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		return printJSON(p)
	},
}

var profileResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the profile to defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This discards everything the profile has learned. Use --confirm to proceed.")
			return nil
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/style/reset", nil)
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Profile reset")
		return nil
	},
}

var profileExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the profile as JSON or YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		data, err := exportProfile(cmd.Context(), client, format)
		if err != nil {
			return err
		}
		if output == "" {
			_, err := dataOut.Write(data)
			return err
		}
		if err := os.WriteFile(output, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", output, err)
		}
		printSuccess("Profile exported to %s", output)
		return nil
	},
}

func exportProfile(ctx context.Context, client *apiClient, format string) ([]byte, error) {
	resp, err := client.get(ctx, "/style/export?format="+url.QueryEscape(format))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, decodeJSON(resp, nil)
	}
	return io.ReadAll(resp.Body)
}

var profileImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the profile with an exported JSON profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.send(cmd.Context(), http.MethodPost, "/style/import", "application/json", bytes.NewReader(data))
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Profile imported from %s", args[0])
		return nil
	},
}

func init() {
	profileResetCmd.Flags().Bool("confirm", false, "confirm the reset")
	profileExportCmd.Flags().String("format", "json", "export format: json or yaml")
	profileExportCmd.Flags().String("output", "", "output file path (default: stdout)")
	profileCmd.AddCommand(profileShowCmd, profileResetCmd, profileExportCmd, profileImportCmd)
}

// --- override ---

var overrideFields = map[string]string{
	"tone":         "tone",
	"structure":    "structure",
	"verbosity":    "verbosity",
	"instructions": "customInstructions",
	"prefer":       "preferredPhrases",
	"avoid":        "avoidedPhrases",
}

var overrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Pin style tags and instructions",
	Long: `Pin style tags and instructions that win over the learned profile.

Fields: tone, structure, verbosity, instructions, prefer, avoid.
prefer and avoid take a comma-separated phrase list.

Examples:
  quill override set tone formal
  quill override set prefer "cheers, talk soon"
  quill override clear tone`,
}

var overrideSetCmd = &cobra.Command{
	Use:   "set <field> <value>",
	Short: "Set an override",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := overridePatch(args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		if err := patchOverrides(cmd.Context(), patch); err != nil {
			return err
		}
		printSuccess("Set %s", args[0])
		return nil
	},
}

var overrideClearCmd = &cobra.Command{
	Use:   "clear <field>",
	Short: "Clear an override",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := overridePatch(args[0], "")
		if err != nil {
			return err
		}
		if err := patchOverrides(cmd.Context(), patch); err != nil {
			return err
		}
		printSuccess("Cleared %s", args[0])
		return nil
	},
}

// overridePatch builds the PATCH body for one field. Phrase lists are split
// on commas; an empty value clears the field.
func overridePatch(field, value string) (map[string]any, error) {
	key, ok := overrideFields[field]
	if !ok {
		return nil, fmt.Errorf("unknown override field %q", field)
	}
	if key == "preferredPhrases" || key == "avoidedPhrases" {
		phrases := []string{}
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				phrases = append(phrases, p)
			}
		}
		return map[string]any{key: phrases}, nil
	}
	return map[string]any{key: value}, nil
}

func patchOverrides(ctx context.Context, patch map[string]any) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}
	resp, err := client.patch(ctx, "/style/overrides", patch)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil)
}

func init() {
	overrideCmd.AddCommand(overrideSetCmd, overrideClearCmd)
}

// --- prompt ---

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the style instructions injected into generation",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/style/prompt")
		if err != nil {
			return err
		}
		var res struct {
			Prompt string `json:"prompt"`
		}
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		fmt.Println(res.Prompt)
		return nil
	},
}

// --- analyze ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>...",
	Short: "Analyze files offline and print their style metrics",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return analyzeFiles(cmd.Context(), args, asJSON, dataOut)
	},
}

func analyzeFiles(ctx context.Context, paths []string, asJSON bool, w io.Writer) error {
	docs, err := extract.Files(ctx, paths)
	if err != nil {
		return err
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}

	a := style.Analyze(texts, time.Now())
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	}

	m := a.Metrics
	fmt.Fprintf(w, "%s %d samples, %d tokens\n", colorize(colorBold, "Analyzed:"), a.Training.SamplesAnalyzed, a.Training.TotalTokens)
	fmt.Fprintf(w, "  tone=%s structure=%s verbosity=%s\n", a.StyleTags.Tone, a.StyleTags.Structure, a.StyleTags.Verbosity)
	fmt.Fprintf(w, "  avg words per sentence: %.1f\n", m.AvgWordsPerSentence)
	fmt.Fprintf(w, "  formality: %.0f  brevity: %.0f\n", m.FormalityScore, m.BrevityScore)
	fmt.Fprintf(w, "  confidence: %.0f%%\n", a.Training.Confidence)
	return nil
}

// --- generate ---

var generateCmd = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Generate text in your style",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/generate", map[string]string{"prompt": strings.Join(args, " ")})
		if err != nil {
			return err
		}
		var res struct {
			Text     string `json:"text"`
			Fallback bool   `json:"fallback"`
			Reason   string `json:"reason"`
		}
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		fmt.Println(res.Text)
		if res.Fallback {
			printWarning("Fallback reply (%s)", res.Reason)
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorCyan, "("+k.EnvVar+")"))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			return err
		}
		printSuccess("Set %s = %s", key, value)
		printStep("Restart quill for the change to take effect")
		return nil
	},
}

var configSetAPIKeyCmd = &cobra.Command{
	Use:   "set-api-key <key>",
	Short: "Store the OpenRouter API key in the platform secret store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetAPIKey(config.NewKeychain(), args[0]); err != nil {
			return err
		}
		printSuccess("API key stored")
		return nil
	},
}

func init() {
	analyzeCmd.Flags().Bool("json", false, "print the full analysis as JSON")
	configCmd.AddCommand(configShowCmd, configSetCmd, configSetAPIKeyCmd)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func preview(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) > max {
		return string(r[:max]) + "..."
	}
	return text
}
