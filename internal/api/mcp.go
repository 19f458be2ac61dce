package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/quill/internal/profile"
	"github.com/kalambet/quill/internal/style"
)

// NewMCPServer creates an MCP server with all quill tools and resources registered.
func NewMCPServer(deps Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"quill",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("quill learns the user's writing style from samples and renders it as a prompt prefix."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("add_sample",
			mcp.WithDescription("Add a writing sample written by the user to the style training set."),
			mcp.WithString("text", mcp.Description("The sample text"), mcp.Required()),
			mcp.WithString("source", mcp.Description(`"manual" (default) or "note"`)),
		),
		mcpAddSample(deps),
	)

	s.AddTool(
		mcp.NewTool("train_style",
			mcp.WithDescription("Fold all untrained writing samples into the style profile now."),
		),
		mcpTrainStyle(deps),
	)

	s.AddTool(
		mcp.NewTool("analyze_style",
			mcp.WithDescription("Analyze texts and return their style metrics without changing the profile."),
			mcp.WithArray("samples", mcp.Description("Texts to analyze"), mcp.Required()),
		),
		mcpAnalyzeStyle(),
	)

	s.AddTool(
		mcp.NewTool("get_style_prompt",
			mcp.WithDescription("Return the instruction block describing the user's writing style."),
		),
		mcpGetStylePrompt(deps),
	)

	s.AddTool(
		mcp.NewTool("set_override",
			mcp.WithDescription("Pin a style tag or set custom instructions. An empty value clears a tag pin."),
			mcp.WithString("field", mcp.Description("tone, structure, verbosity or customInstructions"), mcp.Required()),
			mcp.WithString("value", mcp.Description("New value")),
		),
		mcpSetOverride(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"style://profile",
			"Style Profile",
			mcp.WithResourceDescription("Current writing-style profile as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfile(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"style://prompt",
			"Style Prompt",
			mcp.WithResourceDescription("Instruction block prepended to generation requests"),
			mcp.WithMIMEType("text/plain"),
		),
		mcpResourcePrompt(deps),
	)

	return s
}

func mcpAddSample(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		res, err := addSample(deps, text, req.GetString("source", ""))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to add sample: %v", err)), nil
		}

		msg := fmt.Sprintf("Stored sample %s (%d words)", res.Sample.ID, res.Sample.WordCount)
		if res.Redacted {
			msg += "; secrets were redacted"
		}
		if res.TrainScheduled {
			msg += "; training scheduled"
		}
		return mcpText(msg), nil
	}
}

func mcpTrainStyle(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := deps.Trainer.TrainPending(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("training failed: %v", err)), nil
		}
		if res.Skipped {
			return mcpText("No untrained samples."), nil
		}
		return mcpText(fmt.Sprintf("Trained on %d samples (%d tokens). Confidence is now %.0f.",
			res.Samples, res.Tokens, res.Profile.Training.Confidence)), nil
	}
}

func mcpAnalyzeStyle() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		samples := req.GetStringSlice("samples", nil)
		if len(samples) == 0 {
			return mcpError("samples must be a non-empty array of strings"), nil
		}
		if len(samples) > maxAnalyzeSamples {
			return mcpError(fmt.Sprintf("at most %d samples may be analyzed at once", maxAnalyzeSamples)), nil
		}

		b, err := json.Marshal(style.Analyze(samples, time.Now().UTC()))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal analysis: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetStylePrompt(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, err := deps.Profile.StylePrompt()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to build prompt: %v", err)), nil
		}
		return mcpText(prompt), nil
	}
}

func mcpSetOverride(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		field, err := req.RequireString("field")
		if err != nil {
			return mcpError("field is required"), nil
		}
		value := req.GetString("value", "")

		var patch profile.OverridesPatch
		switch field {
		case "tone":
			patch.Tone = &value
		case "structure":
			patch.Structure = &value
		case "verbosity":
			patch.Verbosity = &value
		case "customInstructions":
			patch.CustomInstructions = &value
		default:
			return mcpError(fmt.Sprintf("unknown override field %q", field)), nil
		}

		if _, err := deps.Profile.UpdateOverrides(patch); err != nil {
			return mcpError(fmt.Sprintf("failed to set override: %v", err)), nil
		}
		if value == "" {
			return mcpText(fmt.Sprintf("Cleared %s", field)), nil
		}
		return mcpText(fmt.Sprintf("Set %s = %s", field, value)), nil
	}
}

func mcpResourceProfile(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		p, err := deps.Profile.GetProfile()
		if err != nil {
			return nil, fmt.Errorf("failed to get profile: %w", err)
		}

		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourcePrompt(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		prompt, err := deps.Profile.StylePrompt()
		if err != nil {
			return nil, fmt.Errorf("failed to build prompt: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "text/plain",
				Text:     prompt,
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
