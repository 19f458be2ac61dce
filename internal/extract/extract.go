// Package extract turns files handed to quill (plain text, Markdown, HTML,
// PDF) into sample text, and scrubs obvious secrets before it is stored.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

// MaxTextSize caps the text kept from a single file (1MB).
const MaxTextSize = 1024 * 1024

// ErrUnsupported is returned for file types quill cannot read text from.
var ErrUnsupported = errors.New("unsupported file type")

// Document is the text extracted from one file.
type Document struct {
	Path string
	Text string
}

// Kind classifies a file by extension, falling back to content sniffing.
func Kind(name string, data []byte) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".markdown", ".text", "":
		if bytes.HasPrefix(data, []byte("%PDF-")) {
			return "pdf"
		}
		return "text"
	case ".html", ".htm":
		return "html"
	case ".pdf":
		return "pdf"
	}
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return "pdf"
	}
	return ""
}

// Text extracts readable text from data. name is only used to pick a reader.
func Text(name string, data []byte) (string, error) {
	var text string
	var err error
	switch Kind(name, data) {
	case "text":
		if !utf8.Valid(data) {
			data = bytes.ToValidUTF8(data, []byte("�"))
		}
		text = strings.ReplaceAll(string(data), "\r\n", "\n")
	case "html":
		text, err = htmlText(data)
	case "pdf":
		text, err = pdfText(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(name))
	}
	if err != nil {
		return "", err
	}
	return truncate(strings.TrimSpace(text), MaxTextSize), nil
}

// Files reads and extracts every path concurrently. Results keep the input
// order; the first failure cancels the rest.
func Files(ctx context.Context, paths []string) ([]Document, error) {
	docs := make([]Document, len(paths))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i, path := range paths {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			text, err := Text(path, data)
			if err != nil {
				return fmt.Errorf("extracting %s: %w", path, err)
			}
			docs[i] = Document{Path: path, Text: text}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	end := max
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[:end]
}
