package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/kalambet/quill/internal/extract"
	"github.com/kalambet/quill/internal/storage"
)

// noteQuiet is how long a file must stay unchanged before it is submitted.
// Editors usually write a file several times per save.
const noteQuiet = 750 * time.Millisecond

var ignoreDirs = map[string]bool{
	".git":         true,
	".obsidian":    true,
	".trash":       true,
	"node_modules": true,
}

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Add notes written under a directory as samples",
	Long: `Watch a notes directory and add every .md or .txt file that is
created or saved there as a "note" sample. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		submit := func(ctx context.Context, path, text string) error {
			res, err := addSample(ctx, client, text, storage.SourceNote)
			if err != nil {
				return err
			}
			printSuccess("Added %s as note %s", filepath.Base(path), shortID(res.Sample.ID))
			return nil
		}

		w, err := newNoteWatcher(args[0], noteQuiet, submit)
		if err != nil {
			return err
		}
		printStep("Watching %s (Ctrl-C to stop)", args[0])
		return w.Run(ctx)
	},
}

type submitFunc func(ctx context.Context, path, text string) error

// noteWatcher recursively watches a directory and submits note files once
// they have been quiet for a while. Unchanged content is not resubmitted.
type noteWatcher struct {
	root   string
	quiet  time.Duration
	submit submitFunc
	fw     *fsnotify.Watcher

	mu      sync.Mutex
	timers  map[string]*time.Timer
	content map[string]string
}

func newNoteWatcher(root string, quiet time.Duration, submit submitFunc) (*noteWatcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	w := &noteWatcher{
		root:    abs,
		quiet:   quiet,
		submit:  submit,
		fw:      fw,
		timers:  make(map[string]*time.Timer),
		content: make(map[string]string),
	}
	if err := w.addTree(abs); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *noteWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && ignoreDirs[d.Name()] {
			return filepath.SkipDir
		}
		return w.fw.Add(path)
	})
}

// Run processes events until ctx is cancelled.
func (w *noteWatcher) Run(ctx context.Context) error {
	defer w.close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)
		}
	}
}

func (w *noteWatcher) handle(ctx context.Context, ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !ignoreDirs[info.Name()] {
				if err := w.addTree(ev.Name); err != nil {
					slog.Warn("watching new directory failed", "path", ev.Name, "error", err)
				}
			}
			return
		}
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	if !isNoteFile(ev.Name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[ev.Name]; ok {
		t.Reset(w.quiet)
		return
	}
	path := ev.Name
	w.timers[path] = time.AfterFunc(w.quiet, func() { w.flush(ctx, path) })
}

func (w *noteWatcher) flush(ctx context.Context, path string) {
	w.mu.Lock()
	delete(w.timers, path)
	w.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Debug("note vanished before submit", "path", path, "error", err)
		return
	}
	text, err := extract.Text(path, data)
	if err != nil || text == "" {
		return
	}

	w.mu.Lock()
	same := w.content[path] == text
	w.mu.Unlock()
	if same {
		return
	}

	if err := w.submit(ctx, path, text); err != nil {
		slog.Warn("submitting note failed", "path", path, "error", err)
		return
	}
	w.mu.Lock()
	w.content[path] = text
	w.mu.Unlock()
}

func (w *noteWatcher) close() {
	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()
	w.fw.Close()
}

func isNoteFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".md", ".markdown", ".txt":
		return true
	}
	return false
}
