package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	wetwire "github.com/lex00/wetwire-lambda-go"
	"github.com/lex00/wetwire-lambda-go/internal/differ"
	"github.com/lex00/wetwire-lambda-go/internal/stack"
	"github.com/lex00/wetwire-lambda-go/internal/synth"
	"github.com/lex00/wetwire-lambda-go/internal/template"
)

// newWatchCmd creates the "watch" subcommand for re-synthesizing on changes.
func newWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch [stack.yaml]",
		Short: "Re-synthesize on source or stack changes",
		Long: `Watch monitors the stack file and every function source tree and
re-synthesizes when they change.

The watch command:
- Monitors the stack file and source directories recursively
- Debounces rapid changes to avoid excessive rebuilds
- Reports what changed in the template since the previous run

Examples:
    wetwire-lambda watch
    wetwire-lambda watch stack.yaml -o template.json
    wetwire-lambda watch stack.yaml --debounce 1s`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.debounce, "debounce", 500*time.Millisecond, "Debounce duration for rapid changes")
	cmd.Flags().StringVarP(&opts.outputFormat, "format", "f", "json", "Output format: json or yaml")
	cmd.Flags().StringVarP(&opts.outputFile, "output", "o", "", "Output file (default: report only)")

	return cmd
}

type watchOptions struct {
	debounce     time.Duration
	outputFormat string
	outputFile   string
}

// runWatch monitors the stack and re-synthesizes on changes.
func runWatch(cmd *cobra.Command, args []string, opts watchOptions) error {
	sess, err := newSession(cmd, args)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	b, closeFn, err := sess.bundler(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	stackFile, err := filepath.Abs(sess.path)
	if err != nil {
		return err
	}
	// Editors replace files on save, so the stack file is watched through
	// its directory.
	if err := watcher.Add(filepath.Dir(stackFile)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", stackFile, err)
	}
	watched := map[string]bool{}
	var sources []string
	watchSources := func(s *stack.Stack) {
		sources = s.SourceDirs()
		for _, dir := range sources {
			if watched[dir] {
				continue
			}
			if err := addDirRecursive(watcher, dir); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to watch %s: %v\n", dir, err)
				continue
			}
			watched[dir] = true
			fmt.Printf("Watching: %s\n", dir)
		}
	}
	watchSources(sess.stack)

	var previous *wetwire.Template
	rebuild := func() {
		s, err := stack.Load(sess.path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Stack error: %v\n", err)
			return
		}
		watchSources(s)
		tmpl, err := watchSynth(ctx, s, sess, b, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Synthesis error: %v\n", err)
			return
		}
		reportChanges(previous, tmpl)
		previous = tmpl
	}

	fmt.Println("Running initial synthesis...")
	rebuild()

	var debounceTimer *time.Timer
	rebuildChan := make(chan struct{}, 1)

	fmt.Println("\nWatching for changes... (Ctrl+C to stop)")

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event, stackFile, opts.outputFile, sources) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = addDirRecursive(watcher, event.Name)
				}
			}

			// Debounce: reset timer on each change
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(opts.debounce, func() {
				select {
				case rebuildChan <- struct{}{}:
				default:
				}
			})

		case <-rebuildChan:
			fmt.Printf("\n[%s] Change detected, re-synthesizing...\n", time.Now().Format("15:04:05"))
			rebuild()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)

		case <-ctx.Done():
			fmt.Println("\nStopping watch...")
			return nil
		}
	}
}

// relevant reports whether event should trigger a rebuild. Events in the
// stack file's directory only count for the stack file itself, unless that
// directory is also a function source.
func relevant(event fsnotify.Event, stackFile, outputFile string, sources []string) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	if outputFile != "" {
		if out, err := filepath.Abs(outputFile); err == nil && out == name {
			return false
		}
	}
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") {
		return false
	}
	if filepath.Dir(name) == filepath.Dir(stackFile) && name != stackFile {
		return inSource(name, sources)
	}
	return true
}

func inSource(name string, sources []string) bool {
	for _, dir := range sources {
		abs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(abs, name)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// addDirRecursive adds a directory and all subdirectories to the watcher.
func addDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if path != dir && (strings.HasPrefix(base, ".") || base == "__pycache__" || base == "node_modules") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func watchSynth(ctx context.Context, s *stack.Stack, sess *session, b synth.Bundler, opts watchOptions) (*wetwire.Template, error) {
	res, err := synth.Run(ctx, s, sess.synthOptions(b))
	if err != nil {
		return nil, err
	}
	defer sess.discardArtifacts(res)
	tmpl, err := template.Render(res.Graph, template.Options{
		Description: s.Description,
		AssetBucket: sess.cfg.AssetBucket,
	})
	if err != nil {
		return nil, err
	}
	if opts.outputFile != "" {
		data, err := encodeTemplate(tmpl, opts.outputFormat)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(opts.outputFile, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write output: %w", err)
		}
		fmt.Printf("Synthesis successful, wrote %s\n", opts.outputFile)
	} else {
		fmt.Println("Synthesis successful")
	}
	fmt.Printf("Generated %d resources\n", res.Graph.Len())
	return tmpl, nil
}

// reportChanges prints what changed between two consecutive templates.
func reportChanges(previous, current *wetwire.Template) {
	if previous == nil {
		return
	}
	result, err := differ.Compare(previous, current, differ.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Diff error: %v\n", err)
		return
	}
	if result.Summary.IsEmpty() {
		fmt.Println("Template unchanged")
		return
	}
	printDiff(os.Stdout, result)
}
