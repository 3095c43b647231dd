// Package cli implements the pdfchat command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgallion1/pdfchat/internal/app"
	"github.com/dgallion1/pdfchat/internal/config"
	"github.com/dgallion1/pdfchat/internal/document"
	"github.com/dgallion1/pdfchat/internal/pipeline"
	"github.com/spf13/cobra"
)

// Builder constructs the orchestrator a command runs against.
type Builder func(log *slog.Logger) (*pipeline.Orchestrator, error)

// DefaultBuilder wires the orchestrator from .env, PDFCHAT_CONFIG and the
// environment.
func DefaultBuilder(log *slog.Logger) (*pipeline.Orchestrator, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	orch, _, err := app.New(cfg, log)
	return orch, err
}

type rootOptions struct {
	file    string
	verbose bool
	build   Builder
}

// NewRootCmd returns the pdfchat command tree.
func NewRootCmd(build Builder) *cobra.Command {
	opts := &rootOptions{build: build}
	root := &cobra.Command{
		Use:           "pdfchat",
		Short:         "Ask questions about a document",
		Long:          "pdfchat indexes one document and answers questions about it with a tool-calling agent.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.file, "file", "f", "", "document to load (pdf, docx, md, html, txt)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline progress to stderr")

	root.AddCommand(newAskCmd(opts), newChatCmd(opts), newSearchCmd(opts))
	return root
}

// load builds the orchestrator and ingests --file.
func (o *rootOptions) load(cmd *cobra.Command) (*pipeline.Orchestrator, error) {
	if o.file == "" {
		return nil, fmt.Errorf("--file is required")
	}
	data, err := os.ReadFile(o.file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", o.file, err)
	}

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	orch, err := o.build(log)
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	info, err := orch.Ingest(ctx, document.Document{Filename: filepath.Base(o.file), Data: data})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", o.file, err)
	}
	log.Info("document loaded", "pages", info.Pages, "passages", info.Passages, "session_id", info.ID)
	return orch, nil
}
