package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fintrack-dev/fintrack/internal/config"
	"github.com/fintrack-dev/fintrack/internal/importer"
	"github.com/fintrack-dev/fintrack/internal/logging"
	"github.com/fintrack-dev/fintrack/internal/model"
)

// maxListedFailures caps how many failed rows are printed per file.
const maxListedFailures = 10

type importOptions struct {
	user     string
	preset   string
	selected []int // nil means every row
	dryRun   bool
	verbose  bool
}

func newImportCommand() *cobra.Command {
	var opts importOptions
	var repoDir string

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import a statement, or every statement in the inbox",
		Long: "Import parses a statement, reports failed rows and commits the rest to the ledger.\n" +
			"Without a file argument every CSV in <repo>/import is imported and then moved to import/processed.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("select") && len(args) == 0 {
				return errors.New("--select requires a file argument")
			}

			absDir, err := filepath.Abs(repoDir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			var file string
			if len(args) > 0 {
				if file, err = filepath.Abs(args[0]); err != nil {
					return fmt.Errorf("resolving path: %w", err)
				}
			}
			return runImport(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), absDir, file, opts)
		},
	}

	cmd.Flags().StringVar(&opts.user, "user", "", "acting user id (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVar(&opts.preset, "preset", "", "column mapping preset (default: detect from header)")
	cmd.Flags().IntSliceVar(&opts.selected, "select", nil, "row indices to commit (default: all)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "preview without committing")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at the configured level instead of warn")
	cmd.Flags().StringVar(&repoDir, "repo", ".", "workspace directory")

	return cmd
}

func runImport(ctx context.Context, out, errOut io.Writer, repoRoot, file string, opts importOptions) error {
	if strings.TrimSpace(opts.user) == "" {
		return errors.New("--user must not be empty")
	}

	cfg, err := loadConfig(filepath.Join(repoRoot, config.FileName))
	if err != nil {
		return err
	}

	level := "warn"
	if opts.verbose {
		level = cfg.Log.Level
	}
	logger := logging.NewWithWriter(zerolog.ConsoleWriter{Out: errOut, NoColor: true}, level)
	ctx = logging.WithContext(ctx, logger)

	// Nothing outlives this process, so staged uploads never expire.
	a, err := newApp(ctx, repoRoot, cfg, logger, appOptions{commitLog: !opts.dryRun})
	if err != nil {
		return err
	}
	defer a.Close()

	var mapping *model.Mapping
	if opts.preset != "" {
		p := a.presets.Get(opts.preset)
		if p == nil {
			return fmt.Errorf("unknown preset %q (available: %s)", opts.preset, strings.Join(a.presets.Names(), ", "))
		}
		mapping = &p.Mapping
	}

	if file != "" {
		return importFile(ctx, out, a, file, mapping, opts)
	}

	files, err := importer.Scan(repoRoot)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintf(out, "No statements in %s\n", filepath.Join(repoRoot, importer.InboxDir))
		return nil
	}

	for _, f := range files {
		if err := importFile(ctx, out, a, f.Path, mapping, opts); err != nil {
			return err
		}
		if opts.dryRun {
			continue
		}
		if err := importer.MarkProcessed(repoRoot, f.Name); err != nil {
			return err
		}
	}
	return nil
}

func importFile(ctx context.Context, out io.Writer, a *app, path string, mapping *model.Mapping, opts importOptions) error {
	preview, err := a.service.PreviewFile(ctx, path, mapping, opts.user)
	if err != nil {
		return err
	}

	staged, _ := a.staged.Get(ctx, preview.UploadID)
	var failures []string
	for i, rr := range staged {
		if f, ok := rr.(model.FailedRow); ok {
			failures = append(failures, fmt.Sprintf("  row %d: %s", i, f.Reason()))
		}
	}

	fmt.Fprintf(out, "%s: %d rows, %d failed to parse\n", filepath.Base(path), preview.TotalRows, len(failures))
	for i, line := range failures {
		if i == maxListedFailures {
			fmt.Fprintf(out, "  ... and %d more\n", len(failures)-maxListedFailures)
			break
		}
		fmt.Fprintln(out, line)
	}

	if opts.dryRun {
		a.staged.Delete(ctx, preview.UploadID)
		fmt.Fprintln(out, "  dry run: nothing committed")
		return nil
	}

	res := a.service.Commit(ctx, preview.UploadID, opts.selected, opts.user)
	fmt.Fprintf(out, "  imported %d, duplicates %d, failed %d\n", res.Imported, res.Duplicates, res.Failed)
	return nil
}
