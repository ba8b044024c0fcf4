package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"anggaran-backend/internal/application/importer"
	"anggaran-backend/internal/config"
	"anggaran-backend/internal/infrastructure/database"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type importOptions struct {
	file      string
	chunkSize int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "importer",
		Short:        "Batch tools for the budget hierarchy",
		SilenceUsage: true,
	}
	imp := &cobra.Command{
		Use:   "import",
		Short: "Build a hierarchy from a .csv or .xlsx export",
	}
	imp.AddCommand(
		newImportCmd("accounts", "Import the chart of accounts", (*importer.Importer).ImportAccounts),
		newImportCmd("program", "Import the program hierarchy (Sector to Sub-Activity)", (*importer.Importer).ImportProgram),
	)
	root.AddCommand(imp)
	return root
}

type importFunc func(*importer.Importer, context.Context, [][]string) (*importer.Report, error)

func newImportCmd(use, short string, run importFunc) *cobra.Command {
	var opts importOptions
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), opts, use, run)
		},
	}
	cmd.Flags().StringVar(&opts.file, "file", "", "Input file (.csv or .xlsx, first sheet) (required)")
	cmd.Flags().IntVar(&opts.chunkSize, "chunk-size", 0, "Rows per committed chunk (default IMPORT_CHUNK_SIZE)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runImport(ctx context.Context, opts importOptions, kind string, run importFunc) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}
	cfg.SetupLogging()

	rows, err := importer.ReadRows(opts.file)
	if err != nil {
		return fmt.Errorf("read %s: %w", opts.file, err)
	}
	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	chunk := cfg.ImportChunkSize
	if opts.chunkSize > 0 {
		chunk = opts.chunkSize
	}
	im := &importer.Importer{DB: db, ChunkSize: chunk, Log: log.With().Str("import", kind).Logger()}
	report, err := run(im, ctx, rows)
	if report != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(report); encErr != nil {
			return encErr
		}
	}
	return err
}
