package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ignatzorin/youth-governance-backend/internal/models"
	"github.com/ignatzorin/youth-governance-backend/internal/repository"
	"github.com/ignatzorin/youth-governance-backend/internal/service"
)

func importCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Queue youth registrations from a JSON file for review",
		Long: `Reads a JSON object or array of flat registration rows (the same
shape the Zapier webhook accepts) and stores valid rows as pending
submissions. Rows carrying an "id" are skipped when already imported.
Use --file - to read from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			rows, err := service.DecodeRows(body)
			if err != nil {
				return err
			}

			cfg, conn, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			var cache service.Cache
			if cfg.RedisURL != "" {
				redisCache, err := service.NewRedisCache(cmd.Context(), cfg.RedisURL)
				if err == nil {
					defer redisCache.Close()
					cache = redisCache
				}
			}

			imports := service.NewImportService(repository.NewYouthProfileRepository(conn), cache, nil)
			result, err := imports.Import(cmd.Context(), systemActor, models.SourceImport, rows)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file to import")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return body, nil
}
