package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/talgya/archipelago/internal/engine"
	"github.com/talgya/archipelago/internal/persistence"
	"github.com/talgya/archipelago/internal/snapshot"
)

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write the latest saved game to a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := persistence.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			state, warnings, err := db.LoadState()
			if err != nil {
				return err
			}
			printWarnings(warnings)

			h, err := snapshot.WriteFile(args[0], state)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			size := "?"
			if fi, err := os.Stat(args[0]); err == nil {
				size = humanize.Bytes(uint64(fi.Size()))
			}
			color.Green("Exported %d cities at %s to %s (%s, checksum %s)",
				h.Cities, h.GameTime.Format("2006-01-02 15:04:05"), args[0], size, short(h.Checksum))
			return nil
		},
	}
}

func importCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Save a snapshot file as the current game",
		Long: `Reads a snapshot written by export and stores it as the newest save.
The server picks it up on its next start. A checksum mismatch is reported
as a warning, the same as when loading from the database, unless --strict
is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			state, h, warnings, err := readImport(args[0], strict)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			printWarnings(warnings)

			db, err := persistence.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.SaveState(state); err != nil {
				return fmt.Errorf("import: %w", err)
			}
			color.Green("Imported %d cities at %s from %s",
				len(state.Cities), h.GameTime.Format("2006-01-02 15:04:05"), args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Refuse a file whose checksum does not match")
	return cmd
}

// readImport reads a snapshot file and checks it. A checksum mismatch is a
// warning unless strict is set.
func readImport(path string, strict bool) (*engine.GameState, snapshot.Header, []persistence.ConsistencyWarning, error) {
	state, h, err := snapshot.ReadFile(path)
	var warnings []persistence.ConsistencyWarning
	switch {
	case errors.Is(err, snapshot.ErrChecksum) && !strict:
		slog.Warn("snapshot checksum mismatch", "path", path, "checksum", h.Checksum)
		warnings = append(warnings, persistence.ConsistencyWarning{
			Kind:   persistence.ChecksumMismatch,
			Detail: fmt.Sprintf("%s does not match its checksum %s", path, short(h.Checksum)),
		})
	case err != nil:
		return nil, h, nil, err
	}
	return state, h, append(warnings, persistence.Check(state)...), nil
}

func printWarnings(warnings []persistence.ConsistencyWarning) {
	for _, w := range warnings {
		color.Yellow("warning: %s", w)
	}
}
