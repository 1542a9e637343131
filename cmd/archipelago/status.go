package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/talgya/archipelago/internal/catalog"
	"github.com/talgya/archipelago/internal/persistence"
)

func statusCmd() *cobra.Command {
	var events int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report on the saved game",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if _, err := os.Stat(cfg.DBPath); err != nil {
				return fmt.Errorf("no database at %s", cfg.DBPath)
			}
			db, err := persistence.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()
			return printStatus(db, events)
		},
	}
	cmd.Flags().IntVarP(&events, "events", "e", 10, "Number of recent events to show")
	return cmd
}

func printStatus(db *persistence.DB, recent int) error {
	titleColor := color.New(color.FgCyan, color.Bold)
	infoColor := color.New(color.FgYellow)

	titleColor.Println("\nArchipelago")
	if v, err := db.GetMeta("last_update"); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			infoColor.Printf("Game time %s (%s)\n", t.Format("2006-01-02 15:04:05"), humanize.Time(t))
		}
	}

	cities, err := db.Cities()
	if err != nil {
		return fmt.Errorf("read cities: %w", err)
	}
	titleColor.Printf("\nCities (%d)\n", len(cities))
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"City", "Owner", "Island", "Population", "Gold", "Wood", "Stone", "Iron", "Food", "Wine"}),
	)
	for _, c := range cities {
		pool, err := c.Resources()
		if err != nil {
			color.Red("City %s: bad resources: %v", c.ID, err)
			continue
		}
		_ = table.Append([]string{
			c.Name, c.Owner, c.IslandID,
			humanize.Comma(int64(c.Population)),
			amount(pool[catalog.Gold]), amount(pool[catalog.Wood]), amount(pool[catalog.Stone]),
			amount(pool[catalog.Iron]), amount(pool[catalog.Food]), amount(pool[catalog.Wine]),
		})
	}
	_ = table.Render()

	counts, err := db.QueueCount()
	if err != nil {
		return fmt.Errorf("read queues: %w", err)
	}
	if len(counts) > 0 {
		queues := make([]string, 0, len(counts))
		for q, n := range counts {
			queues = append(queues, fmt.Sprintf("%s %d", q, n))
		}
		sort.Strings(queues)
		infoColor.Printf("Queued: %s\n", strings.Join(queues, ", "))
	}

	snaps, err := db.Snapshots()
	if err != nil {
		return fmt.Errorf("read snapshots: %w", err)
	}
	titleColor.Printf("\nSnapshots (%d)\n", len(snaps))
	st := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"#", "Saved", "Game Time", "Size", "Raw", "Checksum"}),
	)
	for _, s := range snaps {
		saved := s.SavedAt
		if t, err := time.Parse(time.RFC3339Nano, s.SavedAt); err == nil {
			saved = humanize.Time(t)
		}
		_ = st.Append([]string{
			fmt.Sprintf("%d", s.ID), saved, s.GameTime,
			humanize.Bytes(uint64(s.Size)), humanize.Bytes(uint64(s.RawSize)),
			short(s.Checksum),
		})
	}
	_ = st.Render()

	if recent <= 0 {
		return nil
	}
	rows, err := db.RecentEvents(recent)
	if err != nil {
		return fmt.Errorf("read events: %w", err)
	}
	titleColor.Printf("\nRecent events (%d)\n", len(rows))
	et := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"At", "Kind", "City"}),
	)
	for _, e := range rows {
		_ = et.Append([]string{e.At, e.Kind, e.CityID})
	}
	_ = et.Render()
	return nil
}

func amount(v float64) string {
	return humanize.Commaf(float64(int64(v)))
}

func short(checksum string) string {
	if len(checksum) > 12 {
		return checksum[:12]
	}
	return checksum
}
