package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/HerbHall/coldguard/internal/detector"
	"github.com/HerbHall/coldguard/internal/store"
	"github.com/HerbHall/coldguard/pkg/models"
	"github.com/olekukonko/tablewriter"
)

// runHistory prints the most recent recorded readings as a table.
func runHistory(args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	dbPath := fs.String("db", "./data/coldguard.db", "path to the coldguard database")
	limit := fs.Int("limit", 20, "number of readings to show")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if _, err := os.Stat(*dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "database not found: %v\n", err)
		return 1
	}
	db, err := store.New(*dbPath, store.ReadOnly())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		return 1
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	readings, err := detector.NewReadingStore(db.DB()).List(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read history: %v\n", err)
		return 1
	}
	renderHistory(os.Stdout, readings)
	return 0
}

func renderHistory(w io.Writer, readings []models.StoredReading) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Recorded", "Temp", "Error", "Raw", "Persist", "Bounds", "Alert"})
	table.SetAutoFormatHeaders(false)
	for i := range readings {
		r := &readings[i]
		table.Append([]string{
			strconv.FormatInt(r.ID, 10),
			r.Timestamp.Local().Format(time.DateTime),
			strconv.FormatFloat(r.Temperature, 'f', 2, 64),
			strconv.FormatFloat(r.ReconstructionError, 'f', 4, 64),
			flag01(r.RawAnomaly),
			flag01(r.PersistenceAlert),
			flag01(r.BoundsBreach),
			flag01(r.HybridAlert),
		})
	}
	table.Render()
}

func flag01(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
