package main

import (
	"chat-relay/repositories"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "", "Path to the session journal (JOURNAL_FILEPATH)")
	limit := flag.Int("limit", 50, "Newest sessions to show, 0 for all")
	flag.Parse()
	if *dbPath == "" {
		log.Fatal("-db is required")
	}

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	records, err := repositories.NewSessionRepository(db, slog.Default()).List(*limit)
	if err != nil {
		log.Fatal(err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Session", "Endpoint", "Opened", "Duration", "In", "Out", "Reason"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, r := range records {
		duration, reason := "open", r.Reason
		if r.ClosedAt != nil {
			duration = r.ClosedAt.Sub(r.OpenedAt).Round(time.Millisecond).String()
		}
		table.Append([]string{
			r.ID.String()[:8],
			r.Endpoint,
			r.OpenedAt.Format(time.DateTime),
			duration,
			strconv.Itoa(r.LinesIn),
			strconv.Itoa(r.LinesOut),
			reason,
		})
	}
	table.Render()
	fmt.Printf("%d session(s)\n", len(records))
}
