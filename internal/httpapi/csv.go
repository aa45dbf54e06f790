package httpapi

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/types"
)

var csvHeader = []string{"Timestamp", "Event", "Flow Rate", "Total Waste"}

// writeEventsCSV renders the event log report, newest first.
func writeEventsCSV(w io.Writer, events []types.Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, ev := range events {
		row := []string{
			ev.Timestamp,
			string(ev.Violation),
			types.FormatFlow(ev.FlowRate) + " L/m",
			fmt.Sprintf("%.2f L", ev.TotalWaste),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
