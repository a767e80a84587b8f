// Package report renders zone transfer results. All reporters consume the
// same normalized result list; the output format is the only difference.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/hernandocastelli/zone-transfer/transfer"
)

// Reporter renders the per-nameserver results of one run.
type Reporter interface {
	Write(w io.Writer, zone string, results []transfer.Result) error
}

// ForFormat returns the Reporter for a -format flag value.
func ForFormat(format string) (Reporter, error) {
	switch format {
	case "csv":
		return CSV{}, nil
	case "html":
		return Graph{}, nil
	case "table":
		return Table{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// CSVHeader is the header row emitted by the CSV reporter.
var CSVHeader = []string{"nameserver", "status", "record_name", "record_type", "record_value"}

// CSV flattens results into one row per leaked record. Nameservers that
// leaked nothing still get exactly one row, with empty record columns, so
// every tested server appears in the output.
type CSV struct{}

func (CSV) Write(w io.Writer, zone string, results []transfer.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, res := range results {
		if res.Status == transfer.StatusVulnerable {
			for _, rec := range res.Records {
				row := []string{res.Nameserver, string(res.Status), rec.Name, rec.Type, rec.Value}
				if err := cw.Write(row); err != nil {
					return err
				}
			}
			continue
		}
		if err := cw.Write([]string{res.Nameserver, string(res.Status), "", "", ""}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Table prints an aligned summary to the writer, with the leaked records
// of any vulnerable server listed below it.
type Table struct{}

func (Table) Write(w io.Writer, zone string, results []transfer.Result) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintf(tw, "NAMESERVER\tSTATUS\tRECORDS\n")
	for _, res := range results {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", res.Nameserver, res.Status, len(res.Records))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, res := range results {
		if res.Status != transfer.StatusVulnerable {
			continue
		}
		fmt.Fprintf(w, "\nRecords leaked by %s (%s):\n", res.Nameserver, res.IP)
		rtw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
		for _, rec := range res.Records {
			fmt.Fprintf(rtw, "  %s\t%s\t%s\n", rec.Name, rec.Type, rec.Value)
		}
		if err := rtw.Flush(); err != nil {
			return err
		}
	}
	return nil
}
