package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"neuroplex/pkg/neuroplex"
)

type statsReport struct {
	Statistics neuroplex.Statistics   `json:"statistics"`
	Strongest  []neuroplex.Connection `json:"strongest"`
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStatsTable(w io.Writer, r statsReport) {
	s := r.Statistics
	fmt.Fprintf(w, "neurons:      %s\n", humanize.Comma(int64(s.Neurons)))
	fmt.Fprintf(w, "connections:  %s\n", humanize.Comma(int64(s.Connections)))
	fmt.Fprintf(w, "updates:      %s\n", humanize.Comma(int64(s.UpdateCount)))
	fmt.Fprintf(w, "mean |w|:     %.4f (std %.4f)\n", s.MeanWeight, s.WeightStd)
	fmt.Fprintf(w, "excitatory:   %.1f%%\n", s.PositiveRatio*100)
	fmt.Fprintf(w, "inhibitory:   %.1f%%\n", s.NegativeRatio*100)
	if len(r.Strongest) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tTARGET\tWEIGHT")
	for _, c := range r.Strongest {
		fmt.Fprintf(tw, "%s\t%s\t%+.4f\n", c.Source, c.Target, c.Weight)
	}
	_ = tw.Flush()
}
