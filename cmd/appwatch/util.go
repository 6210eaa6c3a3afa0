package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/loykin/appwatch"
)

func printJSON(w io.Writer, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	_, _ = fmt.Fprintln(w, string(b))
}

// printReport writes one line per platform.
func printReport(w io.Writer, rep appwatch.Report) {
	for _, r := range rep.Results {
		if r.Error != "" {
			_, _ = fmt.Fprintf(w, "%-8s failed at %s: %s\n", r.Platform, r.FailedAt, r.Error)
			continue
		}
		line := fmt.Sprintf("%-8s %-18s %s", r.Platform, r.Classification, r.Version)
		if r.Previous != "" && r.Previous != r.Version {
			line = fmt.Sprintf("%-8s %-18s %s -> %s", r.Platform, r.Classification, r.Previous, r.Version)
		}
		if r.Notification != "" {
			line += "  notify: " + r.Notification
		}
		_, _ = fmt.Fprintln(w, line)
	}
}
