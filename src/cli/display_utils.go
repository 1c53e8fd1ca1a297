package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"analysis-broker/src/server/queue"
	"analysis-broker/src/server/telemetry"
)

var (
	priorityColor = color.New(color.FgRed, color.Bold)
	normalColor   = color.New(color.FgGreen)
	deferredColor = color.New(color.FgYellow)
	headerColor   = color.New(color.FgCyan, color.Bold)
)

func classColor(class queue.Class) *color.Color {
	switch class {
	case queue.Priority:
		return priorityColor
	case queue.Normal:
		return normalColor
	default:
		return deferredColor
	}
}

// ClassifyCommands prints the priority class of each command
func ClassifyCommands(out io.Writer, commands []string) error {
	width := 0
	for _, c := range commands {
		if len(c) > width {
			width = len(c)
		}
	}

	for _, c := range commands {
		class := queue.Classify(c)
		fmt.Fprintf(out, "%-*s  %s\n", width, c, classColor(class).Sprint(class))
	}
	return nil
}

// printDelayReport writes the per-command delay histogram
func printDelayReport(out io.Writer, delays []telemetry.CommandDelay) {
	if len(delays) == 0 {
		return
	}

	fmt.Fprintln(out, headerColor.Sprint("Request delays"))
	fmt.Fprintf(out, "%-10s %-28s %6s %10s %10s  %s\n", "class", "command", "count", "avg", "max", strings.Join(telemetry.BucketLabels, " "))
	for _, d := range delays {
		buckets := make([]string, len(d.Buckets))
		for i, n := range d.Buckets {
			buckets[i] = fmt.Sprintf("%*d", len(telemetry.BucketLabels[i]), n)
		}
		fmt.Fprintf(out, "%s %-28s %6d %10s %10s  %s\n",
			classColor(d.Class).Sprintf("%-10s", d.Class),
			d.Command,
			d.Count,
			d.Average().Round(time.Millisecond),
			d.Max.Round(time.Millisecond),
			strings.Join(buckets, " "))
	}
}
