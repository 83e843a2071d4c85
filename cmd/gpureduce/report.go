package main

import (
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/born-ml/gpureduce/reduce"
)

var (
	normalStyle       = lipgloss.NewStyle().Padding(0, 1)
	rightAlignedStyle = lipgloss.NewStyle().Align(lipgloss.Right).Padding(0, 1)
	headerStyle       = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	tableBorderColor  = "#705090"
)

func newTable() *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(tableBorderColor))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return headerStyle
			}
			if col == 0 {
				return rightAlignedStyle
			}
			return normalStyle
		})
}

// report holds the measurements of one run.
type report struct {
	driver   string
	platform reduce.PlatformInfo
	device   reduce.DeviceInfo
	config   reduce.Config
	n, reps  int

	expected    float64
	deviceSum   float32
	hostSum     float32
	deviceTimes []time.Duration
	hostTimes   []time.Duration
}

// median returns the median of times, or 0 for none.
func median(times []time.Duration) time.Duration {
	if len(times) == 0 {
		return 0
	}
	sorted := slices.Clone(times)
	slices.Sort(sorted)
	return sorted[len(sorted)/2]
}

func relErr(got float32, want float64) string {
	if want == 0 {
		return strconv.FormatFloat(math.Abs(float64(got)), 'g', 3, 64)
	}
	return strconv.FormatFloat(math.Abs(float64(got)-want)/math.Abs(want), 'e', 2, 64)
}

// Render formats the report as a table.
func (r *report) Render() string {
	t := newTable().Headers("", "device", "host")
	t.Row("driver", fmt.Sprintf("%s: %s / %s", r.driver, r.platform.Name, r.device.Name), "Go")
	t.Row("elements", humanize.Comma(int64(r.n)), humanize.Comma(int64(r.n)))
	t.Row("input size", humanize.IBytes(uint64(4*r.n)), humanize.IBytes(uint64(4*r.n))) //nolint:gosec // n is positive
	t.Row("work groups", fmt.Sprintf("%d x %d", r.config.WorkGroupCount, r.config.WorkGroupSize), "-")
	t.Row("sum", formatSum(r.deviceSum), formatSum(r.hostSum))
	t.Row("relative error", relErr(r.deviceSum, r.expected), relErr(r.hostSum, r.expected))
	t.Row(fmt.Sprintf("median time (%d reps)", r.reps), median(r.deviceTimes).String(), median(r.hostTimes).String())
	return t.Render()
}

func formatSum(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}

// listDevices prints every registered driver with its platforms and
// devices. Drivers that are unavailable are listed with the reason.
func listDevices(w io.Writer) error {
	t := newTable().Headers("driver", "platform", "device", "type", "max group", "local mem", "max alloc")
	for _, name := range reduce.Backends() {
		list, err := reduce.ListDevices(name)
		if err != nil {
			t.Row(name, "-", "unavailable: "+err.Error(), "", "", "", "")
			continue
		}
		for _, p := range list {
			if len(p.Devices) == 0 {
				t.Row(name, p.Platform.Name, "(no devices)", "", "", "", "")
			}
			for _, d := range p.Devices {
				t.Row(name, p.Platform.Name, d.Name, d.Type.String(),
					strconv.Itoa(d.MaxWorkGroupSize),
					humanize.IBytes(uint64(max(d.LocalMemSize, 0))), //nolint:gosec // clamped
					humanize.IBytes(uint64(max(d.MaxAllocSize, 0))), //nolint:gosec // clamped
				)
			}
		}
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}
