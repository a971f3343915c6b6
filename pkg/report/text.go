package report

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/replayer/pkg/replay"
)

func writeText(w io.Writer, s *replay.Summary) error {
	header := fmt.Sprintf("%s -> %s: %s commits, batch size %d, state %s, elapsed %s",
		s.Source, s.Target, humanize.Comma(int64(s.Commits)), s.BatchSize, s.State,
		s.Elapsed().Round(time.Millisecond))

	if _, err := fmt.Fprintln(w, header); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Format.Footer = text.FormatDefault

	if s.DryRun {
		tbl.AppendHeader(table.Row{"#", "Index", "Commit"})

		indices := replay.BoundaryIndices(s.Commits, s.BatchSize)

		for i, commit := range s.Planned {
			index := ""
			if i < len(indices) {
				index = fmt.Sprint(indices[i])
			}

			tbl.AppendRow(table.Row{i + 1, index, commit.Short()})
		}

		tbl.AppendFooter(table.Row{"", "", fmt.Sprintf("%d planned", len(s.Planned))})
	} else {
		tbl.AppendHeader(table.Row{"#", "Index", "Commit", "Merge", "Push", "Notify", "Duration"})

		for _, o := range s.Strides {
			tbl.AppendRow(table.Row{
				o.Stride, o.Index, o.Commit.Short(),
				colorize(o.Merge), colorize(o.Push), colorize(o.Notify),
				o.Duration.Round(time.Millisecond),
			})
		}

		merge, push, notify := s.Failures()
		tbl.AppendFooter(table.Row{
			"", "", fmt.Sprintf("%d strides", len(s.Strides)),
			fmt.Sprintf("%d failed", merge), fmt.Sprintf("%d failed", push), fmt.Sprintf("%d failed", notify), "",
		})
	}

	if _, err := fmt.Fprintln(w, tbl.Render()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}

func colorize(status replay.Status) string {
	switch status {
	case replay.StatusOK:
		return color.GreenString(string(status))
	case replay.StatusFailed:
		return color.RedString(string(status))
	case replay.StatusPending:
		return color.YellowString(string(status))
	default:
		return string(status)
	}
}
