// Package report renders the end-of-run summary of a replay.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/replayer/pkg/replay"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatNone = "none"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown report format")

// Document is the machine-readable form of a replay.Summary.
type Document struct {
	Source    string      `json:"source"              yaml:"source"`
	Target    string      `json:"target"              yaml:"target"`
	BatchSize int         `json:"batch_size"          yaml:"batch_size"`
	Commits   int         `json:"commits"             yaml:"commits"`
	DryRun    bool        `json:"dry_run"             yaml:"dry_run"`
	State     string      `json:"state"               yaml:"state"`
	Started   time.Time   `json:"started"             yaml:"started"`
	Finished  time.Time   `json:"finished"            yaml:"finished"`
	Elapsed   string      `json:"elapsed"             yaml:"elapsed"`
	Planned   []string    `json:"planned,omitempty"   yaml:"planned,omitempty"`
	Strides   []StrideDoc `json:"strides"             yaml:"strides"`
	Failures  FailureDoc  `json:"failures"            yaml:"failures"`
}

// StrideDoc describes one stride.
type StrideDoc struct {
	Stride   int      `json:"stride"           yaml:"stride"`
	Index    int      `json:"index"            yaml:"index"`
	Commit   string   `json:"commit"           yaml:"commit"`
	Merge    string   `json:"merge"            yaml:"merge"`
	Push     string   `json:"push"             yaml:"push"`
	Notify   string   `json:"notify"           yaml:"notify"`
	Duration string   `json:"duration"         yaml:"duration"`
	Errors   []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// FailureDoc counts failed phases across strides.
type FailureDoc struct {
	Merge  int `json:"merge"  yaml:"merge"`
	Push   int `json:"push"   yaml:"push"`
	Notify int `json:"notify" yaml:"notify"`
}

// NewDocument converts a summary into its serializable form.
func NewDocument(s *replay.Summary) Document {
	doc := Document{
		Source:    s.Source,
		Target:    s.Target,
		BatchSize: s.BatchSize,
		Commits:   s.Commits,
		DryRun:    s.DryRun,
		State:     string(s.State),
		Started:   s.Started,
		Finished:  s.Finished,
		Elapsed:   s.Elapsed().Round(time.Millisecond).String(),
		Strides:   make([]StrideDoc, 0, len(s.Strides)),
	}

	for _, commit := range s.Planned {
		doc.Planned = append(doc.Planned, commit.String())
	}

	for _, o := range s.Strides {
		sd := StrideDoc{
			Stride:   o.Stride,
			Index:    o.Index,
			Commit:   o.Commit.String(),
			Merge:    string(o.Merge),
			Push:     string(o.Push),
			Notify:   string(o.Notify),
			Duration: o.Duration.Round(time.Millisecond).String(),
		}

		for _, err := range []error{o.MergeErr, o.PushErr, o.NotifyErr} {
			if err != nil {
				sd.Errors = append(sd.Errors, err.Error())
			}
		}

		doc.Strides = append(doc.Strides, sd)
	}

	doc.Failures.Merge, doc.Failures.Push, doc.Failures.Notify = s.Failures()

	return doc
}

// Write renders s to w in the given format.
func Write(w io.Writer, format string, s *replay.Summary) error {
	if s == nil {
		return nil
	}

	switch format {
	case FormatNone:
		return nil
	case FormatText:
		return writeText(w, s)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		if err := enc.Encode(NewDocument(s)); err != nil {
			return fmt.Errorf("encode json report: %w", err)
		}

		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		if err := enc.Encode(NewDocument(s)); err != nil {
			return fmt.Errorf("encode yaml report: %w", err)
		}

		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
