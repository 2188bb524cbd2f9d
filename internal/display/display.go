// Package display renders parameter sets, reports and diagnostic snapshots
// for the console.
package display

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"

	pserrors "github.com/vnykmshr/pipesim/pkg/common/errors"
	"github.com/vnykmshr/pipesim/pkg/engine"
	"github.com/vnykmshr/pipesim/pkg/params"
	"github.com/vnykmshr/pipesim/pkg/report"
)

// Supported formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Printer writes in one format. It is not safe for concurrent use.
type Printer struct {
	w      io.Writer
	format string
}

// New creates a printer writing format to w.
func New(w io.Writer, format string) (*Printer, error) {
	switch format {
	case FormatText, FormatJSON, FormatYAML:
		return &Printer{w: w, format: format}, nil
	default:
		return nil, pserrors.NewValidationError("display", "output", format, "must be one of [text json yaml]")
	}
}

// Format returns the output format.
func (p *Printer) Format() string {
	return p.format
}

// Params prints the parameter set before a run. Structured formats carry
// the parameters inside the report instead, so only text prints here.
func (p *Printer) Params(ps params.ParameterSet) error {
	if p.format != FormatText {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "numStages: %d\n", ps.NumStages)
	fmt.Fprintf(&b, "numWorkItems: %d\n", ps.NumWorkItems)
	fmt.Fprintf(&b, "imbalanceFactor: [%s ]\n", joinInts(ps.ImbalanceFactor))
	fmt.Fprintf(&b, "maxPipelineCapacity: %d\n", ps.MaxPipelineCapacity)
	fmt.Fprintf(&b, "baseDelay: %d\n", ps.BaseDelay)
	fmt.Fprintf(&b, "skipNoPipeline: %t\n", ps.SkipNoPipeline)

	_, err := io.WriteString(p.w, b.String())
	return err
}

// Report prints the outcome of a comparison.
func (p *Printer) Report(r report.Report) error {
	switch p.format {
	case FormatJSON:
		data, err := sonic.ConfigStd.MarshalIndent(newReportView(r), "", "  ")
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		return p.write(append(data, '\n'))
	case FormatYAML:
		data, err := yaml.Marshal(newReportView(r))
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		return p.write(append([]byte("---\n"), data...))
	default:
		return p.write([]byte(reportText(r)))
	}
}

// Snapshot prints a diagnostic dump of the pipeline state. JSON writes one
// object per line and YAML one document per snapshot.
func (p *Printer) Snapshot(s engine.Snapshot) error {
	switch p.format {
	case FormatJSON:
		data, err := sonic.ConfigStd.Marshal(newSnapshotView(s))
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		return p.write(append(data, '\n'))
	case FormatYAML:
		data, err := yaml.Marshal(newSnapshotView(s))
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		return p.write(append([]byte("---\n"), data...))
	default:
		return p.write([]byte(snapshotText(s)))
	}
}

func (p *Printer) write(b []byte) error {
	_, err := p.w.Write(b)
	return err
}

func reportText(r report.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run %s\n", r.RunID)
	if r.Serial != nil {
		b.WriteString("Non pipelined simulation\n")
		writeMeasurement(&b, "Non pipelined", *r.Serial)
	} else {
		b.WriteString("Non pipelined simulation skipped\n")
	}
	b.WriteString("Pipelined simulation\n")
	writeMeasurement(&b, "Pipelined", r.Pipelined)

	if r.SpeedupAvailable() {
		fmt.Fprintf(&b, "Speedup: %.2fx\n", r.Speedup)
	} else {
		fmt.Fprintf(&b, "Speedup: unavailable (%s)\n", r.SpeedupStatus.Reason())
	}
	return b.String()
}

func writeMeasurement(b *strings.Builder, label string, m report.Measurement) {
	fmt.Fprintf(b, "\t%s time taken: %s ms\n", label, formatMillis(m.Duration))
	if m.ThroughputAvailable {
		fmt.Fprintf(b, "\tBandwidth: %.2f wips\n", m.Throughput)
	} else {
		b.WriteString("\tBandwidth: unavailable\n")
	}
}

func snapshotText(s engine.Snapshot) string {
	var b strings.Builder

	when := "START"
	if s.Point == engine.StepEnd {
		when = "END"
	}
	fmt.Fprintf(&b, "DEBUG INFO DUMP AT %s OF CONTROL (round %d)\n", when, s.Round)
	fmt.Fprintf(&b, "\t stage inputs:%s\n", joinInts(s.Inputs))
	fmt.Fprintf(&b, "\t stage outputs:%s\n", joinInts(s.Outputs))

	signals := make([]int, len(s.Signals))
	for i, sig := range s.Signals {
		signals[i] = int(sig)
	}
	fmt.Fprintf(&b, "\t controlSignals:%s\n", joinInts(signals))
	fmt.Fprintf(&b, "\t terminate: %t\n", s.Terminate)
	if s.Point == engine.StepEnd {
		b.WriteString("----------ITERATION END----------\n")
	}
	return b.String()
}

// joinInts renders values with a leading space before each one.
func joinInts(values []int) string {
	var b strings.Builder
	for _, v := range values {
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}

func formatMillis(d time.Duration) string {
	return strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', 3, 64)
}
