package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/pipeline"
)

// FormatResults renders every item as text, json or csv.
func (r *Result) FormatResults(format string) (string, error) {
	switch format {
	case "json":
		return r.formatJSON()
	case "csv":
		return r.formatCSV()
	case "", "text":
		return r.formatText()
	default:
		return "", fmt.Errorf("unsupported format %q", format)
	}
}

// SaveResults writes the formatted results to outputFile, or w when empty.
func (r *Result) SaveResults(w io.Writer, format, outputFile string) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}
	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		return nil
	}
	_, err = fmt.Fprint(w, output)
	return err
}

func (r *Result) formatJSON() (string, error) {
	type failureJSON struct {
		Source string `json:"source"`
		Name   string `json:"name"`
		Error  string `json:"error"`
	}
	out := struct {
		RunID    string        `json:"run_id"`
		Images   []Item        `json:"images"`
		Failures []failureJSON `json:"failures,omitempty"`
	}{RunID: r.RunID, Images: r.Items}
	if out.Images == nil {
		out.Images = []Item{}
	}
	for _, f := range r.Failures {
		out.Failures = append(out.Failures, failureJSON{Source: f.Source, Name: f.Name, Error: f.Err.Error()})
	}
	b, err := json.MarshalIndent(out, "", "  ")
	return string(b), err
}

func (r *Result) formatCSV() (string, error) {
	var sb strings.Builder
	cw := csv.NewWriter(&sb)
	header := append([]string{"image", "region_index"}, pipeline.CSVHeader...)
	if err := cw.Write(header); err != nil {
		return "", err
	}
	for _, it := range r.Items {
		for _, rec := range it.Result.Records {
			row := []string{
				it.Name,
				strconv.Itoa(rec.Index),
				pipeline.FormatBBox(rec.Polygon),
				pipeline.FormatConfidence(rec.Confidence),
				rec.Text,
			}
			if err := cw.Write(row); err != nil {
				return "", err
			}
		}
	}
	cw.Flush()
	return sb.String(), cw.Error()
}

func (r *Result) formatText() (string, error) {
	var sb strings.Builder
	for i, it := range r.Items {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "# %s\n", it.Name)
		text, err := pipeline.ToPlainTextImage(it.Result)
		if err != nil {
			return "", err
		}
		if text != "" {
			sb.WriteString(text)
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

// Stats summarizes a run.
type Stats struct {
	Inputs           int
	Images           int
	Failed           int
	Records          int
	SkippedRegions   int
	Workers          int
	TotalDuration    time.Duration
	AveragePerImage  time.Duration
	ThroughputPerSec float64
}

// Stats computes run statistics.
func (r *Result) Stats() Stats {
	s := Stats{
		Inputs:        len(r.Inputs),
		Images:        len(r.Items),
		Failed:        len(r.Failures),
		Workers:       r.Workers,
		TotalDuration: r.Duration,
	}
	for _, it := range r.Items {
		s.Records += len(it.Result.Records)
		s.SkippedRegions += len(it.Result.Skipped)
	}
	if s.Images > 0 {
		s.AveragePerImage = r.Duration / time.Duration(s.Images)
	}
	if secs := r.Duration.Seconds(); secs > 0 {
		s.ThroughputPerSec = float64(s.Images) / secs
	}
	return s
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer) {
	s := r.Stats()
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Run: %s\n", r.RunID)
	_, _ = fmt.Fprintf(w, "  Inputs: %d\n", s.Inputs)
	_, _ = fmt.Fprintf(w, "  Images processed: %d\n", s.Images)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "  Records: %d\n", s.Records)
	_, _ = fmt.Fprintf(w, "  Skipped regions: %d\n", s.SkippedRegions)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", s.Workers)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", s.TotalDuration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", s.AveragePerImage.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", s.ThroughputPerSec)
}
