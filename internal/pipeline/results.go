package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"
)

// CSVHeader is the column layout of the per-image CSV.
var CSVHeader = []string{"bbox_coords", "bbox_confidence", "predicted_labels"}

// FormatBBox renders vertices as [[x1, y1], [x2, y2], ...].
func FormatBBox(poly [][2]int) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, p := range poly {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('[')
		sb.WriteString(strconv.Itoa(p[0]))
		sb.WriteString(", ")
		sb.WriteString(strconv.Itoa(p[1]))
		sb.WriteByte(']')
	}
	sb.WriteByte(']')
	return sb.String()
}

// FormatConfidence renders a score with the shortest exact representation,
// keeping a ".0" on integral values so 1 prints as 1.0.
func FormatConfidence(score float64) string {
	s := strconv.FormatFloat(score, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eIN") {
		s += ".0"
	}
	return s
}

// WriteCSV writes the header and one row per record.
func WriteCSV(w io.Writer, records []TranscriptionRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write([]string{FormatBBox(r.Polygon), FormatConfidence(r.Confidence), r.Text}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ToCSVImage renders an image result as CSV.
func ToCSVImage(res *ImageResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, res.Records); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ToJSONImage serializes a single ImageResult to pretty JSON.
func ToJSONImage(res *ImageResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToPlainTextImage joins non-blank transcripts with newlines.
func ToPlainTextImage(res *ImageResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	lines := make([]string, 0, len(res.Records))
	for _, t := range res.Texts() {
		if t = strings.TrimSpace(t); t != "" {
			lines = append(lines, t)
		}
	}
	return strings.Join(lines, "\n"), nil
}
