package registry

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/banshee-data/geko/internal/checkpoint"
)

const reportWidth = 75

// center pads s with fill on both sides to width, extra padding on the right.
func center(s string, width int, fill string) string {
	if len(s) >= width {
		return s
	}
	left := (width - len(s)) / 2
	right := width - len(s) - left
	return strings.Repeat(fill, left) + s + strings.Repeat(fill, right)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// WriteReport renders the ranked model report for the checkpoint loaded from
// name. With precise set, coefficients use full precision.
func WriteReport(w io.Writer, name string, c *checkpoint.Checkpoint, precise bool) error {
	ranked, err := checkpoint.Rank(c)
	if err != nil {
		return err
	}
	meta, payload := c.Metadata, c.Payload

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n", center(" GCK EXPLORER ", reportWidth, "="))
	fmt.Fprintf(&b, "File: %-32s | From: %s\n", filepath.Base(name), orNA(payload.Title))
	fmt.Fprintf(&b, "Date/Time:   %-25s | Input points: %d\n", orNA(meta.CreatedAt), meta.NPoints)
	fmt.Fprintf(&b, "Col X: %-16s | Col Y: %-16s | Col Z: %-16s\n",
		orNA(payload.XCol), orNA(payload.YCol), orNA(payload.ZCol))
	fmt.Fprintf(&b, "Conf:    nork=%d | nvec=%d | Norm=%s | Schema=%s | Best model is #%d\n",
		meta.Params.Nork, meta.Params.Nvec, c.Normalization().Flag(), c.Schema, ranked[0].ModelIdx)
	b.WriteString(strings.Repeat("-", reportWidth) + "\n")
	fmt.Fprintf(&b, "Best MAE: %.6f | Best RMSE: %.6f | Best CORR: %.6f\n",
		meta.Metrics.MAE, meta.Metrics.RMSE, meta.Metrics.Corr)
	if s := RMSESpread(c); s.Count > 0 {
		fmt.Fprintf(&b, "Candidates: %d | RMSE mean %.6f sd %.6f | range [%.6f, %.6f]\n",
			s.Count, s.MeanRMSE, s.StdRMSE, s.MinRMSE, s.MaxRMSE)
	}
	b.WriteString(strings.Repeat("-", reportWidth) + "\n")

	header := fmt.Sprintf("%-5s | %-4s | %-12s | %-12s | %-10s", "RANK", "MOD", "MAE", "RMSE", "CORR")
	fmt.Fprintf(&b, "\n%s\n%s\n", header, strings.Repeat("-", len(header)))

	coefFormat := "%10.6e"
	if precise {
		coefFormat = "%16.12e"
	}
	for i, rec := range ranked {
		star := " "
		if i == 0 {
			star = "★"
		}
		fmt.Fprintf(&b, "%s%-4d | %-4d | %-12.6f | %-12.6f | %-10.6f\n",
			star, i+1, rec.ModelIdx, rec.MAE, rec.RMSE, rec.Corr)

		coefs := make([]string, len(rec.Coefficients))
		for j, v := range rec.Coefficients {
			coefs[j] = fmt.Sprintf(coefFormat, v)
		}
		fmt.Fprintf(&b, "     ZK: [%s]\n", strings.Join(coefs, " "))
		b.WriteString(strings.Repeat(".", reportWidth+1) + "\n")
	}

	_, err = io.WriteString(w, b.String())
	return err
}
