package registry

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/banshee-data/geko/internal/checkpoint"
	"github.com/banshee-data/geko/internal/fsutil"
)

// Summary is one row of a checkpoint directory listing.
type Summary struct {
	File    string
	Norm    string
	Date    string
	Nork    int
	Nvec    int
	MAE     float64
	RMSE    float64
	Corr    float64
	ModelID int
	// BestIdx is the best ranked model index, -1 when there are no candidates.
	BestIdx int
	Models  int
	// Err holds the load failure for unreadable files; other fields are zero.
	Err error
}

// shortDate reduces "YYYY-MM-DD hh:mm:ss" to "MM-DD".
func shortDate(createdAt string) string {
	day := strings.SplitN(createdAt, " ", 2)[0]
	if len(day) < 10 {
		return "N/D"
	}
	return day[5:]
}

// Summarize builds the listing row for a loaded checkpoint.
func Summarize(name string, c *checkpoint.Checkpoint) Summary {
	s := Summary{
		File:    name,
		Norm:    c.Normalization().Flag(),
		Date:    shortDate(c.Metadata.CreatedAt),
		Nork:    c.Metadata.Params.Nork,
		Nvec:    c.Metadata.Params.Nvec,
		MAE:     c.Metadata.Metrics.MAE,
		RMSE:    c.Metadata.Metrics.RMSE,
		Corr:    c.Metadata.Metrics.Corr,
		ModelID: c.Metadata.Params.ModelID,
		BestIdx: -1,
		Models:  c.Len(),
	}
	if best, err := Best(c); err == nil {
		s.BestIdx = best.ModelIdx
	}
	return s
}

// Scan loads every checkpoint directly inside dir. Files that fail to load
// are reported with Err set rather than aborting the scan.
func Scan(fsys fsutil.FileSystem, dir string) ([]Summary, error) {
	names, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	store := checkpoint.NewStore(fsys)
	var rows []Summary
	for _, name := range names {
		if !strings.HasSuffix(name, checkpoint.Extension) {
			continue
		}
		c, err := store.Open(filepath.Join(dir, name))
		if err != nil {
			rows = append(rows, Summary{File: name, BestIdx: -1, Err: err})
			continue
		}
		rows = append(rows, Summarize(name, c))
	}
	return rows, nil
}

// WriteSummaryTable renders rows as the directory listing table. Verbose adds
// the RMSE and correlation columns.
func WriteSummaryTable(w io.Writer, rows []Summary, verbose bool) error {
	var b strings.Builder
	if len(rows) == 0 {
		b.WriteString("No .gck files were found in this directory.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	header := fmt.Sprintf("%-30s | %-1s | %-6s | %-5s | %-5s | %-8s", "File", "N", "Date", "nork", "nvec", "MAE")
	if verbose {
		header += fmt.Sprintf(" | %-8s | %-8s", "RMSE", "CORR")
	}
	header += fmt.Sprintf(" | %-6s", "Model")

	fmt.Fprintf(&b, "\n%s\n%s\n%s\n", strings.Repeat("=", len(header)), header, strings.Repeat("-", len(header)))
	for _, r := range rows {
		if r.Err != nil {
			msg := r.Err.Error()
			if runes := []rune(msg); len(runes) > 40 {
				msg = string(runes[:40]) + "..."
			}
			fmt.Fprintf(&b, "%-30s | [Error reading file: %s]\n", r.File, msg)
			continue
		}
		fmt.Fprintf(&b, "%-30s | %-1s | %-6s | %-5d | %-5d | %8g", r.File, r.Norm, r.Date, r.Nork, r.Nvec, r.MAE)
		if verbose {
			fmt.Fprintf(&b, " | %8g | %8g", r.RMSE, r.Corr)
		}
		fmt.Fprintf(&b, " | %-6d\n", r.ModelID)
	}
	fmt.Fprintf(&b, "%s\n", strings.Repeat("=", len(header)))

	_, err := io.WriteString(w, b.String())
	return err
}
