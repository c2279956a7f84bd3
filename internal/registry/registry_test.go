package registry

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/geko/internal/checkpoint"
	"github.com/banshee-data/geko/internal/fsutil"
	"github.com/banshee-data/geko/internal/testutil"
)

func TestSelect(t *testing.T) {
	t.Parallel()
	c := testutil.NewCheckpoint()

	rec, err := Select(c, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.ModelIdx)
	assert.Equal(t, []float64{0.75}, rec.Coefficients)

	rec.Coefficients[0] = 42
	assert.Equal(t, 0.75, c.Payload.CrossVal[2].Coefficients[0], "Select returns a copy")
}

func TestSelect_Missing(t *testing.T) {
	t.Parallel()
	_, err := Select(testutil.NewCheckpoint(), 99)
	require.Error(t, err)
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)
	assert.Contains(t, err.Error(), "99")
}

func TestSelect_Empty(t *testing.T) {
	t.Parallel()
	_, err := Select(&checkpoint.Checkpoint{}, 0)
	assert.ErrorIs(t, err, checkpoint.ErrNoCandidates)
}

func TestBest(t *testing.T) {
	t.Parallel()
	c := testutil.NewCheckpoint()

	best, err := Best(c)
	require.NoError(t, err)
	assert.Equal(t, 13, best.ModelIdx)

	ranked, err := checkpoint.Rank(c)
	require.NoError(t, err)
	assert.Equal(t, ranked[0], best)

	_, err = Best(&checkpoint.Checkpoint{})
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)
}

func TestRMSESpread(t *testing.T) {
	c := testutil.NewCheckpoint()
	c.Payload.CrossVal = append(c.Payload.CrossVal, checkpoint.ModelRecord{ModelIdx: 50, RMSE: math.NaN()})

	s := RMSESpread(c)
	assert.Equal(t, 3, s.Count)
	assert.InDelta(t, (1.4+1.1+1.4)/3, s.MeanRMSE, 1e-12)
	assert.Greater(t, s.StdRMSE, 0.0)
	assert.Equal(t, 1.1, s.MinRMSE)
	assert.Equal(t, 1.4, s.MaxRMSE)

	single := &checkpoint.Checkpoint{Payload: checkpoint.Payload{CrossVal: []checkpoint.ModelRecord{{RMSE: 0.5}}}}
	assert.Equal(t, Spread{Count: 1, MeanRMSE: 0.5, MinRMSE: 0.5, MaxRMSE: 0.5}, RMSESpread(single))

	assert.Equal(t, Spread{}, RMSESpread(&checkpoint.Checkpoint{}))
}

func TestWriteReport(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, "runs/msh_1_20.gck", testutil.NewCheckpoint(), false))
	out := buf.String()

	assert.Contains(t, out, " GCK EXPLORER ")
	assert.Contains(t, out, "msh_1_20.gck")
	assert.Contains(t, out, "From: msh5000.csv")
	assert.Contains(t, out, "nork=1 | nvec=20 | Norm=Y")
	assert.Contains(t, out, "Best model is #13")
	assert.Contains(t, out, "★1    | 13  ")
	assert.Contains(t, out, "ZK: [1.000000e+00 2.000000e-04 3.500000e-07]")

	// Rank 2 is model 2 (tie on RMSE with model 4, lower index first).
	lines := strings.Split(out, "\n")
	var rankLines []string
	for _, l := range lines {
		if strings.Contains(l, " | ") && (strings.HasPrefix(l, " ") || strings.HasPrefix(l, "★")) && !strings.Contains(l, "ZK") {
			rankLines = append(rankLines, l)
		}
	}
	require.Len(t, rankLines, 3)
	assert.True(t, strings.HasPrefix(rankLines[1], " 2    | 2   "), rankLines[1])
	assert.True(t, strings.HasPrefix(rankLines[2], " 3    | 4   "), rankLines[2])
}

func TestWriteReport_Precise(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, "a.gck", testutil.NewCheckpoint(), true))
	assert.Contains(t, buf.String(), "2.000000000000e-04")
}

func TestWriteReport_Empty(t *testing.T) {
	var buf bytes.Buffer
	err := WriteReport(&buf, "a.gck", &checkpoint.Checkpoint{}, false)
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)
	assert.Empty(t, buf.String())
}

func TestCenter(t *testing.T) {
	assert.Equal(t, "==ab===", center("ab", 7, "="))
	assert.Equal(t, "toolong", center("toolong", 3, "="))
}

func TestSummarize(t *testing.T) {
	s := Summarize("msh.gck", testutil.NewCheckpoint())
	assert.Equal(t, "msh.gck", s.File)
	assert.Equal(t, "Y", s.Norm)
	assert.Equal(t, "11-02", s.Date)
	assert.Equal(t, 13, s.BestIdx)
	assert.Equal(t, 3, s.Models)

	empty := Summarize("e.gck", &checkpoint.Checkpoint{})
	assert.Equal(t, -1, empty.BestIdx)
	assert.Equal(t, "N/D", empty.Date)
	assert.Equal(t, "?", empty.Norm)
}

func TestScan(t *testing.T) {
	t.Parallel()
	mfs := fsutil.NewMemoryFileSystem()
	testutil.WriteCheckpoint(t, mfs, "/runs/b", testutil.NewCheckpoint())
	legacy := testutil.NewCheckpoint()
	legacy.Metadata.IsNorm = nil
	testutil.WriteCheckpoint(t, mfs, "/runs/a", legacy)
	require.NoError(t, mfs.WriteFile("/runs/c.gck", []byte("garbage"), 0644))
	require.NoError(t, mfs.WriteFile("/runs/notes.txt", []byte("ignored"), 0644))

	rows, err := Scan(mfs, "/runs")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "a.gck", rows[0].File)
	assert.Equal(t, "?", rows[0].Norm)
	assert.Equal(t, "Y", rows[1].Norm)
	assert.ErrorIs(t, rows[2].Err, checkpoint.ErrCorrupt)

	var buf bytes.Buffer
	require.NoError(t, WriteSummaryTable(&buf, rows, true))
	out := buf.String()
	assert.Contains(t, out, "RMSE")
	assert.Contains(t, out, "c.gck")
	assert.Contains(t, out, "[Error reading file:")

	buf.Reset()
	require.NoError(t, WriteSummaryTable(&buf, rows, false))
	assert.NotContains(t, buf.String(), "CORR")
}

func TestScan_MissingDir(t *testing.T) {
	_, err := Scan(fsutil.NewMemoryFileSystem(), "/missing")
	assert.Error(t, err)
}

func TestWriteSummaryTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummaryTable(&buf, nil, false))
	assert.Contains(t, buf.String(), "No .gck files")
}

func TestWriteSummaryTable_TruncatesOnRunes(t *testing.T) {
	// 39 ASCII bytes then a two-byte rune: a byte cut at 40 would split it.
	msg := strings.Repeat("x", 39) + "é résumé illisible"
	rows := []Summary{{File: "accent.gck", BestIdx: -1, Err: errors.New(msg)}}

	var buf bytes.Buffer
	require.NoError(t, WriteSummaryTable(&buf, rows, false))
	out := buf.String()
	assert.True(t, utf8.ValidString(out))
	assert.Contains(t, out, "[Error reading file: "+strings.Repeat("x", 39)+"é...]")
}
