// Command geko inspects fitted-model checkpoints, calibrates heightmap point
// tables and extracts profiles from estimated grids.
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/geko/internal/calibration"
	"github.com/banshee-data/geko/internal/catalog"
	"github.com/banshee-data/geko/internal/checkpoint"
	"github.com/banshee-data/geko/internal/config"
	"github.com/banshee-data/geko/internal/export"
	"github.com/banshee-data/geko/internal/fsutil"
	"github.com/banshee-data/geko/internal/httputil"
	"github.com/banshee-data/geko/internal/monitoring"
	"github.com/banshee-data/geko/internal/registry"
	"github.com/banshee-data/geko/internal/resample"
	"github.com/banshee-data/geko/internal/session"
	"github.com/banshee-data/geko/internal/sidecar"
	"github.com/banshee-data/geko/internal/version"
)

// errUsage marks argument errors; usage has already been printed.
var errUsage = errors.New("usage error")

type app struct {
	cfg      *config.Config
	fsys     fsutil.FileSystem
	exporter *export.Exporter
	stdout   io.Writer
	stderr   io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("geko", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { printUsage(stderr) }
	configPath := global.String("config", "", "Configuration file (JSON)")
	quiet := global.Bool("quiet", false, "Suppress diagnostic logging")
	if err := global.Parse(args); err != nil {
		return 1
	}
	if global.NArg() < 1 {
		printUsage(stderr)
		return 1
	}
	if *quiet {
		monitoring.SetLogger(nil)
	}

	var cfg *config.Config
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	} else {
		var (
			path string
			err  error
		)
		if cfg, path, err = config.LoadDefault(); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if path != "" {
			monitoring.Logf("using defaults from %s", path)
		}
	}

	fsys := fsutil.OSFileSystem{}
	exp := export.New(cfg.GetOutputDir())
	a := &app{cfg: cfg, fsys: fsys, exporter: exp, stdout: stdout, stderr: stderr}

	command := global.Arg(0)
	rest := global.Args()[1:]

	var err error
	switch command {
	case "inspect":
		err = a.handleInspect(rest)
	case "ls":
		err = a.handleList(rest)
	case "calibrate":
		err = a.handleCalibrate(rest)
	case "profile":
		err = a.handleProfile(rest)
	case "serve":
		err = a.handleServe(rest)
	case "version":
		fmt.Fprintln(stdout, version.String())
	case "help":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		printUsage(stderr)
		return 1
	}

	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `geko - checkpoint registry, calibration and profile tool

Usage: geko [-config file.json] [-quiet] <command> [options]

Commands:
  inspect    Print the ranked model report of a checkpoint
  ls         List the checkpoints in a directory
  calibrate  Calibrate a pixel point table, grid or profile to meters
  profile    Extract a profile from an estimated grid
  serve      Serve the checkpoint catalog API and debug pages
  version    Show geko version
  help       Show this help message

Examples:
  geko inspect -precise runs/msh5000
  geko ls -dir runs -v -catalog geko.db
  geko calibrate -in dem.csv -hmin 120 -hmax 1850 -lat 40.4 -zoom 13 -out dem_m
  geko calibrate -grid output/msh_1_20_mod_13 -hmax 1850 -lat 40.4 -zoom 13 -invert-y -out msh_m
  geko profile -grid output/msh_1_20_mod_13 -path "0,0;50,25;100,0" -step 5 -out ridge
  geko profile -grid output/msh_1_20_mod_13 -gck runs/msh5000 -path "0,0;100,0" -out ridge
  geko serve -catalog geko.db -listen localhost:8090

Exported files are written under the configured output_dir.
`)
}

func (a *app) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func (a *app) parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

func (a *app) usageError(fs *flag.FlagSet, msg string) error {
	fmt.Fprintf(a.stderr, "Error: %s\n", msg)
	fs.Usage()
	return errUsage
}

// ----------------------------------------------------------------------------
// inspect
// ----------------------------------------------------------------------------

func (a *app) handleInspect(args []string) error {
	fs := a.newFlagSet("inspect")
	precise := fs.Bool("precise", a.cfg.GetPreciseCoefficients(), "Print coefficients at full precision")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return a.usageError(fs, "inspect takes exactly one checkpoint file")
	}

	path := fs.Arg(0)
	c, err := checkpoint.NewStore(a.fsys).Open(path)
	if err != nil {
		return err
	}
	return registry.WriteReport(a.stdout, filepath.Base(checkpoint.ResolvePath(path)), c, *precise)
}

// ----------------------------------------------------------------------------
// ls
// ----------------------------------------------------------------------------

func (a *app) handleList(args []string) error {
	fs := a.newFlagSet("ls")
	dir := fs.String("dir", a.cfg.GetCheckpointDir(), "Directory to scan")
	verbose := fs.Bool("v", false, "Show RMSE and correlation columns")
	catalogPath := fs.String("catalog", "", "Also index the directory into this SQLite catalog")
	if err := a.parse(fs, args); err != nil {
		return err
	}

	rows, err := registry.Scan(a.fsys, *dir)
	if err != nil {
		return err
	}
	if err := registry.WriteSummaryTable(a.stdout, rows, *verbose); err != nil {
		return err
	}

	if *catalogPath == "" {
		return nil
	}
	cat, err := catalog.Open(*catalogPath)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer cat.Close()
	entries, err := cat.Index(a.fsys, *dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Indexed %d checkpoints into %s\n", len(entries), *catalogPath)
	return nil
}

// ----------------------------------------------------------------------------
// calibrate
// ----------------------------------------------------------------------------

func (a *app) handleCalibrate(args []string) error {
	fs := a.newFlagSet("calibrate")
	in := fs.String("in", "", "Input X,Y,Z point table in pixel units")
	grid := fs.String("grid", "", "Input grid basename (.grd/.hdr) in pixel units")
	profile := fs.String("profile", "", "Input profile basename (.prf/.hdr) in pixel units")
	out := fs.String("out", "", "Output basename under output_dir (required)")
	hmin := fs.Float64("hmin", 0, "Minimum elevation in meters")
	hmax := fs.Float64("hmax", math.NaN(), "Maximum elevation in meters (required)")
	lat := fs.Float64("lat", 0, "Latitude of the map center in degrees")
	zoom := fs.Float64("zoom", 0, "Web map zoom level")
	invertY := fs.Bool("invert-y", false, "Source rows are in image order (flips grid rows)")
	if err := a.parse(fs, args); err != nil {
		return err
	}

	inputs := 0
	for _, v := range []string{*in, *grid, *profile} {
		if v != "" {
			inputs++
		}
	}
	if inputs != 1 || *out == "" {
		return a.usageError(fs, "-out and exactly one of -in, -grid or -profile are required")
	}
	if math.IsNaN(*hmax) {
		return a.usageError(fs, "-hmax is required")
	}
	opts := calibration.Options{HMin: *hmin, HMax: *hmax, Latitude: *lat, Zoom: *zoom, InvertY: *invertY}

	var (
		c   calibrated
		err error
	)
	switch {
	case *in != "":
		c, err = a.calibratePoints(*in, *out, opts)
	case *grid != "":
		c, err = a.calibrateGrid(*grid, *out, opts)
	default:
		c, err = a.calibrateProfile(*profile, *out, opts)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Calibrated %s (depth %d, %.6g m/px)\n", c.label, c.params.Depth, c.params.Resolution)
	for _, p := range c.paths {
		fmt.Fprintf(a.stdout, "  wrote %s\n", p)
	}
	return nil
}

// calibrated describes one calibrate run for the summary line.
type calibrated struct {
	label  string
	params calibration.Params
	paths  []string
}

func (a *app) calibratePoints(in, out string, opts calibration.Options) (calibrated, error) {
	data, err := a.fsys.ReadFile(in)
	if err != nil {
		return calibrated{}, err
	}
	raw, err := sidecar.ReadPoints(bytes.NewReader(data))
	if err != nil {
		return calibrated{}, fmt.Errorf("%s: %w", in, err)
	}
	pts, params, err := calibration.CalibratePoints(raw, opts)
	if err != nil {
		return calibrated{}, err
	}
	art, err := a.exporter.ExportPoints(out, pts, params, filepath.Base(in))
	if err != nil {
		return calibrated{}, err
	}
	monitoring.Logf("calibrated %d points from %s", pts.Len(), in)
	return calibrated{label: fmt.Sprintf("%d points", pts.Len()), params: params, paths: art.Paths}, nil
}

// calibrateGrid keeps the source header entries (model description,
// title) and records the source grid.
func (a *app) calibrateGrid(base, out string, opts calibration.Options) (calibrated, error) {
	r, h, err := sidecar.LoadGridShape(a.fsys, base, a.cfg.GridShape())
	if err != nil {
		return calibrated{}, err
	}
	cr, params, err := calibration.CalibrateRaster(r, opts)
	if err != nil {
		return calibrated{}, err
	}
	h.Set(sidecar.KeySource, filepath.Base(base))
	art, err := a.exporter.ExportGrid(out, cr, h)
	if err != nil {
		return calibrated{}, err
	}
	cal, err := a.exporter.ExportCalibration(out, params, filepath.Base(base))
	if err != nil {
		return calibrated{}, err
	}
	return calibrated{
		label:  fmt.Sprintf("%dx%d grid", cr.NRows(), cr.NCols()),
		params: params,
		paths:  append(art.Paths, cal),
	}, nil
}

// calibrateProfile scales distance and elevation. Vertices and sampling are
// carried over in source units.
func (a *app) calibrateProfile(base, out string, opts calibration.Options) (calibrated, error) {
	ps, h, vertices, err := sidecar.LoadProfile(a.fsys, base)
	if err != nil {
		return calibrated{}, err
	}
	sampling := resample.ByCount(len(ps))
	if v, ok := h.Get(sidecar.KeySampling); ok {
		if sampling, err = resample.ParseSampling(v); err != nil {
			return calibrated{}, fmt.Errorf("%s%s: %w", base, sidecar.ExtHeader, err)
		}
	}
	cps, params, err := calibration.CalibrateProfile(ps, opts)
	if err != nil {
		return calibrated{}, err
	}
	h.Set(sidecar.KeySource, filepath.Base(base))
	art, err := a.exporter.ExportProfile(out, cps, vertices, sampling, h)
	if err != nil {
		return calibrated{}, err
	}
	cal, err := a.exporter.ExportCalibration(out, params, filepath.Base(base))
	if err != nil {
		return calibrated{}, err
	}
	return calibrated{
		label:  fmt.Sprintf("%d profile samples", len(cps)),
		params: params,
		paths:  append(art.Paths, cal),
	}, nil
}

// ----------------------------------------------------------------------------
// profile
// ----------------------------------------------------------------------------

// parseVertices reads "x1,y1;x2,y2;...".
func parseVertices(s string) ([]resample.Point, error) {
	var out []resample.Point
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		xs, ys, ok := strings.Cut(pair, ",")
		if !ok {
			return nil, fmt.Errorf("vertex %q is not x,y", pair)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
		if err != nil {
			return nil, fmt.Errorf("vertex %q: %w", pair, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
		if err != nil {
			return nil, fmt.Errorf("vertex %q: %w", pair, err)
		}
		out = append(out, resample.Point{X: x, Y: y})
	}
	return out, nil
}

func (a *app) handleProfile(args []string) error {
	fs := a.newFlagSet("profile")
	grid := fs.String("grid", "", "Grid basename (reads .grd and .hdr) (required)")
	path := fs.String("path", "", `Polyline vertices "x1,y1;x2,y2;..." (required)`)
	n := fs.Int("n", 0, "Number of samples (default from config)")
	step := fs.Float64("step", 0, "Sample spacing; overrides the configured count")
	out := fs.String("out", "", "Output basename under output_dir (required)")
	gck := fs.String("gck", "", "Checkpoint the grid was estimated from; names the output after its model")
	model := fs.Int("model", -1, "Model index to bind from -gck (default: best by RMSE)")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	if *grid == "" || *path == "" || *out == "" {
		return a.usageError(fs, "-grid, -path and -out are required")
	}
	if *model >= 0 && *gck == "" {
		return a.usageError(fs, "-model requires -gck")
	}

	vertices, err := parseVertices(*path)
	if err != nil {
		return err
	}

	sampling := a.cfg.Sampling()
	switch {
	case *n != 0 && *step != 0:
		return a.usageError(fs, "-n and -step are mutually exclusive")
	case *n != 0:
		sampling = resample.ByCount(*n)
	case *step != 0:
		sampling = resample.ByStep(*step)
	}

	s, err := session.Open(a.fsys, *grid, a.cfg.GridShape(), a.exporter, sampling)
	if err != nil {
		return err
	}
	defer s.Close()

	if *gck != "" {
		c, err := checkpoint.NewStore(a.fsys).Open(*gck)
		if err != nil {
			return err
		}
		if *model >= 0 {
			err = s.BindIndex(c, *model)
		} else {
			err = s.BindBest(c)
		}
		if err != nil {
			return err
		}
	}

	for _, v := range vertices {
		if err := s.Pick(v.X, v.Y); err != nil {
			return err
		}
	}
	art, err := s.Export(*out)
	if err != nil {
		return err
	}
	for _, p := range art.Paths {
		fmt.Fprintf(a.stdout, "wrote %s\n", p)
	}
	return nil
}

// ----------------------------------------------------------------------------
// serve
// ----------------------------------------------------------------------------

func (a *app) handleServe(args []string) error {
	fs := a.newFlagSet("serve")
	catalogPath := fs.String("catalog", a.cfg.GetCatalogPath(), "SQLite catalog to serve")
	listen := fs.String("listen", a.cfg.GetListenAddr(), "Listen address")
	if err := a.parse(fs, args); err != nil {
		return err
	}

	cat, err := catalog.Open(*catalogPath)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer cat.Close()

	mux := http.NewServeMux()
	if err := cat.AttachAdminRoutes(mux); err != nil {
		return err
	}
	cat.AttachAPIRoutes(mux)
	monitoring.Logf("serving catalog %s on http://%s/api/checkpoints", *catalogPath, *listen)
	return http.ListenAndServe(*listen, httputil.LoggingMiddleware(mux))
}
