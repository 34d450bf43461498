// Command masb is the driver around the medial-axis shrinking-ball core:
// a thin CLI that loads .npy arrays, converts degrees to radians, invokes
// the core, and writes .npy arrays and the compute_ma metadata file back
// out. None of the geometric algorithm lives here, per this module's
// convention of keeping cmd/* entry points thin wrappers over internal/*.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/rpeters/masb/internal/geom"
	"github.com/rpeters/masb/internal/kdtree"
	"github.com/rpeters/masb/internal/masbconfig"
	"github.com/rpeters/masb/internal/masbreport"
	"github.com/rpeters/masb/internal/masbstore"
	"github.com/rpeters/masb/internal/masbversion"
	"github.com/rpeters/masb/internal/normals"
	"github.com/rpeters/masb/internal/npyio"
	"github.com/rpeters/masb/internal/shrinkball"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "normals":
		err = runNormals(os.Args[2:])
	case "ma":
		err = runMA(os.Args[2:])
	case "inspect":
		err = runInspect(os.Args[2:])
	case "version":
		fmt.Println(masbversion.String())
		return
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("masb: %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: masb <normals|ma|inspect> [flags] <dir> | masb version")
}

func loadCoords(dir string) ([]geom.Vec3, error) {
	rows, err := npyio.ReadFloat32Matrix(filepath.Join(dir, "coords.npy"), 3)
	if err != nil {
		return nil, err
	}
	return rowsToVec3(rows), nil
}

func loadNormals(dir string) ([]geom.Vec3, error) {
	rows, err := npyio.ReadFloat32Matrix(filepath.Join(dir, "normals.npy"), 3)
	if err != nil {
		return nil, err
	}
	return rowsToVec3(rows), nil
}

func rowsToVec3(rows [][]float32) []geom.Vec3 {
	out := make([]geom.Vec3, len(rows))
	for i, r := range rows {
		out[i] = geom.Vec3{X: r[0], Y: r[1], Z: r[2]}
	}
	return out
}

func vec3ToRows(points []geom.Vec3) [][]float32 {
	out := make([][]float32, len(points))
	for i, p := range points {
		out[i] = []float32{p.X, p.Y, p.Z}
	}
	return out
}

func runNormals(args []string) error {
	fs := flag.NewFlagSet("normals", flag.ExitOnError)
	k := fs.Int("k", 10, "neighbor count for PCA normal estimation")
	rearrange := fs.Bool("rearrange", true, "permit internal point reordering in the k-d tree")
	configPath := fs.String("config", "", "optional JSON file overriding flag defaults")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("normals: missing <dir>")
	}
	dir := fs.Arg(0)

	ov, err := loadOverrides(*configPath)
	if err != nil {
		return err
	}
	kVal := ov.ApplyNormalsK(*k)
	rearrangeVal := ov.ApplyRearrange(*rearrange)

	points, err := loadCoords(dir)
	if err != nil {
		return err
	}
	log.Printf("loaded %d points from %s", len(points), dir)

	start := time.Now()
	idx := kdtree.Build(points, rearrangeVal)
	log.Printf("built k-d tree in %s (depth=%d leaves=%d)", time.Since(start), idx.Depth(), idx.LeafCount())

	start = time.Now()
	out, err := normals.Estimate(points, idx, kVal)
	if err != nil {
		return err
	}
	log.Printf("estimated %d normals in %s", len(out), time.Since(start))

	return npyio.WriteFloat32Matrix(filepath.Join(dir, "normals.npy"), vec3ToRows(out), 3)
}

func runMA(args []string) error {
	fs := flag.NewFlagSet("ma", flag.ExitOnError)
	initialRadius := fs.Float64("initial-radius", 100, "upper bound on ball radius")
	denoisePreserveDeg := fs.Float64("denoise-preserve-deg", 20, "separation-angle cutoff protecting sharp features, degrees")
	denoisePlanarDeg := fs.Float64("denoise-planar-deg", 32, "angle cutoff rejecting near-tangent configurations, degrees")
	nanForInitR := fs.Bool("nan-for-initr", false, "emit NaN coordinates for centers with radius == initial-radius")
	rearrange := fs.Bool("rearrange", true, "permit internal point reordering in the k-d tree")
	htmlReport := fs.String("html-report", "", "optional path to write a radius-distribution HTML chart")
	recordDB := fs.String("record-db", "", "optional path to a SQLite run-history database")
	configPath := fs.String("config", "", "optional JSON file overriding flag defaults")
	stats := fs.Bool("stats", false, "log nearest-neighbor query count and cumulative query time")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("ma: missing <dir>")
	}
	dir := fs.Arg(0)

	ov, err := loadOverrides(*configPath)
	if err != nil {
		return err
	}
	params := shrinkball.Params{
		InitialRadius:   float32(ov.ApplyInitialRadius(*initialRadius)),
		DenoisePreserve: deg2rad(float32(ov.ApplyDenoisePreserveDeg(*denoisePreserveDeg))),
		DenoisePlanar:   deg2rad(float32(ov.ApplyDenoisePlanarDeg(*denoisePlanarDeg))),
		NaNForInitR:     ov.ApplyNaNForInitR(*nanForInitR),
	}
	rearrangeVal := ov.ApplyRearrange(*rearrange)
	if err := params.Validate(); err != nil {
		return err
	}

	points, err := loadCoords(dir)
	if err != nil {
		return err
	}
	norms, err := loadNormals(dir)
	if err != nil {
		return err
	}
	log.Printf("loaded %d points, %d normals from %s", len(points), len(norms), dir)

	runStart := time.Now()
	idx := kdtree.Build(points, rearrangeVal)
	log.Printf("built k-d tree in %s", time.Since(runStart))

	sbStart := time.Now()
	result, err := shrinkball.ShrinkBallSides(points, norms, idx, params)
	if err != nil {
		return err
	}
	log.Printf("shrinking ball finished in %s", time.Since(sbStart))
	if *stats {
		log.Printf("nearest-neighbor queries: %d, cumulative query time: %s", result.Queries, result.QueryTime)
	}

	insideOut := applyNaN(points, result.Inside, result.QidxInside, params)
	outsideOut := applyNaN(points, result.Outside, result.QidxOutside, params)

	if err := npyio.WriteFloat32Matrix(filepath.Join(dir, "ma_coords_in.npy"), vec3ToRows(insideOut), 3); err != nil {
		return err
	}
	if err := npyio.WriteFloat32Matrix(filepath.Join(dir, "ma_coords_out.npy"), vec3ToRows(outsideOut), 3); err != nil {
		return err
	}
	if err := npyio.WriteInt32Vector(filepath.Join(dir, "ma_qidx_in.npy"), toInt32(result.QidxInside)); err != nil {
		return err
	}
	if err := npyio.WriteInt32Vector(filepath.Join(dir, "ma_qidx_out.npy"), toInt32(result.QidxOutside)); err != nil {
		return err
	}
	if err := writeMetadata(filepath.Join(dir, "compute_ma"), params); err != nil {
		return err
	}

	degenInside, degenOutside := countDegenerate(result.QidxInside), countDegenerate(result.QidxOutside)
	log.Printf("degenerate sides: inside=%d outside=%d of %d points", degenInside, degenOutside, len(points))

	if *htmlReport != "" {
		sides := []masbreport.RadiusSummary{
			{Label: "inside", Radii: masbreport.Radii(points, result.Inside)},
			{Label: "outside", Radii: masbreport.Radii(points, result.Outside)},
		}
		if err := masbreport.WriteHTMLReport(sides, *htmlReport); err != nil {
			return err
		}
	}

	if *recordDB != "" {
		store, err := masbstore.Open(*recordDB)
		if err != nil {
			return err
		}
		defer store.Close()
		err = store.RecordRun(masbstore.RunRecord{
			RunID:             uuid.NewString(),
			CreatedAt:         time.Now().UTC().Format(time.RFC3339),
			Stage:             "ma",
			PointCount:        len(points),
			InitialRadius:     float64(params.InitialRadius),
			DenoisePreserve:   float64(params.DenoisePreserve),
			DenoisePlanar:     float64(params.DenoisePlanar),
			NaNForInitR:       params.NaNForInitR,
			DegenerateInside:  degenInside,
			DegenerateOutside: degenOutside,
			WallTimeMs:        float64(time.Since(runStart).Milliseconds()),
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	rearrange := fs.Bool("rearrange", true, "permit internal point reordering in the k-d tree")
	plotPath := fs.String("plot", "", "optional path to write a depth histogram PNG (one sample: the tree's maximum depth; per-leaf depths are not collected)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("inspect: missing <dir>")
	}
	dir := fs.Arg(0)

	points, err := loadCoords(dir)
	if err != nil {
		return err
	}

	start := time.Now()
	idx := kdtree.Build(points, *rearrange)
	elapsed := time.Since(start)

	log.Printf("points=%d depth=%d leaves=%d build_time=%s", idx.Len(), idx.Depth(), idx.LeafCount(), elapsed)

	if *plotPath != "" {
		depths := []float64{float64(idx.Depth())}
		if err := masbreport.PlotLeafDepths(depths, *plotPath); err != nil {
			return err
		}
	}
	return nil
}

func deg2rad(deg float32) float32 { return deg * (3.14159265 / 180) }

func loadOverrides(path string) (*masbconfig.Overrides, error) {
	if path == "" {
		return nil, nil
	}
	return masbconfig.Load(path)
}

func applyNaN(points, centers []geom.Vec3, qidx []int, params shrinkball.Params) []geom.Vec3 {
	if !params.NaNForInitR {
		return centers
	}
	out := make([]geom.Vec3, len(centers))
	nan := float32(math.NaN())
	for i := range centers {
		r := geom.Length(geom.Sub(centers[i], points[i]))
		if r >= params.InitialRadius {
			out[i] = geom.Vec3{X: nan, Y: nan, Z: nan}
		} else {
			out[i] = centers[i]
		}
	}
	return out
}

func countDegenerate(qidx []int) int {
	n := 0
	for i, q := range qidx {
		if q == i {
			n++
		}
	}
	return n
}

func toInt32(vals []int) []int32 {
	out := make([]int32, len(vals))
	for i, v := range vals {
		out[i] = int32(v)
	}
	return out
}

func writeMetadata(path string, params shrinkball.Params) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	defer f.Close()

	_, err = fmt.Fprintf(f,
		"initial_radius=%v\nnan_for_initr=%v\ndenoise_preserve=%v\ndenoise_planar=%v\n",
		params.InitialRadius, params.NaNForInitR, params.DenoisePreserve, params.DenoisePlanar,
	)
	return err
}
