// Command scancapture drives a full capture session against a synthetic
// sensing source: scripted surface fragments and camera frames flow through
// the pipeline, and the reconstructed mesh is exported on stop. It doubles as
// an integration harness and a demo of the session API.
package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/banshee-data/surface.capture/internal/capture"
	"github.com/banshee-data/surface.capture/internal/config"
	"github.com/banshee-data/surface.capture/internal/export"
	"github.com/banshee-data/surface.capture/internal/fsutil"
	"github.com/banshee-data/surface.capture/internal/geom"
	"github.com/banshee-data/surface.capture/internal/mesh"
	"github.com/banshee-data/surface.capture/internal/monitoring"
	"github.com/banshee-data/surface.capture/internal/sensor"
	"github.com/banshee-data/surface.capture/internal/session"
	"github.com/banshee-data/surface.capture/internal/storage/sqlite"
	"github.com/banshee-data/surface.capture/internal/timeutil"
)

var (
	configPath = flag.String("config", "", "Optional tuning config JSON file")
	dataDir    = flag.String("data", "scan-data", "Session data directory (samples + index)")
	outDir     = flag.String("out", "scan-out", "Export output directory")
	formatName = flag.String("format", "bundle", "Export format: mesh or bundle")
	gridSize   = flag.Int("grid", 4, "Synthetic room size in fragments per side")
	frames     = flag.Int("frames", 90, "Number of synthetic camera frames to replay")
	frameDelay = flag.Duration("frame-delay", 40*time.Millisecond, "Delay between synthetic frames")
	verbose    = flag.Bool("verbose", false, "Enable debug logging")
)

// logPresenter prints presentation callbacks instead of rendering them.
type logPresenter struct{}

func (logPresenter) SessionStateChanged(state session.State) {
	monitoring.Logf("state: %s", state)
}

func (logPresenter) FragmentUpserted(node mesh.VizNode) {
	monitoring.Debugf("fragment %s: %d verts, %d tris", node.FragmentID, node.VertexCount, node.TriangleCount)
}

func (logPresenter) FragmentRemoved(id string) {
	monitoring.Debugf("fragment %s removed", id)
}

func (logPresenter) Guidance(text string, critical bool) {
	if critical {
		monitoring.Logf("ALERT: %s", text)
		return
	}
	monitoring.Logf("hint: %s", text)
}

func (logPresenter) CoverageChanged(fraction float64, fragments int) {
	monitoring.Debugf("coverage %.1f%% across %d fragments", fraction*100, fragments)
}

func (logPresenter) CoverageMilestone(pct int) {
	monitoring.Logf("coverage milestone: %d%%", pct)
}

func main() {
	flag.Parse()
	monitoring.SetDebug(*verbose)

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		loaded, err := config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}

	format, err := export.ParseFormat(*formatName)
	if err != nil {
		log.Fatalf("%v", err)
	}

	fs := fsutil.OSFileSystem{}
	if err := fs.MkdirAll(*dataDir, 0755); err != nil {
		log.Fatalf("create data dir: %v", err)
	}
	db, err := sqlite.Open(filepath.Join(*dataDir, "samples.db"))
	if err != nil {
		log.Fatalf("open sample index: %v", err)
	}
	defer db.Close()

	clock := timeutil.RealClock{}
	store, err := capture.NewStore(cfg, clock, fs, db, *dataDir)
	if err != nil {
		log.Fatalf("create sample store: %v", err)
	}
	if err := store.Clear(); err != nil {
		log.Fatalf("reset sample store: %v", err)
	}

	source := sensor.NewSyntheticSource()
	sess := session.NewSession(session.Config{
		Tuning:    cfg,
		Clock:     clock,
		Source:    source,
		Store:     store,
		Exporter:  export.NewExporter(fs, *outDir),
		Presenter: logPresenter{},
	})
	defer sess.Close()

	if err := sess.Start(); err != nil {
		log.Fatalf("start: %v", err)
	}

	replay(source, clock, *gridSize, *frames, *frameDelay)

	if err := sess.Stop(); err != nil {
		log.Fatalf("stop: %v", err)
	}

	path, err := sess.Export(format)
	if err != nil {
		log.Fatalf("export: %v", err)
	}
	count, _ := store.SampleCount()
	monitoring.Logf("exported %s (%d samples)", path, count)
}

// replay walks a synthetic room: one quad fragment per grid cell, camera
// frames tracing a diagonal path with mildly varying light.
func replay(source *sensor.SyntheticSource, clock timeutil.Clock, grid, frames int, delay time.Duration) {
	for x := 0; x < grid; x++ {
		for z := 0; z < grid; z++ {
			id := fmt.Sprintf("surface-%d-%d", x, z)
			origin := geom.Vec3{X: float32(x), Z: float32(z)}
			source.EmitFragment(sensor.QuadFragment(id, origin, clock.Now()))
		}
	}

	for i := 0; i < frames; i++ {
		pose := geom.IdentityPose()
		pose[3] = 0.1 * float64(i)   // walk along x
		pose[11] = 0.05 * float64(i) // drift along z
		source.EmitFrame(sensor.FrameEvent{
			Image:        []byte("synthetic-jpeg"),
			Pose:         pose,
			AmbientLight: 700 + 50*float64(i%5),
			Tracking:     sensor.TrackingNormal,
			FeatureCount: 150 + i%100,
			Timestamp:    clock.Now(),
		})
		clock.Sleep(delay)
	}
}
