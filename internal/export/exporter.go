package export

import (
	"archive/zip"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/banshee-data/surface.capture/internal/fsutil"
	"github.com/banshee-data/surface.capture/internal/mesh"
	"github.com/banshee-data/surface.capture/internal/monitoring"
	"github.com/banshee-data/surface.capture/internal/security"
	"github.com/banshee-data/surface.capture/internal/storage/sqlite"
)

// Format selects the export artifact type.
type Format string

const (
	// FormatMesh writes only the text mesh file.
	FormatMesh Format = "mesh"
	// FormatBundle writes a zip archive holding the text mesh plus the
	// captured sample images and their pose sidecars.
	FormatBundle Format = "bundle"
)

// ParseFormat maps a command-line or bridge-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatMesh, FormatBundle:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown export format %q (want %q or %q)", s, FormatMesh, FormatBundle)
	}
}

// Exporter writes export artifacts into a fixed output directory. Artifact
// paths are validated against that directory so a hostile artifact name can
// never escape it.
type Exporter struct {
	fs     fsutil.FileSystem
	outDir string
}

// NewExporter creates an exporter writing into outDir (created on demand).
func NewExporter(fs fsutil.FileSystem, outDir string) *Exporter {
	return &Exporter{fs: fs, outDir: outDir}
}

// Export serializes the combined mesh (and, for FormatBundle, the sample set)
// into a new artifact and returns its path. name may be empty, in which case
// a fresh scan id names the artifact. On any failure the partial artifact is
// deleted before the error is returned.
func (e *Exporter) Export(m *mesh.CombinedMesh, samples []sqlite.SampleRow, format Format, name string) (string, error) {
	if name == "" {
		name = "scan-" + uuid.NewString()
	}
	name = security.SanitizeFilename(name)

	var filename string
	switch format {
	case FormatMesh:
		filename = name + ".mesh.txt"
	case FormatBundle:
		filename = name + ".zip"
	default:
		return "", fmt.Errorf("unknown export format %q", format)
	}

	if err := e.fs.MkdirAll(e.outDir, 0755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(e.outDir, filename)
	if err := security.ValidatePathWithinDirectory(path, e.outDir); err != nil {
		return "", fmt.Errorf("export path rejected: %w", err)
	}

	var err error
	switch format {
	case FormatMesh:
		err = e.writeMeshFile(path, m)
	case FormatBundle:
		err = e.writeBundle(path, m, samples)
	}
	if err != nil {
		// Never leave a half-written artifact behind.
		e.fs.Remove(path)
		return "", fmt.Errorf("export %s: %w", format, err)
	}
	monitoring.Logf("export: wrote %s artifact %s", format, path)
	return path, nil
}

func (e *Exporter) writeMeshFile(path string, m *mesh.CombinedMesh) error {
	f, err := e.fs.Create(path)
	if err != nil {
		return err
	}
	if err := WriteMeshText(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeBundle zips the text mesh together with every indexed sample image and
// sidecar under images/. Samples arrive in capture order, so the archive
// layout is stable for a given session.
func (e *Exporter) writeBundle(path string, m *mesh.CombinedMesh, samples []sqlite.SampleRow) error {
	f, err := e.fs.Create(path)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(f)

	fail := func(err error) error {
		zw.Close()
		f.Close()
		return err
	}

	entry, err := zw.Create("mesh.txt")
	if err != nil {
		return fail(err)
	}
	if err := WriteMeshText(entry, m); err != nil {
		return fail(err)
	}

	for _, row := range samples {
		for _, src := range []string{row.ImagePath, row.MetaPath} {
			data, err := e.fs.ReadFile(src)
			if err != nil {
				return fail(fmt.Errorf("bundle sample %d: %w", row.Idx, err))
			}
			entry, err := zw.Create("images/" + filepath.Base(src))
			if err != nil {
				return fail(err)
			}
			if _, err := entry.Write(data); err != nil {
				return fail(err)
			}
		}
	}

	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
