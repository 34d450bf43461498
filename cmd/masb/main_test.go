package main

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpeters/masb/internal/geom"
	"github.com/rpeters/masb/internal/npyio"
)

func writeFixturePlane(t *testing.T, dir string, n int) {
	t.Helper()
	var rows [][]float32
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			rows = append(rows, []float32{float32(x), float32(y), 0})
		}
	}
	require.NoError(t, npyio.WriteFloat32Matrix(filepath.Join(dir, "coords.npy"), rows, 3))
}

func TestRunNormalsProducesUnitVerticalNormals(t *testing.T) {
	dir := t.TempDir()
	writeFixturePlane(t, dir, 6)

	require.NoError(t, runNormals([]string{"-k", "8", dir}))

	rows, err := npyio.ReadFloat32Matrix(filepath.Join(dir, "normals.npy"), 3)
	require.NoError(t, err)
	require.Len(t, rows, 36)

	for _, r := range rows {
		n := geom.Vec3{X: r[0], Y: r[1], Z: r[2]}
		require.InDelta(t, 1.0, math.Abs(float64(n.Z)), 1e-2)
	}
}

func TestRunNormalsMissingDir(t *testing.T) {
	err := runNormals([]string{"-k", "5"})
	require.Error(t, err)
}

func TestRunMAEndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeFixturePlane(t, dir, 6)
	require.NoError(t, runNormals([]string{dir}))

	require.NoError(t, runMA([]string{"-initial-radius", "50", dir}))

	inside, err := npyio.ReadFloat32Matrix(filepath.Join(dir, "ma_coords_in.npy"), 3)
	require.NoError(t, err)
	require.Len(t, inside, 36)

	outside, err := npyio.ReadFloat32Matrix(filepath.Join(dir, "ma_coords_out.npy"), 3)
	require.NoError(t, err)
	require.Len(t, outside, 36)

	qidxIn, err := npyio.ReadInt32Vector(filepath.Join(dir, "ma_qidx_in.npy"))
	require.NoError(t, err)
	require.Len(t, qidxIn, 36)
}

func TestRunMAWithConfigOverride(t *testing.T) {
	dir := t.TempDir()
	writeFixturePlane(t, dir, 5)
	require.NoError(t, runNormals([]string{dir}))

	configPath := filepath.Join(dir, "overrides.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"initial_radius": 25}`), 0o644))

	require.NoError(t, runMA([]string{"-config", configPath, dir}))

	outside, err := npyio.ReadFloat32Matrix(filepath.Join(dir, "ma_coords_out.npy"), 3)
	require.NoError(t, err)
	for i, row := range outside {
		p := geom.Vec3{X: float32(i / 5), Y: float32(i % 5), Z: 0}
		c := geom.Vec3{X: row[0], Y: row[1], Z: row[2]}
		require.LessOrEqual(t, geom.Length(geom.Sub(c, p)), float32(25.001))
	}
}
