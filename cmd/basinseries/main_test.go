package main

import (
	"bytes"
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/image/tiff"

	"github.com/lox/basinseries/internal/config"
)

const fixtureAOI = `{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[20,0],[20,20],[0,20],[0,0]]]}}`

const fixtureManifest = `name: gridmet
origin_x: 0
origin_y: 20
pixel_size: 10
images:
  - id: d1
    time: "2021-01-01"
    bands: {pr: one.tif}
  - id: d2
    time: "2021-01-02"
    bands: {pr: three.tif}
  - id: d3
    time: "2021-01-03"
    bands: {pr: one.tif}
`

const fixtureCatalogue = `aoi: aoi.geojson
defaults:
  workers: 2
variables:
  - name: pr
    manifest: gridmet/manifest.yaml
    band: pr
    scale: 10
    smooth: [2]
    resample: [W]
  - name: broken
    manifest: nowhere/manifest.yaml
    band: pr
    scale: 10
`

func writeTIFF(t *testing.T, path string, v uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "gridmet"), 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"aoi.geojson":           fixtureAOI,
		"catalogue.yaml":        fixtureCatalogue,
		"gridmet/manifest.yaml": fixtureManifest,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	writeTIFF(t, filepath.Join(dir, "gridmet", "one.tif"), 1)
	writeTIFF(t, filepath.Join(dir, "gridmet", "three.tif"), 3)
	return dir
}

func TestRunCommand(t *testing.T) {
	dir := writeFixture(t)
	out := filepath.Join(dir, "out")
	db := filepath.Join(dir, "runs.db")

	cmd := &RunCmd{
		Catalogue: filepath.Join(dir, "catalogue.yaml"),
		Out:       out,
		DB:        db,
		Parallel:  2,
	}
	if err := cmd.Run(context.Background(), zap.NewNop().Sugar()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got, err := os.ReadFile(filepath.Join(out, "pr.csv"))
	if err != nil {
		t.Fatal(err)
	}
	want := "date,mean,SMA2\n" +
		"2021-01-01T00:00:00Z,1,\n" +
		"2021-01-02T00:00:00Z,3,2\n" +
		"2021-01-03T00:00:00Z,1,2\n"
	if string(got) != want {
		t.Errorf("pr.csv =\n%s\nwant\n%s", got, want)
	}

	weekly, err := os.ReadFile(filepath.Join(out, "pr_W.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(weekly), "date,mean\n") {
		t.Errorf("pr_W.csv = %q", weekly)
	}

	if _, err := os.Stat(filepath.Join(out, "broken.csv")); !os.IsNotExist(err) {
		t.Errorf("broken.csv written for a failed variable: %v", err)
	}

	var listing bytes.Buffer
	if err := (&RunsCmd{DB: db, Limit: 5}).Run(&listing); err != nil {
		t.Fatalf("runs Run() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(listing.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("runs listing = %q, want header and one run", listing.String())
	}
	if fields := strings.Fields(lines[1]); len(fields) != 5 || fields[2] != "2" || fields[3] != "1" {
		t.Errorf("run row = %q, want 2 variables with 1 failed", lines[1])
	}
}

func TestRunCommandSelectsVariables(t *testing.T) {
	dir := writeFixture(t)
	cmd := &RunCmd{
		Catalogue: filepath.Join(dir, "catalogue.yaml"),
		Variables: []string{"broken"},
		Out:       filepath.Join(dir, "out"),
	}
	if err := cmd.Run(context.Background(), zap.NewNop().Sugar()); err == nil {
		t.Error("Run() error = nil, want failure when every variable fails")
	}

	cmd.Variables = []string{"nope"}
	if err := cmd.Run(context.Background(), zap.NewNop().Sugar()); err == nil {
		t.Error("Run() error = nil for unknown variable")
	}
}

func TestReduceCommand(t *testing.T) {
	dir := writeFixture(t)
	cmd := &ReduceCmd{
		Manifest: filepath.Join(dir, "gridmet", "manifest.yaml"),
		Band:     "pr",
		Scale:    10,
		AOI:      filepath.Join(dir, "aoi.geojson"),
		From:     "2021-01-02",
	}

	var buf bytes.Buffer
	if err := cmd.Run(context.Background(), zap.NewNop().Sugar(), &buf); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := "date,mean\n2021-01-02T00:00:00Z,3\n2021-01-03T00:00:00Z,1\n"
	if buf.String() != want {
		t.Errorf("output =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestCatalogueCommand(t *testing.T) {
	var buf bytes.Buffer
	if err := (&CatalogueCmd{Root: "/data/collections"}).Run(&buf); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	c, err := config.Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("printed catalogue does not parse: %v", err)
	}
	v, ok := c.Lookup("soil_moisture_am")
	if !ok || v.Manifest != "/data/collections/SPL3SMP_E/manifest.yaml" {
		t.Errorf("soil_moisture_am = %+v", v)
	}
}
