package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// TestE2EWallExample exercises the full pipeline: Lisp source → engine →
// scene → growth → tessellate → meshes. This is the path the command line
// takes, minus flag parsing.
func TestE2EWallExample(t *testing.T) {
	app := NewApp(nil)

	source, err := os.ReadFile("examples/wall.tendril")
	if err != nil {
		t.Fatalf("failed to read wall.tendril: %v", err)
	}

	opts := DefaultRunOptions()
	opts.Ticks = 40
	opts.Mesh = true
	result := app.Run(string(source), opts)

	// No errors expected.
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("eval error (line %d): %s", e.Line, e.Message)
		}
		t.FailNow()
	}

	// One graph per seed.
	if len(result.Graphs) != 2 {
		t.Fatalf("expected 2 graphs, got %d", len(result.Graphs))
	}
	if result.Ticks == 0 || result.Ticks > 40 {
		t.Errorf("expected between 1 and 40 ticks, got %d", result.Ticks)
	}

	for i, g := range result.Graphs {
		if g.Nodes < 2 {
			t.Errorf("graph %d: expected growth, got %d nodes", i, g.Nodes)
		}
		if len(g.Segments) == 0 || len(g.Segments)%2 != 0 {
			t.Errorf("graph %d: expected segment pairs, got %d points", i, len(g.Segments))
		}
	}

	if len(result.Meshes) < 2 {
		t.Fatalf("expected at least one mesh per graph, got %d", len(result.Meshes))
	}
	seen := map[int]bool{}
	for _, m := range result.Meshes {
		seen[m.Graph] = true

		// Each mesh must have non-empty geometry.
		if len(m.Vertices) == 0 {
			t.Errorf("mesh %q: no vertices", m.PartName)
		}
		if len(m.Normals) != len(m.Vertices) {
			t.Errorf("mesh %q: %d normals for %d vertices", m.PartName, len(m.Normals), len(m.Vertices))
		}
		if len(m.Indices) == 0 {
			t.Errorf("mesh %q: no indices", m.PartName)
		}

		// Must have a color assigned.
		if m.Color == "" {
			t.Errorf("mesh %q: no color assigned", m.PartName)
		}
	}
	if !seen[0] || !seen[1] {
		t.Errorf("expected meshes for both graphs, got %v", seen)
	}
}

// TestE2EEmptySource ensures the pipeline handles empty input gracefully.
func TestE2EEmptySource(t *testing.T) {
	app := NewApp(nil)
	result := app.Run("", DefaultRunOptions())

	if len(result.Errors) > 0 {
		t.Errorf("unexpected errors for empty source: %v", result.Errors)
	}
	if len(result.Graphs) != 0 {
		t.Errorf("expected 0 graphs for empty source, got %d", len(result.Graphs))
	}
}

// TestE2ESyntaxError ensures eval errors are reported, not fatal errors.
func TestE2ESyntaxError(t *testing.T) {
	app := NewApp(nil)
	result := app.Run(`(surface "wall"`, DefaultRunOptions())

	if len(result.Errors) == 0 {
		t.Fatal("expected eval errors for syntax error")
	}
	if len(result.Graphs) != 0 {
		t.Errorf("expected 0 graphs on error, got %d", len(result.Graphs))
	}
}

// TestE2EDeterministic checks that a fixed seed reproduces the same vines.
func TestE2EDeterministic(t *testing.T) {
	source := `
(terrain "ground" :height 0)
(surface "post" (translate (cylinder :height 4 :radius 0.3) (vec3 0 2 0)))
(seed (vec3 0.31 0.01 0) :adhesion (vec3 -1 0 0))
`
	opts := DefaultRunOptions()
	opts.Ticks = 30
	opts.Seed = 42

	a := NewApp(nil).Run(source, opts)
	b := NewApp(nil).Run(source, opts)
	if len(a.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", a.Errors)
	}
	if !reflect.DeepEqual(a.Graphs, b.Graphs) {
		t.Error("expected identical graphs for the same seed")
	}
}

// TestE2EProfileOverride checks that an explicit profile replaces the
// script's.
func TestE2EProfileOverride(t *testing.T) {
	source := `
(terrain "ground" :height 0)
(profile :max-length 6)
(seed (vec3 0 0.01 0))
`
	p := DefaultRunOptions()
	p.Ticks = 500
	short := shortProfileForApp()
	p.Profile = &short

	result := NewApp(nil).Run(source, p)
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Graphs) != 1 {
		t.Fatalf("expected 1 graph, got %d", len(result.Graphs))
	}
	g := result.Graphs[0]
	if g.Growing || g.LiveRoots != 0 {
		t.Errorf("expected growth to finish under the short profile, got growing=%v live=%d", g.Growing, g.LiveRoots)
	}
	if result.Ticks >= 500 {
		t.Errorf("expected growth to finish early, ran %d ticks", result.Ticks)
	}
}

// TestWriteResult checks the JSON shape of a result.
func TestWriteResult(t *testing.T) {
	result := NewApp(nil).Run(`(terrain "ground" :height 0) (seed (vec3 0 0.01 0))`, DefaultRunOptions())

	var buf bytes.Buffer
	if err := writeResult(&buf, result); err != nil {
		t.Fatalf("writeResult: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("result is not valid JSON: %v", err)
	}
	for _, key := range []string{"ticks", "graphs", "meshes", "errors", "warnings"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing key %q in %s", key, buf.String())
		}
	}
	// Empty slices serialize as [] not null.
	if decoded["meshes"] == nil {
		t.Error("meshes should serialize as an empty array")
	}
}

// TestWriteResultFile checks that --out writes a complete JSON file and
// reports failures.
func TestWriteResultFile(t *testing.T) {
	result := NewApp(nil).Run(`(terrain "ground" :height 0) (seed (vec3 0 0.01 0))`, DefaultRunOptions())

	path := filepath.Join(t.TempDir(), "result.json")
	if err := writeResultFile(path, result); err != nil {
		t.Fatalf("writeResultFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	var decoded RunResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("file is not valid JSON: %v", err)
	}
	if decoded.Ticks != result.Ticks || len(decoded.Graphs) != len(result.Graphs) {
		t.Errorf("decoded ticks=%d graphs=%d, want ticks=%d graphs=%d",
			decoded.Ticks, len(decoded.Graphs), result.Ticks, len(result.Graphs))
	}

	missing := filepath.Join(t.TempDir(), "no-such-dir", "result.json")
	if err := writeResultFile(missing, result); err == nil {
		t.Error("expected an error writing into a missing directory")
	}
}
