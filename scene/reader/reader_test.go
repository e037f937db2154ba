package reader

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/achilleasa/wavefront/types"
)

func writeSceneFile(t *testing.T, dir, name, contents string) string {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadScene(t *testing.T) {
	dir := t.TempDir()
	writeSceneFile(t, dir, "light.scene", `
sphere 0 10 -5 2   # overhead light
albedo 0 0 0
emission 4 4 4
`)
	path := writeSceneFile(t, dir, "main.scene", `
# test scene
camera 0 1 2 45
sky 1 1 1 0 0 0
sphere 0 0 -5 1
albedo 0.5 0.25 0.125
include light.scene
`)

	sc, err := ReadScene(path)
	if err != nil {
		t.Fatal(err)
	}

	if sc.Camera.FOV != 45 || sc.Camera.Position != types.XYZ(0, 1, 2) {
		t.Fatalf("expected camera at (0, 1, 2) with fov 45; got %s", sc.Camera)
	}
	if sc.Sky.Zenith != types.XYZ(0, 0, 0) {
		t.Fatalf("expected black zenith; got %v", sc.Sky.Zenith)
	}
	if sc.SphereCount() != 2 {
		t.Fatalf("expected 2 spheres; got %d", sc.SphereCount())
	}
	if sc.Spheres[0].Albedo != types.XYZ(0.5, 0.25, 0.125) {
		t.Fatalf("expected first sphere albedo to be set; got %v", sc.Spheres[0].Albedo)
	}
	if sc.Spheres[1].Emission != types.XYZ(4, 4, 4) || sc.Spheres[1].Radius != 2 {
		t.Fatalf("expected included emissive sphere; got %+v", sc.Spheres[1])
	}
}

func TestReadRemoteScene(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/scenes/main.scene":
			w.Write([]byte("sphere 0 0 -3 1\ninclude extra.scene\n"))
		case "/scenes/extra.scene":
			w.Write([]byte("sphere 2 0 -3 0.5\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	sc, err := ReadScene(server.URL + "/scenes/main.scene")
	if err != nil {
		t.Fatal(err)
	}
	if sc.SphereCount() != 2 {
		t.Fatalf("expected 2 spheres; got %d", sc.SphereCount())
	}
}

func TestReadSceneErrors(t *testing.T) {
	dir := t.TempDir()

	specs := []struct {
		contents string
		expErr   string
	}{
		{"sphere 0 0 1", "expected 4 arguments; got 3"},
		{"sphere 0 0 1 -1", "radius must be positive"},
		{"albedo 1 1 1", "must follow a sphere definition"},
		{"camera 0 0 0 abc", "could not parse argument 4"},
		{"camera 0 0 0 180", "fov must be in"},
		{"teapot 1", "unknown directive 'teapot'"},
		{"include missing.scene", "referenced from"},
	}

	for index, spec := range specs {
		path := writeSceneFile(t, dir, "bad.scene", spec.contents)
		_, err := ReadScene(path)
		if err == nil || !strings.Contains(err.Error(), spec.expErr) {
			t.Errorf("[spec %d] expected error containing %q; got %v", index, spec.expErr, err)
		}
	}
}

func TestReadSceneIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	path := writeSceneFile(t, dir, "loop.scene", "include loop.scene\n")

	_, err := ReadScene(path)
	if err == nil || !strings.Contains(err.Error(), "max include depth") {
		t.Fatalf("expected include depth error; got %v", err)
	}
}
