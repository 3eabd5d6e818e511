package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ravi-parthasarathy/drafter/pkg/export"
	"github.com/ravi-parthasarathy/drafter/pkg/pipeline"
)

const cameraProto = `
syntax = "proto3";

message Empty {}

message Frame {
  bytes data = 1;
  int32 width = 2;
  int32 height = 3;
}

service Camera {
  rpc Capture(Empty) returns (Frame);
}
`

const detectorProto = `
syntax = "proto3";

message Empty {}

message Frame {
  bytes data = 1;
  int32 width = 2;
  int32 height = 3;
}

message Detections {
  repeated string labels = 1;
}

service Detector {
  rpc Predict(Frame) returns (Detections);
  rpc Health(Empty) returns (Empty);
}
`

// cli runs the drafter root command against store and returns its output.
func cli(t *testing.T, store string, args ...string) (string, error) {
	t.Helper()
	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--store", store}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// mustCLI is cli for steps that must succeed.
func mustCLI(t *testing.T, store string, args ...string) string {
	t.Helper()
	out, err := cli(t, store, args...)
	if err != nil {
		t.Fatalf("drafter %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

// seedDesign registers both assets and wires Camera 1 into Detector.Predict 1.
func seedDesign(t *testing.T) (store, dir string) {
	t.Helper()
	dir = t.TempDir()
	store = filepath.Join(dir, "store")
	cam := writeFile(t, dir, "camera.proto", cameraProto)
	det := writeFile(t, dir, "detector.proto", detectorProto)

	out := mustCLI(t, store, "asset", "add", "--id", "cam", "--name", "Camera", "--image", "org/camera:1", cam)
	if !strings.Contains(out, "asset cam: Camera (1 methods)") {
		t.Errorf("asset add output = %q", out)
	}
	mustCLI(t, store, "asset", "add", "--id", "det", "--name", "Detector", "--image", "org/detector:2", det)

	out = mustCLI(t, store, "stage", "add", "cam", "Capture", "--id", "c1")
	if strings.TrimSpace(out) != "stage c1: Camera 1" {
		t.Errorf("stage add output = %q", out)
	}
	out = mustCLI(t, store, "stage", "add", "det", "Predict", "--id", "d1", "--x", "120")
	if strings.TrimSpace(out) != "stage d1: Detector.Predict 1" {
		t.Errorf("stage add output = %q", out)
	}

	out = mustCLI(t, store, "connect", "d1", "c1", "--id", "e1")
	if strings.TrimSpace(out) != "edge e1: Camera 1 → Detector.Predict 1 [Frame]" {
		t.Errorf("connect output = %q", out)
	}
	mustCLI(t, store, "volume", "add", "d1", "./models", "/models", "--id", "v1")
	return store, dir
}

// ─── design flow ──────────────────────────────────────────────────────────────

func TestCLI_DesignFlow(t *testing.T) {
	store, dir := seedDesign(t)

	if _, err := cli(t, store, "connect", "c1", "d1"); !errors.Is(err, pipeline.ErrIncompatible) {
		t.Errorf("connect with mismatched types: err = %v, want Incompatible", err)
	}
	if _, err := cli(t, store, "stage", "add", "det", "Nope"); !errors.Is(err, pipeline.ErrRemoteMethodNotFound) {
		t.Errorf("stage add unknown method: err = %v, want RemoteMethodNotFound", err)
	}

	out := mustCLI(t, store, "lint")
	if !strings.Contains(out, "(2 assets, 2 stages, 1 edges)") {
		t.Errorf("lint output = %q", out)
	}

	out = mustCLI(t, store, "history", "-n", "2")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasSuffix(lines[0], "AddVolume") || !strings.HasSuffix(lines[1], "AddEdge") {
		t.Errorf("history = %q, want AddVolume then AddEdge", out)
	}

	out = mustCLI(t, store, "stage", "list")
	if !strings.Contains(out, "in=Frame out=Detections") || !strings.Contains(out, "volume v1  ./models:/models (bind)") {
		t.Errorf("stage list = %q", out)
	}

	mustCLI(t, store, "stage", "set", "d1", "--name", "Finder")
	mustCLI(t, store, "asset", "set", "cam", "--image", "org/camera:2")
	out = mustCLI(t, store, "asset", "list")
	if !strings.Contains(out, "org/camera:2") || !strings.Contains(out, "Predict(Frame): Detections") {
		t.Errorf("asset list = %q", out)
	}

	mustCLI(t, store, "volume", "rm", "d1", "v1")
	if _, err := cli(t, store, "volume", "rm", "d1", "v1"); !errors.Is(err, pipeline.ErrVolumeNotFound) {
		t.Errorf("second volume rm: err = %v, want VolumeNotFound", err)
	}
	mustCLI(t, store, "disconnect", "e1")
	if _, err := cli(t, store, "disconnect", "e1"); !errors.Is(err, pipeline.ErrEdgeNotFound) {
		t.Errorf("second disconnect: err = %v, want EdgeNotFound", err)
	}

	mustCLI(t, store, "stage", "rm", "c1")
	mustCLI(t, store, "asset", "rm", "cam")
	out = mustCLI(t, store, "stage", "list")
	if !strings.Contains(out, "Finder") || strings.Contains(out, "Camera 1") {
		t.Errorf("stage list after removals = %q", out)
	}

	if _, err := cli(t, store, "asset", "add", "--name", "X", "--image", "x", filepath.Join(dir, "missing.proto")); !errors.Is(err, pipeline.ErrFileInput) {
		t.Errorf("asset add missing file: err = %v, want FileInputError", err)
	}
}

func TestCLI_FailedActionIsNotSaved(t *testing.T) {
	store, _ := seedDesign(t)
	before := mustCLI(t, store, "dump")
	if _, err := cli(t, store, "stage", "rm", "nope"); !errors.Is(err, pipeline.ErrStageNotFound) {
		t.Fatalf("stage rm nope: err = %v", err)
	}
	if after := mustCLI(t, store, "dump"); after != before {
		t.Errorf("document changed after a rejected action")
	}
}

// ─── rendering ────────────────────────────────────────────────────────────────

func TestCLI_Graph(t *testing.T) {
	store, _ := seedDesign(t)

	out := mustCLI(t, store, "graph")
	if !strings.Contains(out, "Solution: default  (2 stages, 1 connections)") {
		t.Errorf("graph header missing: %q", out)
	}
	if !strings.Contains(out, "Camera 1  →  Detector.Predict 1  [Frame]") {
		t.Errorf("graph connection missing: %q", out)
	}
	if strings.Index(out, "Camera 1 ") > strings.Index(out, "Detector.Predict 1 ") {
		t.Errorf("stages not in flow order: %q", out)
	}

	dot := mustCLI(t, store, "graph", "--format", "dot")
	d, err := pipeline.ParseDiagram(dot)
	if err != nil {
		t.Fatalf("re-read dot output: %v\n%s", err, dot)
	}
	if len(d.Nodes) != 2 || len(d.Links) != 1 {
		t.Fatalf("dot has %d nodes and %d links, want 2 and 1", len(d.Nodes), len(d.Links))
	}
	if d.Links[0].From != "c1" || d.Links[0].To != "d1" {
		t.Errorf("dot link = %s -> %s, want c1 -> d1", d.Links[0].From, d.Links[0].To)
	}

	if _, err := cli(t, store, "graph", "--format", "svg"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestCLI_Export(t *testing.T) {
	store, dir := seedDesign(t)
	zipPath := filepath.Join(dir, "solution.zip")

	out := mustCLI(t, store, "export", "-o", zipPath)
	if !strings.Contains(out, "(3 services, 1 links)") {
		t.Errorf("export output = %q", out)
	}

	f, err := os.Open(zipPath)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		t.Fatalf("stat archive: %v", err)
	}
	b, err := export.ReadZip(f, info.Size())
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}

	det, ok := b.Compose.Services["detector-predict-1"]
	if !ok {
		t.Fatalf("services = %v, want detector-predict-1", b.Compose.Services)
	}
	if det.Image != "org/detector:2" || len(det.Ports) != 1 || det.Ports[0] != "8062:8061" {
		t.Errorf("detector service = %+v", det)
	}
	want := export.Link{
		Source: export.LinkEnd{Stage: "Camera 1", Field: "Capture"},
		Target: export.LinkEnd{Stage: "Detector.Predict 1", Field: "Predict"},
	}
	if len(b.Config.Links) != 1 || b.Config.Links[0] != want {
		t.Errorf("links = %+v, want %+v", b.Config.Links, want)
	}
}

func TestCLI_ExportHonoursConfig(t *testing.T) {
	store, dir := seedDesign(t)
	t.Setenv("DRAFTER_EXPORT_BASE_PORT", "9100")
	cfg := writeFile(t, dir, "drafter.yaml", "export:\n  orchestrator_image: me/orch:dev\n")
	zipPath := filepath.Join(dir, "out.zip")

	mustCLI(t, store, "--config", cfg, "export", "-o", zipPath)
	data, err := os.ReadFile(zipPath)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	b, err := export.ReadZip(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("decode archive: %v", err)
	}
	if got := b.Compose.Services["camera-1"].Ports[0]; got != "9100:8061" {
		t.Errorf("camera port = %q, want 9100:8061", got)
	}
	if got := b.Compose.Services[export.OrchestratorService].Image; got != "me/orch:dev" {
		t.Errorf("orchestrator image = %q", got)
	}
}

// ─── documents ────────────────────────────────────────────────────────────────

func TestCLI_DumpClearImport(t *testing.T) {
	store, dir := seedDesign(t)
	saved := filepath.Join(dir, "backup.json")

	mustCLI(t, store, "dump", "-o", saved)
	mustCLI(t, store, "clear")
	if out := mustCLI(t, store, "lint"); !strings.Contains(out, "(0 assets, 0 stages, 0 edges)") {
		t.Errorf("lint after clear = %q", out)
	}
	if out := mustCLI(t, store, "history"); out != "" {
		t.Errorf("history after clear = %q, want empty", out)
	}

	out := mustCLI(t, store, "import", saved)
	if !strings.Contains(out, "imported 2 assets, 2 stages, 1 edges") {
		t.Errorf("import output = %q", out)
	}
	if out := mustCLI(t, store, "history", "-n", "1"); !strings.HasSuffix(strings.TrimSpace(out), "AddVolume") {
		t.Errorf("history not restored: %q", out)
	}

	bad := writeFile(t, dir, "bad.json", `{"version": 1, "assets": []}`)
	if _, err := cli(t, store, "import", bad); !errors.Is(err, pipeline.ErrParsing) {
		t.Errorf("import of malformed document: err = %v, want ParsingError", err)
	}
	if _, err := cli(t, store, "import", filepath.Join(dir, "absent.json")); !errors.Is(err, pipeline.ErrFileInput) {
		t.Errorf("import of missing file: err = %v, want FileInputError", err)
	}
}

func TestCLI_SolutionsAndDiff(t *testing.T) {
	store, _ := seedDesign(t)

	mustCLI(t, store, "-s", "copy", "clear")
	out := mustCLI(t, store, "solutions")
	if out != "  copy\n* default\n" {
		t.Errorf("solutions = %q", out)
	}

	out = mustCLI(t, store, "diff", "default", "default")
	if strings.TrimSpace(out) != "no differences" {
		t.Errorf("self diff = %q", out)
	}
	out = mustCLI(t, store, "diff", "default", "copy")
	removed := false
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "- ") && strings.Contains(line, `"name": "Camera"`) {
			removed = true
		}
	}
	if !removed {
		t.Errorf("diff does not show the removed asset:\n%s", out)
	}
}

func TestCLI_Schema(t *testing.T) {
	out := mustCLI(t, t.TempDir(), "schema")
	if !strings.Contains(out, `"accessPoint"`) {
		t.Errorf("document schema missing definitions: %.200s", out)
	}
	out = mustCLI(t, t.TempDir(), "schema", "config")
	if !strings.Contains(out, `"links"`) {
		t.Errorf("config schema = %.200s", out)
	}
	if _, err := cli(t, t.TempDir(), "schema", "nope"); err == nil {
		t.Error("expected error for unknown schema")
	}
}

// ─── TestInitLogger ───────────────────────────────────────────────────────────

func TestInitLogger_ValidLevels(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error", "DEBUG", "INFO"} {
		if err := initLogger(lvl, "text"); err != nil {
			t.Errorf("initLogger(%q, text): unexpected error: %v", lvl, err)
		}
	}
}

func TestInitLogger_ValidFormats(t *testing.T) {
	for _, f := range []string{"text", "json", "TEXT", "JSON"} {
		if err := initLogger("info", f); err != nil {
			t.Errorf("initLogger(info, %q): unexpected error: %v", f, err)
		}
	}
}

func TestInitLogger_InvalidLevel(t *testing.T) {
	if err := initLogger("verbose", "text"); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestInitLogger_InvalidFormat(t *testing.T) {
	if err := initLogger("info", "xml"); err == nil {
		t.Fatal("expected error for unknown log format")
	}
}
