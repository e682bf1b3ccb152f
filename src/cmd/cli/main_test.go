package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"screen-region-select/src/geometry"
	"screen-region-select/src/monitor"
	"screen-region-select/src/replay"
)

const twoMonitors = "../../replay/testdata/two_monitors.yaml"

func TestNormalizeLegacyArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		out  []string
	}{
		{"single dash", []string{"region-tool", "replay", "-format", "json", "x.yaml"}, []string{"region-tool", "replay", "--format", "json", "x.yaml"}},
		{"equals form", []string{"region-tool", "select", "-png=out.png", "-verbose=true"}, []string{"region-tool", "select", "--png=out.png", "--verbose=true"}},
		{"unchanged", []string{"region-tool", "monitors", "-v", "--format=yaml"}, []string{"region-tool", "monitors", "-v", "--format=yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeLegacyArgs(tt.in)
			if strings.Join(got, " ") != strings.Join(tt.out, " ") {
				t.Errorf("normalizeLegacyArgs() = %v, want %v", got, tt.out)
			}
		})
	}
}

func TestReplayText(t *testing.T) {
	var out bytes.Buffer
	if err := runWithArgs([]string{"region-tool", "replay", twoMonitors}, &out); err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "2045,125,375,375" {
		t.Errorf("output = %q", got)
	}
}

func TestReplayJSON(t *testing.T) {
	var out bytes.Buffer
	if err := runWithArgs([]string{"region-tool", "replay", "--format", "json", twoMonitors}, &out); err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	var r SelectionResult
	if err := json.Unmarshal(out.Bytes(), &r); err != nil {
		t.Fatalf("invalid JSON %q: %v", out.String(), err)
	}
	if r.Monitor != "M2" || r.Width != 375 || r.Aborted {
		t.Errorf("result = %+v", r)
	}
	if r.Source != twoMonitors {
		t.Errorf("source = %q", r.Source)
	}
}

func TestReplayUnresolved(t *testing.T) {
	script := "monitors:\n  - {bounds: [0, 0, 800, 600], dpi: 96}\nevents:\n  - {kind: move, x: 10, y: 10}\n"
	path := filepath.Join(t.TempDir(), "open.yaml")
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	err := runWithArgs([]string{"region-tool", "replay", path}, &out)
	if !errors.Is(err, replay.ErrUnresolved) {
		t.Fatalf("err = %v, want ErrUnresolved", err)
	}
	if strings.TrimSpace(out.String()) != "aborted" {
		t.Errorf("output = %q", out.String())
	}
}

func TestRejectsUnknownFormat(t *testing.T) {
	err := runWithArgs([]string{"region-tool", "replay", "--format", "xml", twoMonitors}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("err = %v", err)
	}
}

func TestWriteMonitorsYAML(t *testing.T) {
	m := monitor.New(7, geometry.NewRect(1920, 0, 2560, 1440), geometry.NewRect(1920, 0, 2560, 1400), 120, false)
	m.Name = "M2"
	var out bytes.Buffer
	if err := writeMonitors(&out, monitor.GranularCopy([]monitor.Monitor{m}, false), "yaml"); err != nil {
		t.Fatal(err)
	}
	var infos []MonitorInfo
	if err := yaml.Unmarshal(out.Bytes(), &infos); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if len(infos) != 1 || infos[0].Name != "M2" || infos[0].Scale != 1.25 {
		t.Fatalf("infos = %+v", infos)
	}
	if infos[0].Bounds != "1536,0,2048,1152" {
		t.Errorf("logical bounds = %q", infos[0].Bounds)
	}
}

func TestRenderMonitorsText(t *testing.T) {
	text := renderMonitors([]MonitorInfo{
		{Name: "M1", Label: "Generic Display", NativeBounds: "0,0,1920,1080", Bounds: "0,0,1920,1080", Dpi: 96, Scale: 1, Primary: true},
		{Name: "M2", Label: "Generic Display", NativeBounds: "1920,0,2560,1440", Bounds: "1536,0,2048,1152", Dpi: 120, Scale: 1.25},
	})
	for _, want := range []string{"Displays:", "M1", "1536,0,2048,1152", "scale 1.25"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}
