package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sample = "# Solid State Batteries\n\nThey use a **solid** electrolyte.\n\n## Sources\n\n- https://example.com/a\n"

func TestToHTML(t *testing.T) {
	doc, err := ToHTML(sample, "")
	if err != nil {
		t.Fatalf("ToHTML failed: %v", err)
	}

	checks := []string{
		"<!DOCTYPE html>",
		"<title>Solid State Batteries</title>",
		"<h1",
		"<strong>solid</strong>",
		"<li>",
	}
	for _, want := range checks {
		if !strings.Contains(doc, want) {
			t.Errorf("Expected document to contain %q", want)
		}
	}
}

func TestToHTML_Sanitizes(t *testing.T) {
	doc, err := ToHTML("hello\n\n<script>alert(1)</script>\n\n<a href=\"javascript:alert(1)\">x</a>", "t <b>")
	if err != nil {
		t.Fatalf("ToHTML failed: %v", err)
	}
	if strings.Contains(doc, "<script>") || strings.Contains(doc, "javascript:") {
		t.Errorf("Expected scripts to be removed, got: %s", doc)
	}
	if !strings.Contains(doc, "<title>t &lt;b&gt;</title>") {
		t.Errorf("Expected escaped title, got: %s", doc)
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		md   string
		want string
	}{
		{"# Top\ntext", "Top"},
		{"intro\n\n## Second level", "Second level"},
		{"#\n# Real", "Real"},
		{"no headings", "Research Report"},
	}
	for _, tt := range tests {
		if got := Title(tt.md); got != tt.want {
			t.Errorf("Title(%q): expected %q, got %q", tt.md, tt.want, got)
		}
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()

	mdPath := filepath.Join(dir, "out", "report.md")
	if err := WriteFile(mdPath, "# R\nbody"); err != nil {
		t.Fatalf("WriteFile md failed: %v", err)
	}
	data, err := os.ReadFile(mdPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "# R\nbody\n" {
		t.Errorf("Expected markdown with trailing newline, got %q", string(data))
	}

	htmlPath := filepath.Join(dir, "report.HTML")
	if err := WriteFile(htmlPath, sample); err != nil {
		t.Fatalf("WriteFile html failed: %v", err)
	}
	data, err = os.ReadFile(htmlPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "<!DOCTYPE html>") {
		t.Errorf("Expected HTML document, got %q", string(data)[:40])
	}
}

func TestRenderTerminal(t *testing.T) {
	if got := RenderTerminal("   ", 80); got != "" {
		t.Errorf("Expected empty output, got %q", got)
	}

	out := RenderTerminal(sample, 60)
	if !strings.Contains(out, "Solid State Batteries") {
		t.Errorf("Expected heading text in output, got %q", out)
	}
	if !strings.Contains(out, "https://example.com/a") {
		t.Errorf("Expected source URL in output, got %q", out)
	}
}
