// Package report exports research output as HTML or markdown files and
// renders it for the terminal.
package report

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const documentTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
<style>
body { max-width: 48rem; margin: 2rem auto; padding: 0 1rem; font-family: system-ui, sans-serif; line-height: 1.6; }
pre, code { background: #f4f4f4; }
pre { padding: 0.75rem; overflow-x: auto; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.25rem 0.5rem; }
</style>
</head>
<body>
%s</body>
</html>
`

var (
	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
	policy   = bluemonday.UGCPolicy()
)

// ToHTML converts markdown to a sanitized, standalone HTML document.
func ToHTML(md, title string) (string, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(md), &body); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}
	if title == "" {
		title = Title(md)
	}
	return fmt.Sprintf(documentTemplate, html.EscapeString(title), policy.SanitizeBytes(body.Bytes())), nil
}

// Title returns the first markdown heading, or "Research Report".
func Title(md string) string {
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			if t := strings.TrimSpace(strings.TrimLeft(line, "#")); t != "" {
				return t
			}
		}
	}
	return "Research Report"
}

// WriteFile writes md to path. Paths ending in .html or .htm get an HTML
// document, everything else the markdown as is.
func WriteFile(path, md string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	data := md
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		doc, err := ToHTML(md, "")
		if err != nil {
			return err
		}
		data = doc
	default:
		if !strings.HasSuffix(data, "\n") {
			data += "\n"
		}
	}

	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// RenderTerminal styles md for the terminal, wrapping at width. It falls back
// to the raw text when rendering fails.
func RenderTerminal(md string, width int) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	if width <= 0 {
		width = 100
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	rendered, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(rendered, "\n")
}
