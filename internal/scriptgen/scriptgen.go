// Package scriptgen renders the browser-console capture script offered to
// users. Rendering is pure templating: nothing is executed or fetched, and
// the script's download is ordinary file-ingestion input.
package scriptgen

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"
)

const (
	MinTargetCount = 1
	MaxTargetCount = 10000
)

var ErrTargetCount = fmt.Errorf("target count must be between %d and %d", MinTargetCount, MaxTargetCount)

//go:embed script.js.tmpl
var scriptSource string

var scriptTemplate = template.Must(template.New("script").Parse(scriptSource))

type Generator struct {
	selectors SelectorConfig
}

func New(selectors SelectorConfig) *Generator {
	return &Generator{selectors: selectors}
}

// Generate renders a script that collects up to targetCount posts.
// The same inputs always yield the same script.
func (g *Generator) Generate(targetCount int) (string, error) {
	if targetCount < MinTargetCount || targetCount > MaxTargetCount {
		return "", fmt.Errorf("%w: got %d", ErrTargetCount, targetCount)
	}

	var b strings.Builder
	err := scriptTemplate.Execute(&b, struct {
		TargetCount int
		Selectors   SelectorConfig
	}{targetCount, g.selectors})
	if err != nil {
		return "", fmt.Errorf("render capture script: %w", err)
	}
	return b.String(), nil
}
