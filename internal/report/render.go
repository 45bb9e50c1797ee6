package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/harrison/suiterun/internal/artifact"
	"github.com/harrison/suiterun/internal/models"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

// Renderer turns a Document into HTML.
type Renderer struct {
	tmpl     *template.Template
	markdown goldmark.Markdown
}

// NewRenderer parses the embedded report template.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{markdown: goldmark.New()}
	tmpl, err := template.New("report.html.tmpl").Funcs(r.funcs()).ParseFS(templateFS, "templates/report.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	r.tmpl = tmpl
	return r, nil
}

func (r *Renderer) funcs() template.FuncMap {
	return template.FuncMap{
		"formatDuration": models.FormatDuration,
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.Format(artifact.HumanLayout)
		},
		"clock": func(t time.Time) string {
			return t.Format("15:04:05")
		},
		"statusClass": func(s models.Status) string {
			return strings.ToLower(string(s))
		},
		"stepClass": func(k models.StepKind) string {
			return "step-" + string(k)
		},
		"markdown": r.renderMarkdown,
	}
}

// renderMarkdown converts step text to HTML. Raw HTML in the input is
// dropped by goldmark's default renderer.
func (r *Renderer) renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String())
}

type sectionView struct {
	Section
	Status     models.Status
	Screenshot string
	IsImage    bool
}

type reportView struct {
	Title       string
	GeneratedAt time.Time
	Summary     models.RunSummary
	SuccessRate string
	Environment [][2]string
	Sections    []sectionView
}

// Render executes the template for doc and summary.
func (r *Renderer) Render(doc *Document, summary models.RunSummary) ([]byte, error) {
	view := reportView{
		Title:       doc.Title,
		GeneratedAt: doc.CreatedAt,
		Summary:     summary,
		SuccessRate: summary.SuccessRateString(),
		Environment: doc.Environment(),
	}

	reportDir := filepath.Dir(doc.Path)
	for _, s := range doc.Sections() {
		sv := sectionView{Section: s, Status: models.StatusSkipped}
		if s.Outcome != nil {
			sv.Status = s.Outcome.Status
			if s.Outcome.Screenshot != "" {
				sv.Screenshot = relativeLink(reportDir, s.Outcome.Screenshot)
				sv.IsImage = strings.EqualFold(filepath.Ext(s.Outcome.Screenshot), ".png")
			}
		}
		view.Sections = append(view.Sections, sv)
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, view); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func relativeLink(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		rel = target
	}
	return filepath.ToSlash(rel)
}
