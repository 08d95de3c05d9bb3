package web

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/log"
)

var funcs = template.FuncMap{
	"f4": func(v float64) string { return fmt.Sprintf("%.4f", v) },
	"f2": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"pct": func(part, total int) string {
		if total == 0 {
			return "0.00%"
		}
		return fmt.Sprintf("%.2f%%", 100*float64(part)/float64(total))
	},
	"add": func(a, b int) int { return a + b },
}

// parsePages builds one template set per page, each sharing layout.html.
func parsePages() (map[string]*template.Template, error) {
	files, err := fs.Glob(assets, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "list templates")
	}
	pages := make(map[string]*template.Template)
	for _, f := range files {
		name := strings.TrimSuffix(path.Base(f), ".html")
		if name == "layout" {
			continue
		}
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(assets, "templates/layout.html", f)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", f)
		}
		pages[name] = t
	}
	return pages, nil
}

func renderMarkdown(name string) (template.HTML, error) {
	md, err := assets.ReadFile(name)
	if err != nil {
		return "", errors.Wrapf(err, "read %s", name)
	}
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	r := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank})
	return template.HTML(markdown.ToHTML(md, p, r)), nil
}

// page is the data every template receives.
type page struct {
	Title string
	Nav   string
	// Error is shown above the content. The page still renders.
	Error string
	Data  interface{}
}

// render executes a page into a buffer first so a template failure never
// leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, status int, name string, p page) {
	t, ok := s.pages[name]
	if !ok {
		s.logger.Error("Unknown page", "page", name)
		http.Error(w, "page not found", http.StatusInternalServerError)
		return
	}
	p.Nav = name
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", p); err != nil {
		s.logger.Error("Template failed", "page", name, log.ErrorKey, err)
		http.Error(w, "template rendering failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Debug("Response write failed", log.ErrorKey, err)
	}
}

type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writePNG(w http.ResponseWriter, png []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(png)
}

func dataURI(mime string, data []byte) template.URL {
	return template.URL("data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data))
}

// statusOf maps an error to the HTTP status reported for it.
func statusOf(err error) int {
	var (
		schema *errors.SchemaError
		valid  *errors.ValidationError
	)
	switch {
	case errors.Is(err, errors.ErrArtifactNotFound):
		return http.StatusServiceUnavailable
	case errors.As(err, &schema), errors.As(err, &valid):
		return http.StatusBadRequest
	case errors.As(err, new(*http.MaxBytesError)):
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// userMessage is the text shown for err.
func userMessage(err error) string {
	if errors.Is(err, errors.ErrArtifactNotFound) {
		return "Model artifacts not found. Please train models first."
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Sprintf("Upload exceeds the %d byte limit.", tooLarge.Limit)
	}
	return err.Error()
}
