package handlers

import (
	"html/template"
	"net/http"

	"fieldsync/internal/config"
	"fieldsync/internal/logger"
)

// LandingHandler handles the landing page
type LandingHandler struct {
	logger *logger.Logger
	pages  []config.PageConfig
	api    string
}

// NewLandingHandler creates a new landing page handler
func NewLandingHandler(cfg *config.Config, logger *logger.Logger) *LandingHandler {
	h := &LandingHandler{
		logger: logger,
		api:    cfg.API.BaseURL(),
	}
	if cfg.UI.Enabled {
		h.pages = cfg.UI.Pages
	}
	return h
}

type landingView struct {
	API   string
	Pages []config.PageConfig
}

var landingTemplate = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>fieldsync</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 48rem;
            margin: 2rem auto;
        }
        code { background: #f4f4f4; padding: 0 .25rem; }
    </style>
</head>
<body>
    <h1>fieldsync</h1>
    <p>Field API at <code>{{.API}}</code></p>
    {{if .Pages}}<ul>
    {{range .Pages}}<li><a href="{{.Path}}">{{if .Title}}{{.Title}}{{else}}{{.Path}}{{end}}</a> ({{len .Bindings}} bound elements)</li>
    {{end}}</ul>
    {{else}}<p>No pages configured.</p>
    {{end}}
</body>
</html>
`))

// HandleLandingPage lists the configured pages
func (h *LandingHandler) HandleLandingPage(w http.ResponseWriter, r *http.Request) {
	// Only serve landing page for exact root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := landingTemplate.Execute(w, landingView{API: h.api, Pages: h.pages}); err != nil {
		h.logger.WithError(err).Error("Failed to render landing page")
	}
}
