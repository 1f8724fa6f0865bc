package ui

import (
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"fieldsync/internal/logger"
)

//go:embed runtime.js
var runtimeJS string

const writeTimeout = 10 * time.Second

var errNotConnected = errors.New("page has no browser connection")

var attrNamePattern = regexp.MustCompile(`^[a-zA-Z_:][-a-zA-Z0-9_:.]*$`)

// EventMessage is sent by the browser when a control fires its DOM event
type EventMessage struct {
	Element string        `json:"element"`
	Event   string        `json:"event"`
	Args    []interface{} `json:"args"`
}

// PropertyUpdate is sent to the browser when an element property changes
type PropertyUpdate struct {
	Element string `json:"element"`
	Prop    string `json:"prop"`
	Value   string `json:"value"`
}

// Page is an ordered set of elements plus injected body markup.
// Once served it may hold one live browser connection.
type Page struct {
	ID      string
	Title   string
	created time.Time

	mu        sync.Mutex
	elements  []*Element
	byID      map[string]*Element
	body      []template.HTML
	conn      *websocket.Conn
	connected bool
	logger    *logger.Logger

	writeMu sync.Mutex
}

// NewPage creates an empty page with a fresh id
func NewPage(title string) *Page {
	return &Page{
		ID:      ulid.Make().String(),
		Title:   title,
		created: time.Now(),
		byID:    make(map[string]*Element),
	}
}

// Add appends a new element of the given kind
func (p *Page) Add(kind Kind, label string) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()

	el := newElement(p, fmt.Sprintf("c%d", len(p.elements)+1), kind, label)
	p.elements = append(p.elements, el)
	p.byID[el.id] = el
	return el
}

// Element looks up an element by id
func (p *Page) Element(id string) (*Element, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.byID[id]
	return el, ok
}

// Elements returns the elements in page order
func (p *Page) Elements() []*Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Element(nil), p.elements...)
}

// AddBodyHTML appends trusted markup rendered after the elements
func (p *Page) AddBodyHTML(html template.HTML) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.body = append(p.body, html)
}

// BodyHTML returns the injected markup in insertion order
func (p *Page) BodyHTML() []template.HTML {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]template.HTML(nil), p.body...)
}

// Render writes the page as a complete HTML document
func (p *Page) Render(w io.Writer) error {
	elements := p.Elements()
	views := make([]elementView, len(elements))
	for i, el := range elements {
		views[i] = el.view()
	}

	return pageTemplate.Execute(w, pageView{
		ID:       p.ID,
		Title:    p.Title,
		Elements: views,
		Body:     p.BodyHTML(),
		Runtime:  template.JS(runtimeJS),
	})
}

func (p *Page) attach(conn *websocket.Conn) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		return errors.New("page already has a browser connection")
	}
	p.conn = conn
	p.connected = true
	return nil
}

func (p *Page) setLogger(l *logger.Logger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger = l
}

// pushFailed records a send that failed on a live connection
func (p *Page) pushFailed(update PropertyUpdate, err error) {
	p.mu.Lock()
	l := p.logger
	p.mu.Unlock()
	if l == nil {
		return
	}
	l.WithPage(p.ID).WithField("element", update.Element).WithField("prop", update.Prop).
		WithError(err).Debug("Failed to push property update")
}

func (p *Page) detach() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn = nil
}

func (p *Page) everConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// push sends an update to the browser; updates before connect are
// already part of the rendered document
func (p *Page) push(update PropertyUpdate) error {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return errNotConnected
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(update)
}

type pageView struct {
	ID       string
	Title    string
	Elements []elementView
	Body     []template.HTML
	Runtime  template.JS
}

type elementView struct {
	ID       string
	Kind     string
	Label    string
	Classes  string
	Attrs    []template.HTMLAttr
	Event    string
	DOMEvent string
	Value    string
	Text     string
	Checked  bool
	ListID   string
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body data-page="{{.ID}}">
{{range .Elements}}<div class="{{.Classes}}"{{range .Attrs}} {{.}}{{end}}>
{{- if eq .Kind "input"}}<label>{{.Label}} <input type="text"{{if .ListID}} list="{{.ListID}}"{{end}} data-element="{{.ID}}" data-event="{{.Event}}" data-dom-event="{{.DOMEvent}}" value="{{.Value}}"></label>{{if .ListID}}<datalist id="{{.ListID}}"></datalist>{{end}}
{{- else if eq .Kind "checkbox"}}<label><input type="checkbox" data-element="{{.ID}}" data-event="{{.Event}}" data-dom-event="{{.DOMEvent}}"{{if .Checked}} checked{{end}}> {{.Label}}</label>
{{- else if eq .Kind "slider"}}<label>{{.Label}} <input type="range" data-element="{{.ID}}" data-event="{{.Event}}" data-dom-event="{{.DOMEvent}}" value="{{.Value}}"></label>
{{- else if eq .Kind "textarea"}}<label>{{.Label}} <textarea data-element="{{.ID}}" data-event="{{.Event}}" data-dom-event="{{.DOMEvent}}">{{.Value}}</textarea></label>
{{- else if eq .Kind "button"}}<button data-element="{{.ID}}" data-event="{{.Event}}" data-dom-event="{{.DOMEvent}}">{{.Text}}</button>
{{- else}}{{if .Label}}<strong>{{.Label}}</strong> {{end}}<span data-element="{{.ID}}">{{.Text}}</span>
{{- end}}</div>
{{end}}
{{- range .Body}}{{.}}
{{end -}}
<script>{{.Runtime}}</script>
</body>
</html>
`))

func renderAttr(name, value string) (template.HTMLAttr, bool) {
	lower := strings.ToLower(name)
	if !attrNamePattern.MatchString(name) || strings.HasPrefix(lower, "on") || lower == "class" {
		return "", false
	}
	return template.HTMLAttr(name + `="` + template.HTMLEscapeString(value) + `"`), true
}

func joinClasses(classes []string) string {
	return strings.Join(classes, " ")
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
