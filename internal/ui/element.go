package ui

import (
	"context"
	"errors"
	"html/template"
	"sort"
	"sync"
)

// Handler receives the arguments of an element event
type Handler func(ctx context.Context, args []interface{})

// Element is one control on a page
type Element struct {
	id    string
	kind  Kind
	label string
	page  *Page

	mu        sync.Mutex
	props     map[string]string
	classes   []string
	attrs     map[string]string
	listeners map[string][]Handler
}

func newElement(page *Page, id string, kind Kind, label string) *Element {
	return &Element{
		id:        id,
		kind:      kind,
		label:     label,
		page:      page,
		props:     make(map[string]string),
		attrs:     make(map[string]string),
		listeners: make(map[string][]Handler),
	}
}

// ID returns the page-unique id of the element
func (e *Element) ID() string {
	return e.id
}

// Kind returns the element kind
func (e *Element) Kind() Kind {
	return e.kind
}

// Label returns the element label
func (e *Element) Label() string {
	return e.label
}

// Property returns the current value of a property
func (e *Element) Property(name string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.props[name]
}

// SetProperty assigns a property and pushes it to a connected browser
func (e *Element) SetProperty(name, value string) {
	e.mu.Lock()
	e.props[name] = value
	e.mu.Unlock()

	update := PropertyUpdate{Element: e.id, Prop: name, Value: value}
	if err := e.page.push(update); err != nil && !errors.Is(err, errNotConnected) {
		e.page.pushFailed(update, err)
	}
}

// On registers a handler for an event
func (e *Element) On(event string, handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[event] = append(e.listeners[event], handler)
}

// Listeners returns the number of handlers registered for event
func (e *Element) Listeners(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[event])
}

// Emit runs the handlers registered for event in registration order.
// It reports whether any handler ran.
func (e *Element) Emit(ctx context.Context, event string, args []interface{}) bool {
	e.mu.Lock()
	handlers := append([]Handler(nil), e.listeners[event]...)
	e.mu.Unlock()

	for _, handler := range handlers {
		handler(ctx, args)
	}
	return len(handlers) > 0
}

// AddClass appends a CSS class
func (e *Element) AddClass(class string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range e.classes {
		if c == class {
			return
		}
	}
	e.classes = append(e.classes, class)
}

// Classes returns the CSS classes in the order they were added
func (e *Element) Classes() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.classes...)
}

// SetAttribute sets an HTML attribute on the element wrapper
func (e *Element) SetAttribute(name, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attrs[name] = value
}

// Attribute returns an HTML attribute of the element wrapper
func (e *Element) Attribute(name string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.attrs[name]
	return v, ok
}

// AddBodyHTML appends trusted markup to the page the element lives on
func (e *Element) AddBodyHTML(html template.HTML) {
	e.page.AddBodyHTML(html)
}

func (e *Element) view() elementView {
	e.mu.Lock()
	defer e.mu.Unlock()

	names := make([]string, 0, len(e.attrs))
	for name := range e.attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	attrs := make([]template.HTMLAttr, 0, len(names))
	for _, name := range names {
		if attr, ok := renderAttr(name, e.attrs[name]); ok {
			attrs = append(attrs, attr)
		}
	}

	v := elementView{
		ID:       e.id,
		Kind:     e.kind.String(),
		Label:    e.label,
		Classes:  joinClasses(e.classes),
		Attrs:    attrs,
		Event:    e.kind.ChangeEvent("value"),
		DOMEvent: e.kind.DOMEvent(),
		Value:    e.props["value"],
		Text:     e.props["text"],
	}
	if v.Text == "" {
		v.Text = v.Value
	}
	if e.kind == Button && e.props["text"] == "" {
		v.Text = e.label
	}
	v.Checked = isTruthy(v.Value)
	// Text inputs carry a suggestion list named after the wrapper id
	if id, ok := e.attrs["id"]; ok && id != "" && e.kind == Input {
		v.ListID = id + "-datalist"
	}
	return v
}
