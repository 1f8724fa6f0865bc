// Package binder attaches UI elements to fields of stored records.
//
// A bound element shows the joined values of its fields, writes user edits
// back through the field API and receives pushed changes in the browser.
package binder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/sirupsen/logrus"

	"fieldsync/internal/client"
	"fieldsync/internal/logger"
	"fieldsync/internal/models"
	"fieldsync/internal/ui"
)

const (
	// ElementClass marks every bound element
	ElementClass = "model-element-class"
	// Separator joins field values for display and splits edits
	Separator = ", "
	// DefaultDisplayProperty is the element property receiving the values
	DefaultDisplayProperty = "value"
)

// Element is the part of a UI element a binding needs
type Element interface {
	ID() string
	Kind() ui.Kind
	SetProperty(name, value string)
	On(event string, handler ui.Handler)
	AddClass(class string)
	SetAttribute(name, value string)
	AddBodyHTML(html template.HTML)
}

// FieldClient reaches the field API on behalf of one caller
type FieldClient interface {
	ReadField(ctx context.Context, loc models.Locator, field string) (interface{}, error)
	WriteField(ctx context.Context, loc models.Locator, field string, value interface{}) (interface{}, error)
	FieldURL(loc models.Locator, field string) string
	SubscribeURL(loc models.Locator, field string) string
}

// ClientProvider returns a field client sending the given bearer token.
// An empty token means unauthenticated requests.
type ClientProvider func(token string) FieldClient

// RecordResolver turns a dynamic query into a record id
type RecordResolver interface {
	ResolveRecord(ctx context.Context, collection, recordType string, query map[string]interface{}) (string, error)
}

// Options configures one binding
type Options struct {
	RecordID        string
	Fields          []string
	ElementID       string
	DisplayProperty string
	DynamicQuery    map[string]interface{}
	Token           string
}

// Binding describes an established binding. It cannot be changed once
// Bind returns it.
type Binding struct {
	locator         models.Locator
	fields          []string
	elementID       string
	displayProperty string
	event           string
	selector        string
}

// Locator is the bound record
func (b *Binding) Locator() models.Locator { return b.locator }

// Fields returns a copy of the bound field names in declared order
func (b *Binding) Fields() []string { return append([]string(nil), b.fields...) }

// ElementID is the id written onto the element
func (b *Binding) ElementID() string { return b.elementID }

// DisplayProperty is the element property holding the joined values
func (b *Binding) DisplayProperty() string { return b.displayProperty }

// Event is the element event that triggers writes
func (b *Binding) Event() string { return b.event }

// Selector locates the node updated by pushed values
func (b *Binding) Selector() string { return b.selector }

// Binder creates bindings
type Binder struct {
	logger   *logger.Logger
	clients  ClientProvider
	resolver RecordResolver
	schema   *models.Schema
}

// NewBinder creates a binder. resolver is only needed for dynamic queries
// and schema, when set, validates field names at bind time.
func NewBinder(logger *logger.Logger, clients ClientProvider, resolver RecordResolver, schema *models.Schema) *Binder {
	return &Binder{
		logger:   logger,
		clients:  clients,
		resolver: resolver,
		schema:   schema,
	}
}

// Bind attaches el to fields of one record.
// It returns a nil Binding and no error when there is nothing to bind:
// no fields, no record matching the dynamic query, or no record id.
func (b *Binder) Bind(ctx context.Context, el Element, collection, recordType string, opts Options) (*Binding, error) {
	if len(opts.Fields) == 0 {
		return nil, nil
	}

	recordID := opts.RecordID
	if recordID == "" && len(opts.DynamicQuery) == 0 {
		return nil, nil
	}

	if err := b.validate(collection, recordType, opts); err != nil {
		return nil, err
	}

	if len(opts.DynamicQuery) > 0 {
		if b.resolver == nil {
			return nil, errors.New("dynamic query needs a record resolver")
		}
		id, err := b.resolver.ResolveRecord(ctx, collection, recordType, opts.DynamicQuery)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve dynamic query: %w", err)
		}
		if id == "" {
			return nil, nil
		}
		recordID = id
	}

	binding := &Binding{
		locator:         models.Locator{Collection: collection, RecordType: recordType, RecordID: recordID},
		fields:          append([]string(nil), opts.Fields...),
		elementID:       opts.ElementID,
		displayProperty: opts.DisplayProperty,
	}
	if binding.elementID == "" {
		binding.elementID = el.ID()
	}
	if binding.displayProperty == "" {
		binding.displayProperty = DefaultDisplayProperty
	}
	binding.event = el.Kind().ChangeEvent(binding.displayProperty)
	binding.selector = fmt.Sprintf(`.%s %s[list="%s-datalist"]`, ElementClass, el.Kind().Tag(), binding.elementID)

	fieldClient := b.clients(opts.Token)
	values := b.load(ctx, fieldClient, binding)

	script, err := renderPushScript(fieldClient, binding, values)
	if err != nil {
		return nil, err
	}

	display := make([]string, len(binding.fields))
	for i, field := range binding.fields {
		display[i] = values[field]
	}
	el.SetProperty(binding.displayProperty, strings.Join(display, Separator))

	el.On(binding.event, b.writeBack(fieldClient, binding))
	el.AddClass(ElementClass)
	el.SetAttribute("id", binding.elementID)
	el.AddBodyHTML(script)

	return binding, nil
}

func (b *Binder) validate(collection, recordType string, opts Options) error {
	if b.schema == nil {
		return nil
	}

	rt, err := b.schema.Lookup(collection, recordType)
	if err != nil {
		return err
	}
	if err := rt.ValidateFields(opts.Fields...); err != nil {
		return err
	}

	keys := make([]string, 0, len(opts.DynamicQuery))
	for key := range opts.DynamicQuery {
		keys = append(keys, key)
	}
	return rt.ValidateFields(keys...)
}

// load reads each field in declared order. Failed reads count as "".
func (b *Binder) load(ctx context.Context, fieldClient FieldClient, binding *Binding) map[string]string {
	values := make(map[string]string, len(binding.fields))

	for _, field := range binding.fields {
		value, err := fieldClient.ReadField(ctx, binding.locator, field)
		if err != nil {
			status := 0
			var apiErr *client.Error
			if errors.As(err, &apiErr) {
				status = apiErr.Status
			}
			b.logger.WithFields(logrus.Fields{
				"url":    fieldClient.FieldURL(binding.locator, field),
				"status": status,
			}).WithError(err).Warn("There was an error with the request")
			values[field] = ""
			continue
		}
		values[field] = models.FormatValue(value)
	}

	return values
}

// writeBack posts each non-empty positional value of an edit to its field
func (b *Binder) writeBack(fieldClient FieldClient, binding *Binding) ui.Handler {
	return func(ctx context.Context, args []interface{}) {
		parts := SplitValues(JoinArgs(args))

		for i, field := range binding.fields {
			if i >= len(parts) {
				break
			}
			if parts[i] == "" {
				continue
			}
			if _, err := fieldClient.WriteField(ctx, binding.locator, field, parts[i]); err != nil {
				log := b.logger.WithRecord(binding.locator.Collection, binding.locator.RecordType, binding.locator.RecordID).
					WithField("field", field)
				var apiErr *client.Error
				if errors.As(err, &apiErr) {
					log = log.WithField("status", apiErr.Status)
				}
				log.WithError(err).Warn("Failed to write field")
			}
		}
	}
}

// JoinArgs concatenates event arguments without a separator
func JoinArgs(args []interface{}) string {
	var sb strings.Builder
	for _, arg := range args {
		sb.WriteString(models.FormatValue(arg))
	}
	return sb.String()
}

// SplitValues splits an edited display string into positional values
func SplitValues(s string) []string {
	return strings.Split(s, Separator)
}

type pushView struct {
	ElementID string
	Selector  string
	Fields    []string
	URLs      []string
	Values    map[string]string
}

var pushTemplate = template.Must(template.New("push").Parse(`<script>
document.addEventListener("DOMContentLoaded", function () {
  var elementId = {{.ElementID}};
  var selector = {{.Selector}};
  var fields = {{.Fields}};
  var urls = {{.URLs}};
  var values = {{.Values}};
  var sources = [];

  fields.forEach(function (field, i) {
    var source = new EventSource(urls[i]);
    source.onmessage = function (event) {
      values[field] = event.data;
      var node = document.querySelector(selector);
      if (node) {
        node.value = fields.map(function (f) { return f + ": " + values[f]; }).join(", ");
      } else {
        console.error("Element with ID", elementId, "not found in the class list.");
      }
    };
    source.onerror = function (error) {
      console.error("SSE connection error:", error);
    };
    sources.push(source);
  });

  window.addEventListener("beforeunload", function () {
    sources.forEach(function (source) { source.close(); });
  });
});
</script>`))

func renderPushScript(fieldClient FieldClient, binding *Binding, values map[string]string) (template.HTML, error) {
	view := pushView{
		ElementID: binding.elementID,
		Selector:  binding.selector,
		Fields:    binding.fields,
		URLs:      make([]string, len(binding.fields)),
		Values:    values,
	}
	for i, field := range binding.fields {
		view.URLs[i] = fieldClient.SubscribeURL(binding.locator, field)
	}

	var buf bytes.Buffer
	if err := pushTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to render push script: %w", err)
	}
	return template.HTML(buf.String()), nil
}
