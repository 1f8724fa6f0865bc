package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnknownRecordType is returned when a collection/record type pair is not registered
	ErrUnknownRecordType = errors.New("unknown record type")
	// ErrUnknownField is returned when a field name is absent from a record type's accessor table
	ErrUnknownField = errors.New("unknown field")
)

// RecordType describes one persisted kind of record and its field accessor table
type RecordType struct {
	Collection string
	Name       string

	newRecord func() Record
	fields    []*Field
	byName    map[string]*Field
}

// NewRecordType declares a record type. Field order is preserved.
func NewRecordType(collection, name string, newRecord func() Record, fields ...*Field) *RecordType {
	rt := &RecordType{
		Collection: collection,
		Name:       name,
		newRecord:  newRecord,
		byName:     make(map[string]*Field, len(fields)),
	}
	for _, f := range fields {
		rt.fields = append(rt.fields, f)
		rt.byName[f.Name] = f
	}
	return rt
}

// New returns an empty record of this type
func (rt *RecordType) New() Record {
	return rt.newRecord()
}

// Field looks up a field accessor by name
func (rt *RecordType) Field(name string) (*Field, bool) {
	f, ok := rt.byName[name]
	return f, ok
}

// Fields returns the accessor table in declaration order
func (rt *RecordType) Fields() []*Field {
	out := make([]*Field, len(rt.fields))
	copy(out, rt.fields)
	return out
}

// ValidateFields checks every name against the accessor table
func (rt *RecordType) ValidateFields(names ...string) error {
	for _, name := range names {
		if _, ok := rt.byName[name]; !ok {
			return fmt.Errorf("%w: %s.%s has no field %q", ErrUnknownField, rt.Collection, rt.Name, name)
		}
	}
	return nil
}

// Key identifies the record type within a schema
func (rt *RecordType) Key() string {
	return schemaKey(rt.Collection, rt.Name)
}

// Schema is the registry of record types served by the field API
type Schema struct {
	types map[string]*RecordType
}

// NewSchema creates a schema holding the given record types
func NewSchema(types ...*RecordType) *Schema {
	s := &Schema{types: make(map[string]*RecordType)}
	for _, rt := range types {
		s.Register(rt)
	}
	return s
}

// Register adds or replaces a record type
func (s *Schema) Register(rt *RecordType) {
	s.types[rt.Key()] = rt
}

// Lookup finds a record type. Record type names match case-insensitively.
func (s *Schema) Lookup(collection, recordType string) (*RecordType, error) {
	rt, ok := s.types[schemaKey(collection, recordType)]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownRecordType, collection, recordType)
	}
	return rt, nil
}

// Types returns every registered record type ordered by key
func (s *Schema) Types() []*RecordType {
	keys := make([]string, 0, len(s.types))
	for k := range s.types {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]*RecordType, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.types[k])
	}
	return out
}

// Records returns an empty instance of every record type, for migrations
func (s *Schema) Records() []interface{} {
	types := s.Types()
	out := make([]interface{}, 0, len(types))
	for _, rt := range types {
		out = append(out, rt.New())
	}
	return out
}

func schemaKey(collection, recordType string) string {
	return collection + "/" + strings.ToLower(recordType)
}

// Locator addresses one record
type Locator struct {
	Collection string `json:"collection"`
	RecordType string `json:"record_type"`
	RecordID   string `json:"record_id"`
}

// Path renders the locator as URL path segments
func (l Locator) Path() string {
	return l.Collection + "/" + l.RecordType + "/" + l.RecordID
}

func (l Locator) String() string {
	return l.Collection + "." + l.RecordType + "#" + l.RecordID
}

// RecordRef is a loaded record together with its type
type RecordRef struct {
	Type   *RecordType
	Record Record
}
