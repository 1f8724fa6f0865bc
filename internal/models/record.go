package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrUncoercible is returned when a value cannot be converted to a field's kind
var ErrUncoercible = errors.New("value cannot be coerced to field kind")

// Record is a persisted entity addressable by a numeric primary key
type Record interface {
	GetID() uint
	SetID(id uint)
}

// Base carries the columns shared by every record type
type Base struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetID returns the primary key
func (b *Base) GetID() uint {
	return b.ID
}

// SetID assigns the primary key
func (b *Base) SetID(id uint) {
	b.ID = id
}

// FieldKind is the storage kind of a record field
type FieldKind int

const (
	KindString FieldKind = iota
	KindInt
	KindFloat
	KindBool
)

func (k FieldKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Field is one entry of a record type's accessor table
type Field struct {
	Name   string
	Column string
	Kind   FieldKind

	get func(Record) interface{}
	set func(Record, interface{}) error
}

// Get reads the field from a record
func (f *Field) Get(r Record) interface{} {
	return f.get(r)
}

// Set coerces value to the field kind and assigns it
func (f *Field) Set(r Record, value interface{}) error {
	if err := f.set(r, value); err != nil {
		return fmt.Errorf("field %s: %w", f.Name, err)
	}
	return nil
}

// Coerce converts value to the Go type stored for this field
func (f *Field) Coerce(value interface{}) (interface{}, error) {
	var (
		out interface{}
		err error
	)
	switch f.Kind {
	case KindString:
		out, err = toString(value)
	case KindInt:
		out, err = toInt(value)
	case KindFloat:
		out, err = toFloat(value)
	case KindBool:
		out, err = toBool(value)
	default:
		err = ErrUncoercible
	}
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", f.Name, err)
	}
	return out, nil
}

// WithColumn overrides the column name, which defaults to the field name
func (f *Field) WithColumn(column string) *Field {
	f.Column = column
	return f
}

// StringField declares a string field backed by the pointer ptr returns
func StringField(name string, ptr func(Record) *string) *Field {
	return &Field{
		Name:   name,
		Column: name,
		Kind:   KindString,
		get:    func(r Record) interface{} { return *ptr(r) },
		set: func(r Record, v interface{}) error {
			s, err := toString(v)
			if err != nil {
				return err
			}
			*ptr(r) = s
			return nil
		},
	}
}

// IntField declares an integer field backed by the pointer ptr returns
func IntField(name string, ptr func(Record) *int64) *Field {
	return &Field{
		Name:   name,
		Column: name,
		Kind:   KindInt,
		get:    func(r Record) interface{} { return *ptr(r) },
		set: func(r Record, v interface{}) error {
			n, err := toInt(v)
			if err != nil {
				return err
			}
			*ptr(r) = n
			return nil
		},
	}
}

// FloatField declares a floating point field backed by the pointer ptr returns
func FloatField(name string, ptr func(Record) *float64) *Field {
	return &Field{
		Name:   name,
		Column: name,
		Kind:   KindFloat,
		get:    func(r Record) interface{} { return *ptr(r) },
		set: func(r Record, v interface{}) error {
			n, err := toFloat(v)
			if err != nil {
				return err
			}
			*ptr(r) = n
			return nil
		},
	}
}

// BoolField declares a boolean field backed by the pointer ptr returns
func BoolField(name string, ptr func(Record) *bool) *Field {
	return &Field{
		Name:   name,
		Column: name,
		Kind:   KindBool,
		get:    func(r Record) interface{} { return *ptr(r) },
		set: func(r Record, v interface{}) error {
			b, err := toBool(v)
			if err != nil {
				return err
			}
			*ptr(r) = b
			return nil
		},
	}
}

// FormatValue renders a field value the way it is displayed and pushed
func FormatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}

func toString(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", ErrUncoercible
	case string:
		return v, nil
	default:
		return FormatValue(v), nil
	}
}

func toInt(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, ErrUncoercible
		}
		return int64(v), nil
	case float64:
		return floatToInt(v)
	case json.Number:
		return toInt(v.String())
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if errors.Is(err, strconv.ErrRange) {
			return 0, ErrUncoercible
		}
		if err != nil {
			f, ferr := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if ferr != nil {
				return 0, ErrUncoercible
			}
			return floatToInt(f)
		}
		return n, nil
	default:
		return 0, ErrUncoercible
	}
}

// floatToInt accepts whole numbers inside the int64 range.
// float64(math.MaxInt64) rounds up to 2^63, so the upper bound is exclusive.
func floatToInt(f float64) (int64, error) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, ErrUncoercible
	}
	return int64(f), nil
}

func toFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return toFloat(v.String())
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, ErrUncoercible
		}
		return f, nil
	default:
		return 0, ErrUncoercible
	}
}

func toBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, ErrUncoercible
		}
		return b, nil
	case json.Number:
		return toBool(v.String())
	default:
		return false, ErrUncoercible
	}
}
