package schema

import (
	"cmp"
	"fmt"
	"math"
	"net"
	"net/mail"
	"net/url"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// FieldError is one failed check on a document field.
type FieldError struct {
	Field  string `json:"field"`
	Label  string `json:"label"`
	Reason string `json:"reason"`
}

// ValidationError lists every failed field check of a document.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Label, f.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Missing returns the labels of required fields that were not provided.
func (e *ValidationError) Missing() []string {
	var out []string
	for _, f := range e.Fields {
		if f.Reason == ReasonRequired {
			out = append(out, f.Label)
		}
	}
	return out
}

// ReasonRequired is the FieldError reason for a missing required value.
const ReasonRequired = "required"

// ValidateDocument checks doc against the definitions in fields and returns
// a *ValidationError describing every problem, or nil. Disabled, generated
// and computed fields are skipped.
func ValidateDocument(fields Fields, doc map[string]any) error {
	var errs []FieldError
	for _, f := range fields.All() {
		if f.Disabled || f.Generated || f.Computed || f.DataType == TypeComputed || f.DataType == TypeVirtual {
			continue
		}
		v, present := doc[f.ColumnName]
		if !present || isEmpty(v) {
			if f.Required {
				errs = append(errs, FieldError{Field: f.ColumnName, Label: f.DisplayName(), Reason: ReasonRequired})
			}
			continue
		}
		if reason := checkValue(f, v); reason != "" {
			errs = append(errs, FieldError{Field: f.ColumnName, Label: f.DisplayName(), Reason: reason})
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Fields: errs}
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	}
	return false
}

func checkValue(f FieldDefinition, v any) string {
	switch {
	case f.DataType.IsNumeric():
		n, ok := toFloat(v)
		if !ok {
			return "must be a number"
		}
		if (f.DataType == TypeInt || f.DataType == TypeBigInt) && n != math.Trunc(n) {
			return "must be an integer"
		}
		if f.MinValue != nil && n < *f.MinValue {
			return fmt.Sprintf("must be at least %v", *f.MinValue)
		}
		if f.MaxValue != nil && n > *f.MaxValue {
			return fmt.Sprintf("must be at most %v", *f.MaxValue)
		}
		return ""
	case f.DataType == TypeBoolean:
		if _, ok := v.(bool); !ok {
			return "must be a boolean"
		}
		return ""
	case f.DataType == TypeArray:
		if rv := reflect.ValueOf(v); rv.Kind() != reflect.Slice {
			return "must be an array"
		}
		return ""
	case f.DataType == TypeObject:
		if rv := reflect.ValueOf(v); rv.Kind() != reflect.Map {
			return "must be an object"
		}
		return ""
	case !f.DataType.IsTextual():
		return ""
	}

	s, ok := v.(string)
	if !ok {
		return "must be a string"
	}
	n := utf8.RuneCountInString(s)
	if f.MinLength != nil && n < *f.MinLength {
		return fmt.Sprintf("must be at least %d characters", *f.MinLength)
	}
	if f.MaxLength != nil && n > *f.MaxLength {
		return fmt.Sprintf("must be at most %d characters", *f.MaxLength)
	}
	if f.Regex != "" {
		re, err := regexp.Compile(f.Regex)
		if err != nil {
			return fmt.Sprintf("invalid pattern %q", f.Regex)
		}
		if !re.MatchString(s) {
			return fmt.Sprintf("must match %s", f.Regex)
		}
	}
	if allowed := trimmed(f.AllowedValues); len(allowed) > 0 && !slices.Contains(allowed, s) {
		return fmt.Sprintf("must be one of %s", strings.Join(allowed, ", "))
	}
	return checkFormat(f.DataType, s)
}

func checkFormat(t DataType, s string) string {
	switch t {
	case TypeEmail:
		if _, err := mail.ParseAddress(s); err != nil {
			return "must be an email address"
		}
	case TypeURL, TypeURLEndpoint:
		if u, err := url.ParseRequestURI(s); err != nil || u.Host == "" {
			return "must be an absolute URL"
		}
	case TypeUUID:
		if _, err := uuid.Parse(s); err != nil {
			return "must be a UUID"
		}
	case TypeIP:
		if net.ParseIP(s) == nil {
			return "must be an IP address"
		}
	case TypeIPv4:
		if ip := net.ParseIP(s); ip == nil || ip.To4() == nil {
			return "must be an IPv4 address"
		}
	case TypeIPv6:
		if ip := net.ParseIP(s); ip == nil || ip.To4() != nil {
			return "must be an IPv6 address"
		}
	case TypeMACAddress:
		if _, err := net.ParseMAC(s); err != nil {
			return "must be a MAC address"
		}
	}
	return ""
}

func trimmed(vals []string) []string {
	var out []string
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

// FormField is a field shown when creating a document.
type FormField struct {
	Key string
	FieldDefinition
}

// FormFields returns the fields offered in a create form: identifier columns
// and fields hidden on create are left out, and the rest are ordered by
// their order setting, then by position.
func FormFields(fields Fields) []FormField {
	var out []FormField
	for k, f := range fields.All() {
		if f.ColumnName == "id" || f.ColumnName == "_id" || f.HideInCreate || f.Generated || f.Computed {
			continue
		}
		out = append(out, FormField{Key: k, FieldDefinition: f})
	}
	slices.SortStableFunc(out, func(a, b FormField) int { return cmp.Compare(a.Order, b.Order) })
	return out
}
