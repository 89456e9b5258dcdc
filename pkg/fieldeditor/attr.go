package fieldeditor

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/faciam-dev/docmeta/pkg/schema"
)

// SetAttr sets one attribute of a field by its JSON name, e.g.
// SetAttr("age", "min_value", "18"). The value is read as a JSON literal when
// it parses as one and as a plain string otherwise. Setting column_name
// renames the field.
func (e *Editor) SetAttr(key, name, value string) error {
	def, ok := e.fields.Get(key)
	if !ok {
		return fmt.Errorf("set %s.%s: %w", key, name, schema.ErrFieldNotFound)
	}
	b, err := json.Marshal(def)
	if err != nil {
		return err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	if !slices.Contains(Attrs, name) {
		return fmt.Errorf("set %s: unknown attribute %q", key, name)
	}
	m[name] = parseValue(name, value)
	b, err = json.Marshal(m)
	if err != nil {
		return err
	}
	var next schema.FieldDefinition
	if err := json.Unmarshal(b, &next); err != nil {
		return fmt.Errorf("set %s.%s: %w", key, name, err)
	}
	return e.Update(key, func(f *schema.FieldDefinition) { *f = next })
}

var stringAttrs = []string{
	"column_name", "data_type", "regex", "label", "placeholder", "component",
	"storage_type", "compute_expression", "on_delete", "on_update",
}

func parseValue(name, value string) any {
	if slices.Contains(stringAttrs, name) {
		return value
	}
	if name == "allowed_values" && !strings.HasPrefix(strings.TrimSpace(value), "[") {
		return strings.Split(value, ",")
	}
	var v any
	if err := json.Unmarshal([]byte(value), &v); err == nil {
		return v
	}
	return value
}

// Attrs lists the attribute names accepted by SetAttr.
var Attrs = []string{
	"column_name", "data_type", "required", "disabled", "is_unique",
	"min_length", "max_length", "regex", "allowed_values", "min_value", "max_value",
	"label", "placeholder", "component", "order", "show_in_table", "readonly", "hide_in_create", "hide_in_edit",
	"storage_type", "encrypt", "mask", "permissions",
	"generated", "computed", "compute_expression", "audit", "soft_delete",
	"index", "primary_key", "auto_increment", "foreign_key", "on_delete", "on_update",
}
