// Package schema defines the metadata stored for a collection: per-field
// definitions and table-wide settings.
package schema

import "slices"

// DataType is the declared type of a field.
type DataType string

const (
	TypeString      DataType = "string"
	TypeText        DataType = "text"
	TypeRichText    DataType = "richtext"
	TypeNumber      DataType = "number"
	TypeInt         DataType = "int"
	TypeFloat       DataType = "float"
	TypeDecimal     DataType = "decimal"
	TypeBigInt      DataType = "bigint"
	TypeBoolean     DataType = "boolean"
	TypeEnum        DataType = "enum"
	TypeArray       DataType = "array"
	TypeObject      DataType = "object"
	TypeJSON        DataType = "json"
	TypeDate        DataType = "date"
	TypeTime        DataType = "time"
	TypeDateTime    DataType = "datetime"
	TypeTimestamp   DataType = "timestamp"
	TypeEmail       DataType = "email"
	TypeURL         DataType = "url"
	TypeURLEndpoint DataType = "url_endpoint"
	TypeIP          DataType = "ip"
	TypeIPv4        DataType = "ipv4"
	TypeIPv6        DataType = "ipv6"
	TypeMACAddress  DataType = "mac_address"
	TypeImage       DataType = "image"
	TypeFile        DataType = "file"
	TypeVideo       DataType = "video"
	TypeAudio       DataType = "audio"
	TypeUUID        DataType = "uuid"
	TypeSKU         DataType = "sku"
	TypeSlug        DataType = "slug"
	TypePassword    DataType = "password"
	TypeHash        DataType = "hash"
	TypeToken       DataType = "token"
	TypeReference   DataType = "reference"
	TypeComputed    DataType = "computed"
	TypeVirtual     DataType = "virtual"
)

// DataTypes lists every supported data type in display order.
var DataTypes = []DataType{
	TypeString, TypeText, TypeRichText, TypeNumber, TypeInt, TypeFloat, TypeDecimal,
	TypeBigInt, TypeBoolean, TypeEnum, TypeArray, TypeObject, TypeJSON, TypeDate,
	TypeTime, TypeDateTime, TypeTimestamp, TypeEmail, TypeURL, TypeURLEndpoint, TypeIP,
	TypeIPv4, TypeIPv6, TypeMACAddress, TypeImage, TypeFile, TypeVideo, TypeAudio,
	TypeUUID, TypeSKU, TypeSlug, TypePassword, TypeHash, TypeToken, TypeReference,
	TypeComputed, TypeVirtual,
}

// Valid reports whether t is a known data type.
func (t DataType) Valid() bool { return slices.Contains(DataTypes, t) }

// IsNumeric reports whether values of t are numbers.
func (t DataType) IsNumeric() bool {
	switch t {
	case TypeNumber, TypeInt, TypeFloat, TypeDecimal, TypeBigInt:
		return true
	}
	return false
}

// IsTextual reports whether values of t are strings.
func (t DataType) IsTextual() bool {
	switch t {
	case TypeBoolean, TypeArray, TypeObject, TypeJSON, TypeComputed, TypeVirtual:
		return false
	}
	return !t.IsNumeric()
}

// StorageType selects how the server protects a value at rest.
type StorageType string

const (
	StorageNone   StorageType = ""
	StorageBCrypt StorageType = "BCrypt"
	StorageSHA256 StorageType = "SHA256"
	StorageAES256 StorageType = "AES256"
)

// StorageTypes lists the selectable storage types.
var StorageTypes = []StorageType{StorageNone, StorageBCrypt, StorageSHA256, StorageAES256}

// Valid reports whether s is a known storage type.
func (s StorageType) Valid() bool { return slices.Contains(StorageTypes, s) }

func (s StorageType) String() string {
	if s == StorageNone {
		return "None"
	}
	return string(s)
}

// Component is the form widget used to edit a field.
type Component string

const (
	ComponentInput    Component = "input"
	ComponentTextarea Component = "textarea"
	ComponentSelect   Component = "select"
	ComponentSwitch   Component = "switch"
	ComponentDate     Component = "date"
	ComponentRichText Component = "richtext"
)

// Components lists the selectable components.
var Components = []Component{
	ComponentInput, ComponentTextarea, ComponentSelect, ComponentSwitch, ComponentDate, ComponentRichText,
}

// ReferentialAction is the on_delete / on_update behaviour of a foreign key.
type ReferentialAction string

const (
	ActionRestrict ReferentialAction = "restrict"
	ActionCascade  ReferentialAction = "cascade"
	ActionSetNull  ReferentialAction = "set_null"
)

// ReferentialActions lists the selectable actions.
var ReferentialActions = []ReferentialAction{ActionRestrict, ActionCascade, ActionSetNull}

// Valid reports whether a is empty or a known action.
func (a ReferentialAction) Valid() bool {
	return a == "" || slices.Contains(ReferentialActions, a)
}

// Permissions lists the roles allowed to read or write a field.
type Permissions struct {
	ReadRoles  []string `json:"read_roles,omitempty" yaml:"read_roles,omitempty"`
	WriteRoles []string `json:"write_roles,omitempty" yaml:"write_roles,omitempty"`
}

// FieldForeignKey is a single-column reference declared on a field.
type FieldForeignKey struct {
	Table  string `json:"table" yaml:"table"`
	Column string `json:"column" yaml:"column"`
}
