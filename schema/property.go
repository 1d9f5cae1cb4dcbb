package schema

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/xugu-publish/xugudef/util"
)

// Property is a key of an edit command's changed-property map.
type Property int

const (
	PropName Property = iota
	PropComment
	PropPassword
	PropConfirmPassword
	PropLocked
	PropDatabaseAuthority
	PropObjectAuthority
	PropSubObjectAuthority
	PropTargetSchema
	PropTargetType
	PropTargetObject
	PropSubTargetType
	PropSubTargetObject
	PropRoles
	PropDataType
	PropNotNull
	PropDefault
	PropDefinition
	PropSource
	PropEnabled
	PropOnline
	PropIncrement
	PropMinValue
	PropMaxValue
	PropCycle
	PropCache
	PropOrder
	PropTablespace
	PropTarget
)

var propertyNames = [...]string{
	PropName:               "NAME",
	PropComment:            "COMMENT",
	PropPassword:           "PASSWORD",
	PropConfirmPassword:    "CONFIRM_PASSWORD",
	PropLocked:             "LOCKED",
	PropDatabaseAuthority:  "DATABASE_AUTHORITY",
	PropObjectAuthority:    "OBJECT_AUTHORITY",
	PropSubObjectAuthority: "SUB_OBJECT_AUTHORITY",
	PropTargetSchema:       "TARGET_SCHEMA",
	PropTargetType:         "TARGET_TYPE",
	PropTargetObject:       "TARGET_OBJECT",
	PropSubTargetType:      "SUB_TARGET_TYPE",
	PropSubTargetObject:    "SUB_TARGET_OBJECT",
	PropRoles:              "ROLES",
	PropDataType:           "DATA_TYPE",
	PropNotNull:            "NOT_NULL",
	PropDefault:            "DEFAULT",
	PropDefinition:         "DEFINITION",
	PropSource:             "SOURCE",
	PropEnabled:            "ENABLED",
	PropOnline:             "ONLINE",
	PropIncrement:          "INCREMENT",
	PropMinValue:           "MIN_VALUE",
	PropMaxValue:           "MAX_VALUE",
	PropCycle:              "CYCLE",
	PropCache:              "CACHE",
	PropOrder:              "ORDER",
	PropTablespace:         "TABLESPACE",
	PropTarget:             "TARGET",
}

func (p Property) String() string {
	if p >= 0 && int(p) < len(propertyNames) {
		return propertyNames[p]
	}
	return fmt.Sprintf("Property(%d)", int(p))
}

// ParseProperty maps an external key to a Property. Unknown keys are an error.
func ParseProperty(name string) (Property, error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range propertyNames {
		if n == key {
			return Property(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownProperty, name)
}

// Properties holds the changed properties of a command. Values are string,
// bool, int64 or []string.
type Properties map[Property]any

// ParseProperties converts an externally keyed map, failing on the first unknown key.
func ParseProperties(raw map[string]any) (Properties, error) {
	props := Properties{}
	for key, value := range util.CanonicalMapIter(raw) {
		prop, err := ParseProperty(key)
		if err != nil {
			return nil, err
		}
		props[prop] = normalizePropertyValue(value)
	}
	return props, nil
}

func normalizePropertyValue(value any) any {
	switch v := value.(type) {
	case []any:
		strs := make([]string, 0, len(v))
		for _, item := range v {
			strs = append(strs, fmt.Sprint(item))
		}
		return strs
	case int:
		return int64(v)
	case uint64:
		return int64(v)
	default:
		return value
	}
}

func (p Properties) Has(prop Property) bool {
	_, ok := p[prop]
	return ok
}

// Only reports whether p is non-empty and has no key outside props.
func (p Properties) Only(props ...Property) bool {
	if len(p) == 0 {
		return false
	}
	for key := range p {
		if !slices.Contains(props, key) {
			return false
		}
	}
	return true
}

// Keys returns the keys in declaration order.
func (p Properties) Keys() []Property {
	keys := make([]Property, 0, len(p))
	for key := range p {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

func (p Properties) Text(prop Property) string {
	switch v := p[prop].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (p Properties) Bool(prop Property) bool {
	switch v := p[prop].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

func (p Properties) Strings(prop Property) []string {
	switch v := p[prop].(type) {
	case []string:
		return v
	case []any:
		return normalizePropertyValue(v).([]string)
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

// check fails on the first key outside allowed.
func (p Properties) check(kind ObjectKind, allowed ...Property) error {
	for _, key := range p.Keys() {
		if !slices.Contains(allowed, key) {
			return fmt.Errorf("%w: %s is not a property of %s", ErrUnknownProperty, key, strings.ToLower(kind.String()))
		}
	}
	return nil
}
