package params

import (
	"fmt"
	"strings"
)

// MissingParameterError reports a required parameter absent from the
// submitted values.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing required parameter %q", e.Name)
}

// InvalidParameterError reports a submitted value rejected by one of the
// parameter's validators.
type InvalidParameterError struct {
	Name      string
	Validator Validator
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid value for parameter %q (%s)", e.Name, e.Validator)
}

// Resolve validates submitted values against the declared schema and fills
// in defaults for absent optional parameters.
//
// Validators run in declared order; the first failure wins. Submitted keys
// not present in the schema are ignored so older clients keep working when
// a spout gains parameters.
func Resolve(schema []Param, submitted map[string]string) (Values, error) {
	resolved := make(Values, len(schema))

	for _, p := range schema {
		value, present := submitted[p.Name]

		if !present {
			if p.Required {
				return nil, &MissingParameterError{Name: p.Name}
			}
			value = p.Default
		}

		for _, v := range p.Validation {
			if err := runValidator(p.Name, v, value); err != nil {
				return nil, err
			}
		}

		resolved[p.Name] = value
	}

	return resolved, nil
}

func runValidator(name string, v Validator, value string) error {
	switch v {
	case ValidatorNonEmpty:
		if strings.TrimSpace(value) == "" {
			return &InvalidParameterError{Name: name, Validator: v}
		}
		return nil
	default:
		return fmt.Errorf("unknown validator %q on parameter %q", v, name)
	}
}

// ValidateSchema checks the declared schema's own integrity.
// Parameter names must be unique within one spout.
func ValidateSchema(schema []Param) error {
	seen := make(map[string]bool, len(schema))
	for _, p := range schema {
		if p.Name == "" {
			return fmt.Errorf("parameter with empty name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate parameter name %q", p.Name)
		}
		seen[p.Name] = true

		if p.Type == TypeSelect && len(p.Values) == 0 {
			return fmt.Errorf("select parameter %q has no values", p.Name)
		}
	}
	return nil
}
