// Package params declares the configurable fields of a spout and resolves
// submitted values against them.
package params

// Type governs how a parameter is presented by a client.
// It does not affect validation beyond what Validation specifies.
type Type string

const (
	TypeText     Type = "text"
	TypePassword Type = "password"
	TypeURL      Type = "url"
	TypeSelect   Type = "select"
	TypeCheckbox Type = "checkbox"
)

// Validator names a pure check applied to a submitted value.
type Validator string

const (
	// ValidatorNonEmpty fails when the trimmed value is empty.
	ValidatorNonEmpty Validator = "notempty"
)

// Param describes one configuration field of a spout.
type Param struct {
	Name       string      `json:"name"`
	Title      string      `json:"title"`
	Type       Type        `json:"type"`
	Default    string      `json:"default"`
	Required   bool        `json:"required"`
	Validation []Validator `json:"validation"`
	// Values lists the selectable options for TypeSelect, value to label.
	Values map[string]string `json:"values,omitempty"`
}

// Values holds resolved parameter values keyed by parameter name.
type Values map[string]string

func (v Values) Get(name string) string {
	return v[name]
}

// GetBool interprets a checkbox value. The form encoding uses "1" for
// checked and an empty string otherwise.
func (v Values) GetBool(name string) bool {
	return v[name] == "1"
}
