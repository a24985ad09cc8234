package params

import (
	"errors"
	"testing"
)

func TestResolve(t *testing.T) {
	schema := []Param{
		{Name: "url", Type: TypeURL, Required: true, Validation: []Validator{ValidatorNonEmpty}},
		{Name: "sort", Type: TypeSelect, Default: "hot", Values: map[string]string{"hot": "Hot", "new": "New"}},
		{Name: "nsfw", Type: TypeCheckbox, Default: ""},
	}

	tests := []struct {
		name      string
		submitted map[string]string
		want      Values
		wantErr   error
	}{
		{
			name:      "required parameter missing",
			submitted: map[string]string{"sort": "new"},
			wantErr:   &MissingParameterError{Name: "url"},
		},
		{
			name:      "nonempty validator rejects blank value",
			submitted: map[string]string{"url": "   "},
			wantErr:   &InvalidParameterError{Name: "url", Validator: ValidatorNonEmpty},
		},
		{
			name:      "defaults fill absent optional parameters",
			submitted: map[string]string{"url": "https://example.com/feed"},
			want:      Values{"url": "https://example.com/feed", "sort": "hot", "nsfw": ""},
		},
		{
			name: "unknown submitted keys are ignored",
			submitted: map[string]string{
				"url":      "https://example.com/feed",
				"obsolete": "whatever",
			},
			want: Values{"url": "https://example.com/feed", "sort": "hot", "nsfw": ""},
		},
		{
			name:      "submitted value wins over default",
			submitted: map[string]string{"url": "https://example.com/feed", "sort": "new", "nsfw": "1"},
			want:      Values{"url": "https://example.com/feed", "sort": "new", "nsfw": "1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(schema, tt.submitted)

			if tt.wantErr != nil {
				if err == nil {
					t.Fatalf("Resolve() error = nil, want %v", tt.wantErr)
				}
				if err.Error() != tt.wantErr.Error() {
					t.Errorf("Resolve() error = %v, want %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Resolve() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("Resolve()[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestResolveErrorTypes(t *testing.T) {
	schema := []Param{
		{Name: "token", Required: true, Validation: []Validator{ValidatorNonEmpty}},
	}

	_, err := Resolve(schema, nil)
	var missing *MissingParameterError
	if !errors.As(err, &missing) {
		t.Fatalf("Resolve() error = %T, want *MissingParameterError", err)
	}
	if missing.Name != "token" {
		t.Errorf("missing.Name = %q, want %q", missing.Name, "token")
	}

	_, err = Resolve(schema, map[string]string{"token": ""})
	var invalid *InvalidParameterError
	if !errors.As(err, &invalid) {
		t.Fatalf("Resolve() error = %T, want *InvalidParameterError", err)
	}
	if invalid.Validator != ValidatorNonEmpty {
		t.Errorf("invalid.Validator = %q, want %q", invalid.Validator, ValidatorNonEmpty)
	}
}

func TestValidateSchema(t *testing.T) {
	tests := []struct {
		name    string
		schema  []Param
		wantErr bool
	}{
		{
			name:   "valid schema",
			schema: []Param{{Name: "a"}, {Name: "b", Type: TypeSelect, Values: map[string]string{"x": "X"}}},
		},
		{
			name:    "duplicate names",
			schema:  []Param{{Name: "a"}, {Name: "a"}},
			wantErr: true,
		},
		{
			name:    "select without values",
			schema:  []Param{{Name: "a", Type: TypeSelect}},
			wantErr: true,
		},
		{
			name:    "empty name",
			schema:  []Param{{Name: ""}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchema(tt.schema)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSchema() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValuesGetBool(t *testing.T) {
	v := Values{"checked": "1", "unchecked": ""}

	if !v.GetBool("checked") {
		t.Errorf("GetBool(checked) = false, want true")
	}
	if v.GetBool("unchecked") {
		t.Errorf("GetBool(unchecked) = true, want false")
	}
	if v.GetBool("absent") {
		t.Errorf("GetBool(absent) = true, want false")
	}
}
