package models

import (
	"encoding/json"
	"strings"
)

// FormDataKind identifies the typed shape of an application's form data.
type FormDataKind string

const (
	FormDataW2      FormDataKind = "w2"
	FormData1099    FormDataKind = "1099"
	FormDataGeneric FormDataKind = "generic"
)

// KindForFormTypeName maps a form type name such as "W-2" or "1099-NEC"
// to its typed form-data kind.
func KindForFormTypeName(name string) FormDataKind {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), " ", ""))
	switch {
	case normalized == "W-2" || normalized == "W2":
		return FormDataW2
	case strings.HasPrefix(normalized, "1099"):
		return FormData1099
	default:
		return FormDataGeneric
	}
}

// W2Data holds the wage-statement fields collected for W-2 applications.
type W2Data struct {
	TaxYear             string `json:"tax_year"`
	EmployerEIN         string `json:"employer_ein"`
	EmployerName        string `json:"employer_name"`
	EmployerAddress     string `json:"employer_address"`
	EmployeeName        string `json:"employee_name"`
	EmployeeSSN         string `json:"employee_ssn"`
	EmployeeAddress     string `json:"employee_address"`
	AnnualSalary        string `json:"annual_salary"`
	UsingW4From2020     bool   `json:"using_w4_2020"`
	WorkingMultipleJobs bool   `json:"working_multiple_jobs"`
	DependantTotal      string `json:"dependant_total"`
	OtherIncome         string `json:"other_income"`
	Deductions          string `json:"deductions"`
}

// DefaultTaxYear is prefilled on new W-2 drafts.
const DefaultTaxYear = "2025"

// NewW2Data returns an empty W-2 record with the default tax year.
func NewW2Data() *W2Data {
	return &W2Data{TaxYear: DefaultTaxYear}
}

// Form1099Data holds the payer/recipient fields shared by the 1099 variants.
type Form1099Data struct {
	RecipientName string `json:"recipient_name"`
	TIN           string `json:"tin"`
	Amount        string `json:"amount"`
}

// FormData is the typed view of an application's form data bag. Known
// form types carry a typed struct; admin-configured custom fields always
// live in Custom.
type FormData struct {
	Kind     FormDataKind   `json:"kind"`
	W2       *W2Data        `json:"w2,omitempty"`
	Form1099 *Form1099Data  `json:"form_1099,omitempty"`
	Custom   map[string]any `json:"custom,omitempty"`
}

// NewFormData returns an empty FormData for kind with typed defaults applied.
func NewFormData(kind FormDataKind) FormData {
	data := FormData{Kind: kind, Custom: map[string]any{}}
	switch kind {
	case FormDataW2:
		data.W2 = NewW2Data()
	case FormData1099:
		data.Form1099 = &Form1099Data{}
	}
	return data
}

// Flatten merges the typed fields and custom fields into the stored bag.
// Custom keys overwrite typed keys of the same name.
func (d FormData) Flatten() map[string]any {
	out := map[string]any{}
	switch {
	case d.W2 != nil:
		mergeStruct(out, d.W2)
	case d.Form1099 != nil:
		mergeStruct(out, d.Form1099)
	}
	for k, v := range d.Custom {
		out[k] = v
	}
	return out
}

// SplitFormData is the inverse of Flatten: keys belonging to the typed
// struct for kind are decoded into it and everything else goes to Custom.
func SplitFormData(kind FormDataKind, bag map[string]any) FormData {
	data := NewFormData(kind)
	typedKeys := map[string]bool{}

	var target any
	switch kind {
	case FormDataW2:
		target = data.W2
	case FormData1099:
		target = data.Form1099
	}

	if target != nil {
		stringKeys := map[string]bool{}
		for key, value := range structFields(target) {
			typedKeys[key] = true
			_, stringKeys[key] = value.(string)
		}
		subset := map[string]any{}
		for k, v := range bag {
			if !typedKeys[k] {
				continue
			}
			if stringKeys[k] {
				v = stringifyNumber(v)
			}
			subset[k] = v
		}
		if raw, err := json.Marshal(subset); err == nil {
			_ = json.Unmarshal(raw, target)
		}
	}

	for k, v := range bag {
		if !typedKeys[k] {
			data.Custom[k] = v
		}
	}
	return data
}

func mergeStruct(out map[string]any, v any) {
	for k, val := range structFields(v) {
		out[k] = val
	}
}

// structFields returns the JSON object form of v.
func structFields(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// stringifyNumber lets a client send annual_salary=75000 for a string field.
func stringifyNumber(v any) any {
	switch n := v.(type) {
	case float64, int, int64, json.Number:
		b, _ := json.Marshal(n)
		return string(b)
	}
	return v
}
