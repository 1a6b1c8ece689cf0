// Package models contains domain models and utility types.
package models

import (
	"encoding/json"
	"strconv"
)

// FlexInt is an int that can be unmarshaled from either a JSON number or string.
// This is useful when parsing LLM responses that may return numbers as strings
// (e.g., "fitScore": "87" instead of "fitScore": 87).
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler for FlexInt.
// It accepts both numeric values and string representations of numbers.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	var intVal int
	if err := json.Unmarshal(data, &intVal); err == nil {
		*f = FlexInt(intVal)
		return nil
	}

	// Numbers sometimes arrive as floats ("87.0")
	var floatVal float64
	if err := json.Unmarshal(data, &floatVal); err == nil {
		*f = FlexInt(int(floatVal + 0.5))
		return nil
	}

	var strVal string
	if err := json.Unmarshal(data, &strVal); err == nil {
		if strVal == "" {
			*f = 0
			return nil
		}
		if parsed, err := strconv.Atoi(strVal); err == nil {
			*f = FlexInt(parsed)
			return nil
		}
		if parsed, err := strconv.ParseFloat(strVal, 64); err == nil {
			*f = FlexInt(int(parsed + 0.5))
			return nil
		}
		*f = 0
		return nil
	}

	// Default to 0 for other cases (null, etc.)
	*f = 0
	return nil
}

// MarshalJSON implements json.Marshaler for FlexInt.
// Always marshals as a numeric value.
func (f FlexInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(f))
}

// Int returns the FlexInt as a standard int.
func (f FlexInt) Int() int {
	return int(f)
}

// FlexStrings is a []string that can be unmarshaled from either a JSON array
// or a single string. LLM responses occasionally collapse one-element lists.
type FlexStrings []string

// UnmarshalJSON implements json.Unmarshaler for FlexStrings.
func (f *FlexStrings) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = list
		return nil
	}

	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*f = []string{}
			return nil
		}
		*f = []string{one}
		return nil
	}

	*f = []string{}
	return nil
}

// Strings returns the FlexStrings as a plain []string, never nil.
func (f FlexStrings) Strings() []string {
	if f == nil {
		return []string{}
	}
	return []string(f)
}
