package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// AnswerKind discriminates the shape of an answer value.
type AnswerKind string

const (
	AnswerSingle   AnswerKind = "single"   // one option id, mcq
	AnswerMultiple AnswerKind = "multiple" // set of option ids, msq
	AnswerNumeric  AnswerKind = "numeric"  // number, nat
)

// AnswerValue is the tagged union behind correct_answer and selected_answer.
// On the wire and in the database it is plain JSON: "B", ["A","C"] or 42.
// The shape must match the owning question's type; ValidateFor enforces that
// at the boundary so nothing downstream interprets raw JSON ad hoc.
type AnswerValue struct {
	Kind     AnswerKind
	Single   string
	Multiple []string
	Numeric  float64
}

func SingleAnswer(optionID string) AnswerValue {
	return AnswerValue{Kind: AnswerSingle, Single: optionID}
}

func MultipleAnswer(optionIDs ...string) AnswerValue {
	return AnswerValue{Kind: AnswerMultiple, Multiple: optionIDs}
}

func NumericAnswer(n float64) AnswerValue {
	return AnswerValue{Kind: AnswerNumeric, Numeric: n}
}

func (v AnswerValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case AnswerSingle:
		return json.Marshal(v.Single)
	case AnswerMultiple:
		return json.Marshal(v.Multiple)
	case AnswerNumeric:
		return json.Marshal(v.Numeric)
	default:
		return []byte("null"), nil
	}
}

func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return fmt.Errorf("answer value is empty")
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v.Kind = AnswerSingle
		v.Single = s
		return nil
	case '[':
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		v.Kind = AnswerMultiple
		v.Multiple = list
		return nil
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		v.Kind = AnswerNumeric
		v.Numeric = n
		return nil
	}
}

// ParseAnswer decodes the JSON representation stored in the database.
func ParseAnswer(raw string) (AnswerValue, error) {
	var v AnswerValue
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return AnswerValue{}, fmt.Errorf("malformed answer %q: %w", raw, err)
	}
	return v, nil
}

// Encode renders the value to its canonical stored form. Multiple answers are
// stored sorted so that equality of encodings means equality of sets.
func (v AnswerValue) Encode() string {
	switch v.Kind {
	case AnswerMultiple:
		ids := append([]string(nil), v.Multiple...)
		sort.Strings(ids)
		b, _ := json.Marshal(ids)
		return string(b)
	default:
		b, _ := v.MarshalJSON()
		return string(b)
	}
}

// AsNumeric interprets the value as a number. A single string answer like
// "42.005" counts: numeric answers frequently arrive serialized as text.
func (v AnswerValue) AsNumeric() (float64, bool) {
	switch v.Kind {
	case AnswerNumeric:
		return v.Numeric, true
	case AnswerSingle:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.Single), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// ValidateFor checks that the value's shape fits the question type.
func (v AnswerValue) ValidateFor(qt QuestionType) error {
	switch qt {
	case QuestionMCQ:
		if v.Kind != AnswerSingle || v.Single == "" {
			return fmt.Errorf("mcq answer must be a single option id")
		}
	case QuestionMSQ:
		if v.Kind != AnswerMultiple || len(v.Multiple) == 0 {
			return fmt.Errorf("msq answer must be a non-empty list of option ids")
		}
	case QuestionNAT:
		if _, ok := v.AsNumeric(); !ok {
			return fmt.Errorf("nat answer must be numeric")
		}
	default:
		return fmt.Errorf("unknown question type %q", qt)
	}
	return nil
}
