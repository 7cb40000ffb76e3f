package model

import (
	"encoding/json"
	"time"
)

type QuestionType string

const (
	QuestionMCQ QuestionType = "mcq" // single correct option
	QuestionMSQ QuestionType = "msq" // set of correct options
	QuestionNAT QuestionType = "nat" // numeric answer
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Weight drives mark calibration: easy 1, medium 2, hard 3.
func (d Difficulty) Weight() int {
	switch d {
	case DifficultyMedium:
		return 2
	case DifficultyHard:
		return 3
	default:
		return 1
	}
}

// Option is one selectable choice of an mcq/msq question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Question struct {
	ID            uint         `gorm:"primarykey" json:"question_id"`
	TestID        uint         `json:"test_id" gorm:"not null;index"`
	QuestionText  string       `json:"question_text" gorm:"type:text;not null"`
	QuestionType  QuestionType `json:"question_type" gorm:"not null"`
	Options       *string      `json:"-" gorm:"type:text"` // JSON [{id,text}...], nil for nat
	CorrectAnswer string       `json:"-" gorm:"type:text;not null"`
	Marks         float64      `json:"marks" gorm:"not null;default:0"`
	Difficulty    Difficulty   `json:"difficulty" gorm:"not null;default:'easy'"`
	Tags          string       `json:"-" gorm:"type:text"` // JSON ["tag",...]
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// OptionList decodes the stored options. Nil for nat questions.
func (q *Question) OptionList() []Option {
	if q.Options == nil {
		return nil
	}
	var opts []Option
	if err := json.Unmarshal([]byte(*q.Options), &opts); err != nil {
		return nil
	}
	return opts
}

func (q *Question) SetOptions(opts []Option) {
	if len(opts) == 0 {
		q.Options = nil
		return
	}
	b, _ := json.Marshal(opts)
	s := string(b)
	q.Options = &s
}

// TagList decodes the stored topic tags.
func (q *Question) TagList() []string {
	if q.Tags == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(q.Tags), &tags); err != nil {
		return nil
	}
	return tags
}

func (q *Question) SetTags(tags []string) {
	b, _ := json.Marshal(tags)
	q.Tags = string(b)
}
