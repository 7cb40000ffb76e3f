package dto

import (
	"encoding/json"
	"time"

	"github.com/jinzhu/copier"
	"github.com/quickquiz/quickquiz/internal/model"
	"github.com/quickquiz/quickquiz/internal/service"
)

type ErrorResponse struct {
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type TestResponse struct {
	ID              uint             `json:"test_id"`
	CourseID        uint             `json:"course_id"`
	Title           string           `json:"title"`
	Description     string           `json:"description,omitempty"`
	DifficultyLevel string           `json:"difficulty_level"`
	Status          model.TestStatus `json:"status"`
	StartTime       *time.Time       `json:"start_time,omitempty"`
	DurationMinutes int              `json:"duration_minutes"`
	TotalQuestions  int              `json:"total_questions"`
	TotalMarks      float64          `json:"total_marks"`
	PassingMarks    float64          `json:"passing_marks"`
	CreatedAt       time.Time        `json:"created_at"`
}

func NewTestResponse(test *model.Test) TestResponse {
	var resp TestResponse
	copier.Copy(&resp, test)
	return resp
}

func NewTestResponses(tests []model.Test) []TestResponse {
	responses := make([]TestResponse, len(tests))
	for i := range tests {
		responses[i] = NewTestResponse(&tests[i])
	}
	return responses
}

type AttemptResponse struct {
	ID               uint                `json:"attempt_id"`
	TestID           uint                `json:"test_id"`
	Status           model.AttemptStatus `json:"status"`
	StartedAt        time.Time           `json:"started_at"`
	SubmittedAt      *time.Time          `json:"submitted_at,omitempty"`
	TotalScore       float64             `json:"total_score"`
	Percentage       float64             `json:"percentage"`
	Passed           *bool               `json:"passed,omitempty"`
	TimeTakenSeconds int                 `json:"time_taken_seconds"`
}

func NewAttemptResponse(attempt *model.Attempt) AttemptResponse {
	var resp AttemptResponse
	copier.Copy(&resp, attempt)
	return resp
}

type StartAttemptResponse struct {
	Attempt AttemptResponse `json:"attempt"`
	Resumed bool            `json:"resumed"`
}

// StudentQuestionView is a question as the student sees it mid-attempt: no
// correct answer, plus whatever they have saved so far.
type StudentQuestionView struct {
	QuestionID        uint               `json:"question_id"`
	QuestionText      string             `json:"question_text"`
	QuestionType      model.QuestionType `json:"question_type"`
	Options           []model.Option     `json:"options,omitempty"`
	Marks             float64            `json:"marks"`
	Difficulty        model.Difficulty   `json:"difficulty"`
	SavedAnswer       json.RawMessage    `json:"saved_answer,omitempty"`
	AnswerChangeCount int                `json:"answer_change_count"`
}

type AttemptQuestionsResponse struct {
	Attempt   AttemptResponse       `json:"attempt"`
	Test      TestResponse          `json:"test"`
	Questions []StudentQuestionView `json:"questions"`
}

func NewAttemptQuestionsResponse(view *service.AttemptQuestionsView) AttemptQuestionsResponse {
	questions := make([]StudentQuestionView, len(view.Questions))
	for i := range view.Questions {
		q := &view.Questions[i]
		questions[i] = StudentQuestionView{
			QuestionID:   q.ID,
			QuestionText: q.QuestionText,
			QuestionType: q.QuestionType,
			Options:      q.OptionList(),
			Marks:        q.Marks,
			Difficulty:   q.Difficulty,
		}
		if saved, ok := view.Saved[q.ID]; ok && saved.SelectedAnswer != nil {
			questions[i].SavedAnswer = json.RawMessage(*saved.SelectedAnswer)
			questions[i].AnswerChangeCount = saved.AnswerChangeCount
		}
	}
	return AttemptQuestionsResponse{
		Attempt:   NewAttemptResponse(view.Attempt),
		Test:      NewTestResponse(view.Test),
		Questions: questions,
	}
}

type SavedAnswerResponse struct {
	QuestionID        uint            `json:"question_id"`
	SavedAnswer       json.RawMessage `json:"saved_answer"`
	AnswerChanged     bool            `json:"answer_changed"`
	AnswerChangeCount int             `json:"answer_change_count"`
}

func NewSavedAnswerResponse(qa *model.QuestionAttempt) SavedAnswerResponse {
	resp := SavedAnswerResponse{
		QuestionID:        qa.QuestionID,
		AnswerChanged:     qa.AnswerChanged,
		AnswerChangeCount: qa.AnswerChangeCount,
	}
	if qa.SelectedAnswer != nil {
		resp.SavedAnswer = json.RawMessage(*qa.SelectedAnswer)
	}
	return resp
}

type CourseResponse struct {
	ID               uint   `json:"course_id"`
	CourseName       string `json:"course_name"`
	CourseLevel      string `json:"course_level"`
	CourseObjectives string `json:"course_objectives,omitempty"`
}

func NewCourseResponses(courses []model.Course) []CourseResponse {
	responses := make([]CourseResponse, len(courses))
	for i := range courses {
		copier.Copy(&responses[i], &courses[i])
	}
	return responses
}
