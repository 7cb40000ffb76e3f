package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/quickquiz/quickquiz/config"
	"github.com/quickquiz/quickquiz/internal/model"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// GenerationParams carries the course metadata and test framing the generator
// conditions its drafts on.
type GenerationParams struct {
	CourseName       string
	CourseLevel      string
	CourseObjectives string
	Title            string
	Description      string
	DifficultyLevel  string // overall test difficulty: easy/medium/hard
	Count            int
	TotalMarks       float64
}

// QuestionGenerator drafts objective questions for test authoring. Marks on
// the returned questions are already calibrated against TotalMarks.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, params GenerationParams) ([]model.Question, error)
}

type geminiQuestionGenerator struct {
	client *genai.GenerativeModel
	cfg    *config.Config
}

func NewGeminiQuestionGenerator(cfg *config.Config) (QuestionGenerator, error) {
	if cfg.GeminiApiKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is not set; question generation will be unavailable")
		return &geminiQuestionGenerator{cfg: cfg}, nil
	}
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.GeminiApiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}
	m := client.GenerativeModel("gemini-2.0-flash")
	m.ResponseMIMEType = "application/json"
	return &geminiQuestionGenerator{client: m, cfg: cfg}, nil
}

// questionDraft is the JSON shape the model is instructed to produce.
type questionDraft struct {
	QuestionText  string          `json:"question_text"`
	Options       []model.Option  `json:"options,omitempty"`
	CorrectAnswer json.RawMessage `json:"correct_answer"`
	Tags          []string        `json:"tags"`
}

func (g *geminiQuestionGenerator) GenerateQuestions(ctx context.Context, params GenerationParams) ([]model.Question, error) {
	if g.client == nil {
		return nil, fmt.Errorf("question generator unavailable: gemini client not initialized")
	}
	if params.Count <= 0 {
		return nil, fmt.Errorf("question count must be positive, got %d", params.Count)
	}

	systemPrompt := g.systemPrompt(params)

	questions := make([]model.Question, 0, params.Count)
	difficulties := make([]model.Difficulty, 0, params.Count)
	var previousTexts []string

	for i := 0; i < params.Count; i++ {
		qType := rollQuestionType()
		qLevel := rollQuestionLevel(params.DifficultyLevel)

		prompt := buildQuestionPrompt(qType, qLevel, previousTexts)

		resp, err := g.client.GenerateContent(ctx, genai.Text(systemPrompt+"\n\n"+prompt))
		if err != nil {
			log.Error().Err(err).Str("question_type", string(qType)).Msg("Gemini API error during question generation")
			return nil, fmt.Errorf("gemini generation failed: %w", err)
		}

		raw := collectText(resp)
		draft, err := parseDraft(raw)
		if err != nil {
			log.Error().Err(err).Str("raw", raw).Msg("Failed to parse generated question")
			return nil, fmt.Errorf("unusable generation output: %w", err)
		}

		q, err := draftToQuestion(draft, qType, qLevel)
		if err != nil {
			log.Error().Err(err).Str("question_text", draft.QuestionText).Msg("Generated question failed validation")
			return nil, err
		}

		questions = append(questions, *q)
		difficulties = append(difficulties, qLevel)
		previousTexts = append(previousTexts, draft.QuestionText)
	}

	for i, m := range MarkDistribution(difficulties, params.TotalMarks) {
		questions[i].Marks = m
	}
	return questions, nil
}

func (g *geminiQuestionGenerator) systemPrompt(params GenerationParams) string {
	var b strings.Builder
	b.WriteString("You generate objective exam questions strictly in JSON format. ")
	b.WriteString("Output ONLY JSON for a single question object. ")
	fmt.Fprintf(&b, "The question is for the course named %s offered at the %s level. ", params.CourseName, params.CourseLevel)
	fmt.Fprintf(&b, "The title of the quiz set by the teacher is %s.", params.Title)
	if params.CourseObjectives != "" {
		fmt.Fprintf(&b, " The course objectives are as follows: <course_objectives_start> %s <course_objectives_end>.", params.CourseObjectives)
	}
	if params.Description != "" {
		fmt.Fprintf(&b, " Additionally, the teacher has given this specific guidance: <guidance_start> %s <guidance_end>.", params.Description)
	}
	return b.String()
}

func buildQuestionPrompt(qType model.QuestionType, level model.Difficulty, previous []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate 1 question of the difficulty level: %s. ", level)
	switch qType {
	case model.QuestionMCQ:
		b.WriteString("The question is a multiple choice question with a single correct answer. ")
		b.WriteString("Respond with question_text, options, correct_answer and tags. ")
		b.WriteString("options is a list of {id, text} objects with ids A, B, C, D and so on. ")
		b.WriteString("correct_answer is the single option id letter of the correct option. ")
	case model.QuestionMSQ:
		b.WriteString("The question is a multiple select question with one or more correct answers. ")
		b.WriteString("Respond with question_text, options, correct_answer and tags. ")
		b.WriteString("options is a list of {id, text} objects with ids A, B, C, D and so on. ")
		b.WriteString("correct_answer is a JSON list of the correct option id letters, all of which appear among the options. ")
	case model.QuestionNAT:
		b.WriteString("The question is a numeric answer type question. ")
		b.WriteString("Respond with question_text, correct_answer and tags. ")
		b.WriteString("correct_answer is strictly an integer, no decimals allowed; format the question accordingly. ")
	}
	b.WriteString("tags is a list of concise, general topic strings so they can be aggregated later.")
	if len(previous) > 0 {
		b.WriteString(" The following questions were already generated, do not repeat them: <questions_start>")
		for i, p := range previous {
			fmt.Fprintf(&b, "\nQuestion %d: %s.", i, p)
		}
		b.WriteString("<questions_end>")
	}
	return b.String()
}

func collectText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	return b.String()
}

// parseDraft tolerates markdown code fences around the JSON body, which the
// model occasionally emits despite the JSON response mime type.
func parseDraft(raw string) (*questionDraft, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var draft questionDraft
	if err := json.Unmarshal([]byte(cleaned), &draft); err != nil {
		return nil, fmt.Errorf("decoding question draft: %w", err)
	}
	if draft.QuestionText == "" {
		return nil, fmt.Errorf("question draft has empty question_text")
	}
	return &draft, nil
}

func draftToQuestion(draft *questionDraft, qType model.QuestionType, level model.Difficulty) (*model.Question, error) {
	var answer model.AnswerValue
	if err := json.Unmarshal(draft.CorrectAnswer, &answer); err != nil {
		return nil, fmt.Errorf("decoding correct_answer: %w", err)
	}
	if err := answer.ValidateFor(qType); err != nil {
		return nil, fmt.Errorf("correct_answer does not fit question type %s: %w", qType, err)
	}

	if qType == model.QuestionMCQ || qType == model.QuestionMSQ {
		if len(draft.Options) < 2 {
			return nil, fmt.Errorf("%s question needs at least 2 options, got %d", qType, len(draft.Options))
		}
		ids := make(map[string]struct{}, len(draft.Options))
		for _, opt := range draft.Options {
			ids[opt.ID] = struct{}{}
		}
		for _, id := range answerOptionIDs(answer) {
			if _, ok := ids[id]; !ok {
				return nil, fmt.Errorf("correct_answer references option %q which is not among the options", id)
			}
		}
	}

	q := &model.Question{
		QuestionText:  draft.QuestionText,
		QuestionType:  qType,
		CorrectAnswer: answer.Encode(),
		Difficulty:    level,
	}
	q.SetOptions(draft.Options)
	q.SetTags(draft.Tags)
	return q, nil
}

func answerOptionIDs(v model.AnswerValue) []string {
	switch v.Kind {
	case model.AnswerSingle:
		return []string{v.Single}
	case model.AnswerMultiple:
		return v.Multiple
	default:
		return nil
	}
}

// rollQuestionType picks mcq/msq/nat at 60/30/10.
func rollQuestionType() model.QuestionType {
	r := rand.Float64()
	switch {
	case r > 0.4:
		return model.QuestionMCQ
	case r > 0.1:
		return model.QuestionMSQ
	default:
		return model.QuestionNAT
	}
}

// rollQuestionLevel skews per-question difficulty around the test level.
func rollQuestionLevel(testLevel string) model.Difficulty {
	r := rand.Float64()
	switch strings.ToLower(testLevel) {
	case "easy":
		switch {
		case r > 0.9:
			return model.DifficultyHard
		case r > 0.7:
			return model.DifficultyMedium
		default:
			return model.DifficultyEasy
		}
	case "medium":
		switch {
		case r > 0.8:
			return model.DifficultyHard
		case r > 0.3:
			return model.DifficultyMedium
		default:
			return model.DifficultyEasy
		}
	default: // hard
		switch {
		case r > 0.6:
			return model.DifficultyHard
		case r > 0.2:
			return model.DifficultyMedium
		default:
			return model.DifficultyEasy
		}
	}
}
