package repository

import (
	"github.com/quickquiz/quickquiz/internal/model"
	"gorm.io/gorm"
)

type QuestionAttemptRepository interface {
	FindAllByAttempt(attemptID uint) ([]model.QuestionAttempt, error)
	FindAllByAttemptWithQuestions(attemptID uint) ([]model.QuestionAttempt, error)
}

type questionAttemptRepository struct {
	db *gorm.DB
}

func NewQuestionAttemptRepository(db *gorm.DB) QuestionAttemptRepository {
	return &questionAttemptRepository{db: db}
}

func (r *questionAttemptRepository) FindAllByAttempt(attemptID uint) ([]model.QuestionAttempt, error) {
	var rows []model.QuestionAttempt
	err := r.db.Where("attempt_id = ?", attemptID).Order("question_id ASC").Find(&rows).Error
	return rows, err
}

func (r *questionAttemptRepository) FindAllByAttemptWithQuestions(attemptID uint) ([]model.QuestionAttempt, error) {
	var rows []model.QuestionAttempt
	err := r.db.Preload("Question").
		Where("attempt_id = ?", attemptID).Order("question_id ASC").Find(&rows).Error
	return rows, err
}
