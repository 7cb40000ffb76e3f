package repository

import (
	"github.com/quickquiz/quickquiz/internal/model"
	"gorm.io/gorm"
)

type AttemptRepository interface {
	FindByID(id uint) (*model.Attempt, error)
	FindByIDWithAnswers(id uint) (*model.Attempt, error)
	FindByStudentAndTest(studentID, testID uint, statuses []model.AttemptStatus) ([]model.Attempt, error)
	FindAllByStudent(studentID uint) ([]model.Attempt, error)
	FindAllByTest(testID uint, statuses []model.AttemptStatus) ([]model.Attempt, error)
}

type attemptRepository struct {
	db *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

func (r *attemptRepository) FindByID(id uint) (*model.Attempt, error) {
	var attempt model.Attempt
	if err := r.db.First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *attemptRepository) FindByIDWithAnswers(id uint) (*model.Attempt, error) {
	var attempt model.Attempt
	err := r.db.
		Preload("Test").
		Preload("QuestionAttempts.Question").
		First(&attempt, id).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *attemptRepository) FindByStudentAndTest(studentID, testID uint, statuses []model.AttemptStatus) ([]model.Attempt, error) {
	var attempts []model.Attempt
	query := r.db.Where("student_id = ? AND test_id = ?", studentID, testID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	err := query.Order("started_at DESC").Find(&attempts).Error
	return attempts, err
}

func (r *attemptRepository) FindAllByStudent(studentID uint) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.db.Where("student_id = ?", studentID).Order("started_at DESC").Find(&attempts).Error
	return attempts, err
}

func (r *attemptRepository) FindAllByTest(testID uint, statuses []model.AttemptStatus) ([]model.Attempt, error) {
	var attempts []model.Attempt
	query := r.db.Where("test_id = ?", testID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	err := query.Order("started_at DESC").Find(&attempts).Error
	return attempts, err
}
