package repository

import (
	"github.com/quickquiz/quickquiz/internal/model"
	"gorm.io/gorm"
)

type QuestionRepository interface {
	CreateBatch(questions []model.Question) error
	FindByID(id uint) (*model.Question, error)
	FindByTestID(testID uint) ([]model.Question, error)
	UpdateMarks(questions []model.Question) error
	DeleteByIDs(ids []uint) error
}

type questionRepository struct {
	db *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) CreateBatch(questions []model.Question) error {
	if len(questions) == 0 {
		return nil
	}
	return r.db.Create(&questions).Error
}

func (r *questionRepository) FindByID(id uint) (*model.Question, error) {
	var question model.Question
	if err := r.db.First(&question, id).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

func (r *questionRepository) FindByTestID(testID uint) ([]model.Question, error) {
	var questions []model.Question
	err := r.db.Where("test_id = ?", testID).Order("id ASC").Find(&questions).Error
	return questions, err
}

func (r *questionRepository) UpdateMarks(questions []model.Question) error {
	for i := range questions {
		err := r.db.Model(&model.Question{}).
			Where("id = ?", questions[i].ID).
			Update("marks", questions[i].Marks).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *questionRepository) DeleteByIDs(ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Delete(&model.Question{}, ids).Error
}
