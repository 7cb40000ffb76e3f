package repository

import (
	"github.com/quickquiz/quickquiz/internal/model"
	"gorm.io/gorm"
)

type TestRepository interface {
	Create(test *model.Test) error
	FindByID(id uint) (*model.Test, error)
	FindByIDWithQuestions(id uint) (*model.Test, error)
	FindByCourse(courseID uint, statuses []model.TestStatus) ([]model.Test, error)
	FindAllByTeacher(teacherID uint) ([]model.Test, error)
	FindByStatuses(statuses []model.TestStatus) ([]model.Test, error)
}

type testRepository struct {
	db *gorm.DB
}

func NewTestRepository(db *gorm.DB) TestRepository {
	return &testRepository{db: db}
}

func (r *testRepository) Create(test *model.Test) error {
	// Creates associated questions in the same insert when test.Questions is
	// populated.
	return r.db.Create(test).Error
}

func (r *testRepository) FindByID(id uint) (*model.Test, error) {
	var test model.Test
	if err := r.db.First(&test, id).Error; err != nil {
		return nil, err
	}
	return &test, nil
}

func (r *testRepository) FindByIDWithQuestions(id uint) (*model.Test, error) {
	var test model.Test
	err := r.db.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("questions.id ASC")
	}).First(&test, id).Error
	if err != nil {
		return nil, err
	}
	return &test, nil
}

func (r *testRepository) FindByCourse(courseID uint, statuses []model.TestStatus) ([]model.Test, error) {
	var tests []model.Test
	query := r.db.Where("course_id = ?", courseID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	err := query.Order("created_at DESC").Find(&tests).Error
	return tests, err
}

func (r *testRepository) FindByStatuses(statuses []model.TestStatus) ([]model.Test, error) {
	var tests []model.Test
	err := r.db.Where("status IN ?", statuses).Find(&tests).Error
	return tests, err
}

func (r *testRepository) FindAllByTeacher(teacherID uint) ([]model.Test, error) {
	var tests []model.Test
	err := r.db.Where("teacher_id = ?", teacherID).Order("created_at DESC").Find(&tests).Error
	return tests, err
}
