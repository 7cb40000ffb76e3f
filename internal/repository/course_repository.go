package repository

import (
	"github.com/quickquiz/quickquiz/internal/model"
	"gorm.io/gorm"
)

type CourseRepository interface {
	FindByID(id uint) (*model.Course, error)
	FindAll() ([]model.Course, error)
	FindNotEnrolled(studentID uint) ([]model.Course, error)
}

type courseRepository struct {
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) FindByID(id uint) (*model.Course, error) {
	var course model.Course
	if err := r.db.First(&course, id).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *courseRepository) FindAll() ([]model.Course, error) {
	var courses []model.Course
	err := r.db.Order("course_name ASC").Find(&courses).Error
	return courses, err
}

func (r *courseRepository) FindNotEnrolled(studentID uint) ([]model.Course, error) {
	var courses []model.Course
	err := r.db.
		Where("id NOT IN (?)", r.db.Model(&model.Enrollment{}).Select("course_id").Where("student_id = ?", studentID)).
		Order("course_name ASC").Find(&courses).Error
	return courses, err
}

type EnrollmentRepository interface {
	Create(enrollment *model.Enrollment) error
	Delete(studentID, courseID uint) (int64, error)
	Find(studentID, courseID uint) (*model.Enrollment, error)
	FindAllByStudent(studentID uint) ([]model.Enrollment, error)
}

type enrollmentRepository struct {
	db *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (r *enrollmentRepository) Create(enrollment *model.Enrollment) error {
	return r.db.Create(enrollment).Error
}

func (r *enrollmentRepository) Delete(studentID, courseID uint) (int64, error) {
	res := r.db.Where("student_id = ? AND course_id = ?", studentID, courseID).Delete(&model.Enrollment{})
	return res.RowsAffected, res.Error
}

func (r *enrollmentRepository) Find(studentID, courseID uint) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := r.db.Where("student_id = ? AND course_id = ?", studentID, courseID).First(&enrollment).Error
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (r *enrollmentRepository) FindAllByStudent(studentID uint) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	err := r.db.Where("student_id = ?", studentID).Order("taken_at DESC").Find(&enrollments).Error
	return enrollments, err
}
