package service

import (
	"errors"
	"fmt"

	"github.com/quickquiz/quickquiz/internal/apperr"
	"github.com/quickquiz/quickquiz/internal/model"
	"github.com/quickquiz/quickquiz/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// EnrollmentService manages course membership for students. Enrollment gates
// every attempt operation.
type EnrollmentService interface {
	Enroll(studentID, courseID uint) error
	Unenroll(studentID, courseID uint) error
	EnrolledCourses(studentID uint) ([]model.Course, error)
	AvailableCourses(studentID uint) ([]model.Course, error)
}

type enrollmentService struct {
	courseRepo     repository.CourseRepository
	enrollmentRepo repository.EnrollmentRepository
}

func NewEnrollmentService(courseRepo repository.CourseRepository, enrollmentRepo repository.EnrollmentRepository) EnrollmentService {
	return &enrollmentService{courseRepo: courseRepo, enrollmentRepo: enrollmentRepo}
}

// Enroll is idempotent: enrolling twice in the same course succeeds without a
// second row.
func (s *enrollmentService) Enroll(studentID, courseID uint) error {
	if _, err := s.courseRepo.FindByID(courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("course %d: %w", courseID, apperr.ErrNotFound)
		}
		return fmt.Errorf("failed to load course: %w", err)
	}
	if _, err := s.enrollmentRepo.Find(studentID, courseID); err == nil {
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check enrollment: %w", err)
	}

	err := s.enrollmentRepo.Create(&model.Enrollment{StudentID: studentID, CourseID: courseID})
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("failed to enroll: %w", err)
	}
	log.Info().Uint("student_id", studentID).Uint("course_id", courseID).Msg("student enrolled")
	return nil
}

func (s *enrollmentService) Unenroll(studentID, courseID uint) error {
	affected, err := s.enrollmentRepo.Delete(studentID, courseID)
	if err != nil {
		return fmt.Errorf("failed to unenroll: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("student %d is not enrolled in course %d: %w", studentID, courseID, apperr.ErrNotFound)
	}
	log.Info().Uint("student_id", studentID).Uint("course_id", courseID).Msg("student unenrolled")
	return nil
}

func (s *enrollmentService) EnrolledCourses(studentID uint) ([]model.Course, error) {
	enrollments, err := s.enrollmentRepo.FindAllByStudent(studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	courses := make([]model.Course, 0, len(enrollments))
	for _, e := range enrollments {
		course, err := s.courseRepo.FindByID(e.CourseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load course %d: %w", e.CourseID, err)
		}
		courses = append(courses, *course)
	}
	return courses, nil
}

func (s *enrollmentService) AvailableCourses(studentID uint) ([]model.Course, error) {
	courses, err := s.courseRepo.FindNotEnrolled(studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list available courses: %w", err)
	}
	return courses, nil
}
