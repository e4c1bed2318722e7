package service

import (
	"context"
	"database/sql"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-admin-api/internal/models"
	appErrors "github.com/noah-isme/course-admin-api/pkg/errors"
)

type studentStoreFake struct {
	emails      map[string]bool
	nationalIDs map[string]bool
	created     []*models.Student
}

func newStudentStore(emails ...string) *studentStoreFake {
	store := &studentStoreFake{emails: map[string]bool{}, nationalIDs: map[string]bool{}}
	for _, email := range emails {
		store.emails[email] = true
	}
	return store
}

func (s *studentStoreFake) ExistsByEmail(ctx context.Context, exec sqlx.ExtContext, email, excludeID string) (bool, error) {
	return s.emails[strings.ToLower(email)], nil
}

func (s *studentStoreFake) ExistsByNationalID(ctx context.Context, exec sqlx.ExtContext, nationalID, excludeID string) (bool, error) {
	return s.nationalIDs[nationalID], nil
}

func (s *studentStoreFake) Create(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error {
	if student.ID == "" {
		student.ID = "student-new"
	}
	s.emails[student.Email] = true
	if student.NationalID != nil {
		s.nationalIDs[*student.NationalID] = true
	}
	s.created = append(s.created, student)
	return nil
}

func (s *studentStoreFake) RegisteredEmails(ctx context.Context, emails []string) (map[string]struct{}, error) {
	found := map[string]struct{}{}
	for _, email := range emails {
		if s.emails[strings.ToLower(email)] {
			found[strings.ToLower(email)] = struct{}{}
		}
	}
	return found, nil
}

type courseStoreFake struct {
	courses map[string]*models.Course
	created []*models.Course
}

func newCourseStore(courses ...*models.Course) *courseStoreFake {
	store := &courseStoreFake{courses: map[string]*models.Course{}}
	for _, course := range courses {
		store.courses[course.ID] = course
	}
	return store
}

func (s *courseStoreFake) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CourseListItem, error) {
	course, ok := s.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.CourseListItem{Course: *course}, nil
}

func (s *courseStoreFake) FindByName(ctx context.Context, exec sqlx.ExtContext, name string) (*models.Course, error) {
	for _, course := range s.courses {
		if strings.EqualFold(course.Name, name) {
			return course, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *courseStoreFake) Create(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error {
	if course.ID == "" {
		course.ID = "course-" + strings.ToLower(course.Name)
	}
	s.courses[course.ID] = course
	s.created = append(s.created, course)
	return nil
}

type documentStorerFake struct {
	stored    []string
	discarded []string
	err       error
	onStore   func()
}

func (d *documentStorerFake) Store(ctx context.Context, ownerID string, files []*multipart.FileHeader) ([]string, error) {
	if d.err != nil {
		return nil, d.err
	}
	paths := make([]string, 0, len(files))
	for _, file := range files {
		paths = append(paths, "students/"+ownerID+"/"+file.Filename)
	}
	d.stored = append(d.stored, paths...)
	if d.onStore != nil {
		d.onStore()
	}
	return paths, nil
}

func (d *documentStorerFake) Discard(ctx context.Context, paths []string) {
	d.discarded = append(d.discarded, paths...)
}

type registrationFixture struct {
	svc       *RegistrationService
	ledger    *ledgerFake
	students  *studentStoreFake
	documents *documentStorerFake
}

func newRegistrationFixture(t *testing.T, students *studentStoreFake) (*registrationFixture, func() error) {
	tx, mock := newTxMock(t)
	ledger := newLedger()
	ledger.coursePrices["course-1"] = decimal.NewFromInt(1000)
	documents := &documentStorerFake{}
	courses := newCourseStore(
		&models.Course{ID: "course-1", Name: "Welding", Price: decimal.NewFromInt(1000), IsActive: true},
		&models.Course{ID: "course-old", Name: "Retired", Price: decimal.NewFromInt(500), IsActive: false},
	)
	svc := NewRegistrationService(RegistrationServiceParams{
		DB:          tx,
		Students:    students,
		Courses:     courses,
		Enrollments: enrollmentStoreFake{ledger},
		Payments:    paymentRepoFake{ledger},
		Documents:   documents,
	})
	fixture := &registrationFixture{svc: svc, ledger: ledger, students: students, documents: documents}
	mock.ExpectBegin()
	mock.ExpectRollback()
	return fixture, func() error {
		return mock.ExpectationsWereMet()
	}
}

func registrationStudent() StudentRequest {
	return StudentRequest{Name: "Jane Doe", Email: "Jane@Example.com", Phone: "+62 812 3456 7890", NationalID: "3201"}
}

func uploads(names ...string) []*multipart.FileHeader {
	files := make([]*multipart.FileHeader, 0, len(names))
	for _, name := range names {
		files = append(files, &multipart.FileHeader{Filename: name, Size: 10})
	}
	return files
}

func TestRegistrationServiceRegisterAll(t *testing.T) {
	tx, mock := newTxMock(t)
	ledger := newLedger()
	ledger.coursePrices["course-1"] = decimal.NewFromInt(1000)
	students := newStudentStore()
	documents := &documentStorerFake{}
	svc := NewRegistrationService(RegistrationServiceParams{
		DB:          tx,
		Students:    students,
		Courses:     newCourseStore(&models.Course{ID: "course-1", Name: "Welding", Price: decimal.NewFromInt(1000), IsActive: true}),
		Enrollments: enrollmentStoreFake{ledger},
		Payments:    paymentRepoFake{ledger},
		Documents:   documents,
		Metrics:     NewMetricsService(),
	})

	mock.ExpectBegin()
	mock.ExpectCommit()
	result, err := svc.Register(context.Background(), RegistrationRequest{
		Student:    registrationStudent(),
		Enrollment: &EnrollmentFields{CourseID: "course-1", Batch: "2026-A"},
		Payment:    &RegistrationPayment{PaymentFields: paymentFields(1000)},
		Documents:  uploads("id-card.pdf"),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "jane@example.com", result.Student.Email)
	assert.Equal(t, []string{"students/" + result.Student.ID + "/id-card.pdf"}, []string(result.Student.Documents))
	require.NotNil(t, result.Enrollment)
	assert.Equal(t, result.Student.ID, result.Enrollment.StudentID)
	require.NotNil(t, result.Payment)
	assert.Equal(t, result.Enrollment.ID, result.Payment.Payment.EnrollmentID)
	assert.Equal(t, models.EnrollmentStatusCompleted, result.Payment.EnrollmentStatus)
	assert.True(t, result.Payment.Balance.IsFullyPaid)
	assert.Empty(t, documents.discarded)
}

func TestRegistrationServiceRollsBack(t *testing.T) {
	cases := []struct {
		name     string
		students *studentStoreFake
		req      RegistrationRequest
		code     string
		field    string
	}{
		{
			name:     "duplicate email",
			students: newStudentStore("jane@example.com"),
			req:      RegistrationRequest{Student: registrationStudent()},
			code:     appErrors.ErrConflict.Code,
			field:    "email",
		},
		{
			name:     "inactive course",
			students: newStudentStore(),
			req:      RegistrationRequest{Student: registrationStudent(), Enrollment: &EnrollmentFields{CourseID: "course-old"}},
			code:     appErrors.ErrBusinessRule.Code,
			field:    "courseId",
		},
		{
			name:     "missing course",
			students: newStudentStore(),
			req:      RegistrationRequest{Student: registrationStudent(), Enrollment: &EnrollmentFields{CourseID: "course-404"}},
			code:     appErrors.ErrNotFound.Code,
			field:    "courseId",
		},
		{
			name:     "payment over price",
			students: newStudentStore(),
			req: RegistrationRequest{
				Student:    registrationStudent(),
				Enrollment: &EnrollmentFields{CourseID: "course-1"},
				Payment:    &RegistrationPayment{PaymentFields: paymentFields(1500)},
			},
			code:  appErrors.ErrBusinessRule.Code,
			field: "amount",
		},
		{
			name:     "payment for another enrollment",
			students: newStudentStore(),
			req: RegistrationRequest{
				Student:    registrationStudent(),
				Enrollment: &EnrollmentFields{CourseID: "course-1"},
				Payment:    &RegistrationPayment{EnrollmentID: "enr-other", PaymentFields: paymentFields(100)},
			},
			code:  appErrors.ErrBusinessRule.Code,
			field: "payment.enrollmentId",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fixture, expectations := newRegistrationFixture(t, tc.students)
			tc.req.Documents = uploads("photo.png")

			_, err := fixture.svc.Register(context.Background(), tc.req)
			require.Error(t, err)
			appErr := appErrors.FromError(err)
			assert.Equal(t, tc.code, appErr.Code)
			assert.Contains(t, appErr.Fields, tc.field)
			assert.Equal(t, fixture.documents.stored, fixture.documents.discarded)
			assert.Empty(t, fixture.ledger.payments)
			assert.NoError(t, expectations())
		})
	}
}

func TestRegistrationServiceValidatesBeforeStoring(t *testing.T) {
	tx, mock := newTxMock(t)
	documents := &documentStorerFake{}
	svc := NewRegistrationService(RegistrationServiceParams{DB: tx, Students: newStudentStore(), Documents: documents})

	_, err := svc.Register(context.Background(), RegistrationRequest{
		Student:   StudentRequest{Name: "J", Email: "not-an-email", Phone: "abc"},
		Documents: uploads("id.pdf"),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Fields, "name")
	assert.Contains(t, appErr.Fields, "email")
	assert.Contains(t, appErr.Fields, "phone")

	_, err = svc.Register(context.Background(), RegistrationRequest{
		Student: registrationStudent(),
		Payment: &RegistrationPayment{PaymentFields: paymentFields(100)},
	})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Fields, "enrollment")

	assert.Empty(t, documents.stored)
	assert.NoError(t, mock.ExpectationsWereMet())
}
