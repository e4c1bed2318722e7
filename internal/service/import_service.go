package service

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/course-admin-api/internal/dto"
	"github.com/noah-isme/course-admin-api/internal/models"
	"github.com/noah-isme/course-admin-api/pkg/database"
	appErrors "github.com/noah-isme/course-admin-api/pkg/errors"
	"github.com/noah-isme/course-admin-api/pkg/export"
)

// Template formats.
const (
	TemplateCSV  = "csv"
	TemplateXLSX = "xlsx"
)

var importHeaders = []string{"name", "email", "phone", "nationalId", "address", "dateOfBirth", "courseName", "coursePrice", "batch", "notes"}

// headerAliases maps normalised header cells to ImportRow fields.
var headerAliases = map[string]string{
	"name": "name", "fullname": "name", "studentname": "name",
	"email": "email", "emailaddress": "email",
	"phone": "phone", "phonenumber": "phone", "mobile": "phone",
	"nationalid": "nationalId", "nik": "nationalId", "idnumber": "nationalId",
	"address":     "address",
	"dateofbirth": "dateOfBirth", "dob": "dateOfBirth", "birthdate": "dateOfBirth",
	"course": "courseName", "coursename": "courseName",
	"courseprice": "coursePrice", "price": "coursePrice",
	"batch": "batch",
	"notes": "notes", "note": "notes",
}

type importStudentStore interface {
	studentUniquenessChecker
	Create(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error
	RegisteredEmails(ctx context.Context, emails []string) (map[string]struct{}, error)
}

type importCourseStore interface {
	FindByName(ctx context.Context, exec sqlx.ExtContext, name string) (*models.Course, error)
	Create(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error
}

type importEnrollmentStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ImportServiceConfig bounds import batches.
type ImportServiceConfig struct {
	MaxRows    int
	SampleSize int
}

// ImportService previews and imports student CSV files.
type ImportService struct {
	db          database.TxBeginner
	students    importStudentStore
	courses     importCourseStore
	enrollments importEnrollmentStore
	csv         datasetRenderer
	xlsx        datasetRenderer
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         ImportServiceConfig
}

// ImportServiceParams groups constructor dependencies.
type ImportServiceParams struct {
	DB          database.TxBeginner
	Students    importStudentStore
	Courses     importCourseStore
	Enrollments importEnrollmentStore
	Cache       *CacheService
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
	Config      ImportServiceConfig
}

// NewImportService constructs the import service.
func NewImportService(params ImportServiceParams) *ImportService {
	cfg := params.Config
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 1000
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = 10
	}
	validate := params.Validator
	if validate == nil {
		validate = NewValidator()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{
		db:          params.DB,
		students:    params.Students,
		courses:     params.Courses,
		enrollments: params.Enrollments,
		csv:         export.NewCSVExporter(),
		xlsx:        export.NewXLSXExporter("Students"),
		cache:       params.Cache,
		metrics:     params.Metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
	}
}

// ValidateImportRow returns every problem with a row, or nil when it is valid.
// Preview and import both rely on it.
func ValidateImportRow(validate *validator.Validate, row dto.ImportRow) []string {
	err := validate.Struct(row)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, appErrors.FieldMessage(fe))
	}
	return messages
}

// Preview parses a CSV stream and reports valid and invalid rows.
func (s *ImportService) Preview(ctx context.Context, r io.Reader) (*dto.ImportPreview, error) {
	rows, err := s.parse(r)
	if err != nil {
		return nil, err
	}

	emails := make([]string, 0, len(rows))
	for _, parsed := range rows {
		if parsed.row.Email != "" {
			emails = append(emails, parsed.row.Email)
		}
	}
	registered, err := s.students.RegisteredEmails(ctx, emails)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check registered emails")
	}

	preview := &dto.ImportPreview{
		TotalRows: len(rows),
		ValidData: []dto.ImportRow{},
		Errors:    []dto.ImportRowError{},
		Sample:    []dto.ImportRow{},
	}
	firstSeen := make(map[string]int, len(rows))
	for _, parsed := range rows {
		row, rowNumber := parsed.row, parsed.number
		problems := ValidateImportRow(s.validator, row)
		if email := normalizeEmail(row.Email); email != "" {
			if first, dup := firstSeen[email]; dup {
				problems = append(problems, fmt.Sprintf("email duplicates row %d", first))
			} else {
				firstSeen[email] = rowNumber
			}
			if _, exists := registered[email]; exists {
				problems = append(problems, "email already registered")
			}
		}
		if len(problems) > 0 {
			preview.Errors = append(preview.Errors, dto.ImportRowError{Row: rowNumber, Data: row, Errors: problems})
			continue
		}
		preview.ValidData = append(preview.ValidData, row)
		if len(preview.Sample) < s.cfg.SampleSize {
			preview.Sample = append(preview.Sample, row)
		}
	}
	preview.ValidRows = len(preview.ValidData)
	preview.ErrorRows = len(preview.Errors)
	return preview, nil
}

// Import persists rows one transaction per row so a failing row does not
// abort the batch.
func (s *ImportService) Import(ctx context.Context, req dto.ImportRequest) (*dto.ImportResult, error) {
	if len(req.Rows) == 0 {
		return nil, appErrors.WithField(appErrors.Clone(appErrors.ErrValidation, "no rows to import"), "rows", "rows is required")
	}
	if len(req.Rows) > s.cfg.MaxRows {
		msg := fmt.Sprintf("at most %d rows can be imported at once", s.cfg.MaxRows)
		return nil, appErrors.WithField(appErrors.Clone(appErrors.ErrValidation, msg), "rows", msg)
	}
	if req.DefaultCoursePrice.IsNegative() {
		return nil, appErrors.WithField(appErrors.Clone(appErrors.ErrValidation, "default course price must not be negative"), "defaultCoursePrice", "defaultCoursePrice must be greater than or equal to 0")
	}

	result := &dto.ImportResult{Errors: []dto.ImportFailure{}}
	for i, row := range req.Rows {
		if err := ctx.Err(); err != nil {
			return nil, appErrors.Internal(err, "import interrupted")
		}
		// 1-based index into req.Rows
		rowNumber := i + 1
		if problems := ValidateImportRow(s.validator, row); len(problems) > 0 {
			result.Errors = append(result.Errors, dto.ImportFailure{Row: rowNumber, Email: row.Email, Message: strings.Join(problems, "; ")})
			continue
		}
		courseCreated, err := s.importRow(ctx, row, req)
		if err != nil {
			result.Errors = append(result.Errors, dto.ImportFailure{Row: rowNumber, Email: row.Email, Message: failureMessage(err)})
			continue
		}
		result.Imported++
		if courseCreated {
			result.CoursesCreated++
		}
	}
	result.Failed = len(result.Errors)

	if result.Imported > 0 {
		invalidateDashboard(ctx, s.cache)
	}
	s.metrics.RecordImport(result.Imported, result.Failed)
	s.logger.Info("student import finished",
		zap.Int("imported", result.Imported),
		zap.Int("failed", result.Failed),
		zap.Int("courses_created", result.CoursesCreated))
	return result, nil
}

func (s *ImportService) importRow(ctx context.Context, row dto.ImportRow, req dto.ImportRequest) (bool, error) {
	var courseCreated bool
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		courseCreated = false
		student := &models.Student{}
		StudentRequest{
			Name:        row.Name,
			Email:       row.Email,
			Phone:       row.Phone,
			NationalID:  row.NationalID,
			Address:     row.Address,
			DateOfBirth: row.DateOfBirth,
			Notes:       row.Notes,
		}.apply(student)
		if err := checkStudentUnique(ctx, s.students, tx, student, ""); err != nil {
			return err
		}
		if err := s.students.Create(ctx, tx, student); err != nil {
			return err
		}

		courseName := strings.TrimSpace(row.CourseName)
		if courseName == "" {
			return nil
		}
		course, created, err := s.resolveCourse(ctx, tx, courseName, row.CoursePrice, req)
		if err != nil {
			return err
		}
		courseCreated = created
		return s.enrollments.Create(ctx, tx, &models.Enrollment{
			StudentID: student.ID,
			CourseID:  course.ID,
			Status:    models.EnrollmentStatusActive,
			Batch:     strings.TrimSpace(row.Batch),
		})
	})
	return courseCreated, err
}

// resolveCourse finds a course by case-insensitive name, creating it when allowed.
func (s *ImportService) resolveCourse(ctx context.Context, tx sqlx.ExtContext, name, rawPrice string, req dto.ImportRequest) (*models.Course, bool, error) {
	course, err := s.courses.FindByName(ctx, tx, name)
	if err == nil {
		if !course.IsActive {
			return nil, false, appErrors.Clone(appErrors.ErrBusinessRule, fmt.Sprintf("course %q is not active", course.Name))
		}
		return course, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}
	if !req.AutoCreateCourses {
		return nil, false, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("course %q not found", name))
	}
	price := req.DefaultCoursePrice
	if strings.TrimSpace(rawPrice) != "" {
		parsed, err := decimal.NewFromString(strings.TrimSpace(rawPrice))
		if err != nil {
			return nil, false, appErrors.Clone(appErrors.ErrValidation, "coursePrice is invalid")
		}
		price = parsed
	}
	course = &models.Course{Name: name, Price: price.Round(2), IsActive: true}
	if err := s.courses.Create(ctx, tx, course); err != nil {
		return nil, false, err
	}
	return course, true, nil
}

// Template renders an empty import file with one example row.
func (s *ImportService) Template(format string) ([]byte, string, string, error) {
	data := export.Dataset{
		Headers: importHeaders,
		Rows: []map[string]string{{
			"name":        "Jane Doe",
			"email":       "jane.doe@example.com",
			"phone":       "+62 812-3456-7890",
			"nationalId":  "3201010101010001",
			"address":     "Jl. Merdeka 1",
			"dateOfBirth": "2000-01-31",
			"courseName":  "Basic Welding",
			"coursePrice": "1500000",
			"batch":       "2026-A",
			"notes":       "",
		}},
	}
	switch strings.ToLower(format) {
	case "", TemplateCSV:
		body, err := s.csv.Render(data)
		if err != nil {
			return nil, "", "", appErrors.Internal(err, "failed to render template")
		}
		return body, "student-import-template.csv", "text/csv", nil
	case TemplateXLSX:
		body, err := s.xlsx.Render(data)
		if err != nil {
			return nil, "", "", appErrors.Internal(err, "failed to render template")
		}
		return body, "student-import-template.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", nil
	}
	return nil, "", "", appErrors.WithField(appErrors.Clone(appErrors.ErrValidation, "unsupported template format"), "format", "format must be one of [csv xlsx]")
}

type parsedRow struct {
	number int
	row    dto.ImportRow
}

// parse streams CSV records into rows, mapping headers through headerAliases.
// Row numbers count the header as row 1 and include skipped blank rows.
func (s *ImportService) parse(r io.Reader) ([]parsedRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, appErrors.WithField(appErrors.Clone(appErrors.ErrValidation, "file is empty"), "file", "file is empty")
		}
		return nil, appErrors.WithField(appErrors.Clone(appErrors.ErrValidation, "file is not valid CSV"), "file", err.Error())
	}
	columns := make([]string, len(header))
	for i, cell := range header {
		if i == 0 {
			cell = strings.TrimPrefix(cell, "\ufeff")
		}
		columns[i] = headerAliases[normalizeHeader(cell)]
	}
	if !hasColumns(columns, "name", "email", "phone") {
		return nil, appErrors.WithField(appErrors.Clone(appErrors.ErrValidation, "file must contain name, email and phone columns"), "file", "missing required columns")
	}

	rows := make([]parsedRow, 0)
	number := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, appErrors.WithField(appErrors.Clone(appErrors.ErrValidation, "file is not valid CSV"), "file", err.Error())
		}
		number++
		if blank(record) {
			continue
		}
		if len(rows) == s.cfg.MaxRows {
			msg := fmt.Sprintf("file exceeds the limit of %d rows", s.cfg.MaxRows)
			return nil, appErrors.WithField(appErrors.Clone(appErrors.ErrValidation, msg), "file", msg)
		}
		rows = append(rows, parsedRow{number: number, row: rowFromRecord(columns, record)})
	}
	return rows, nil
}

func rowFromRecord(columns []string, record []string) dto.ImportRow {
	var row dto.ImportRow
	for i, value := range record {
		if i >= len(columns) {
			break
		}
		value = strings.TrimSpace(value)
		switch columns[i] {
		case "name":
			row.Name = value
		case "email":
			row.Email = value
		case "phone":
			row.Phone = value
		case "nationalId":
			row.NationalID = value
		case "address":
			row.Address = value
		case "dateOfBirth":
			row.DateOfBirth = value
		case "courseName":
			row.CourseName = value
		case "coursePrice":
			row.CoursePrice = value
		case "batch":
			row.Batch = value
		case "notes":
			row.Notes = value
		}
	}
	return row
}

func normalizeHeader(cell string) string {
	replacer := strings.NewReplacer(" ", "", "_", "", "-", "", ".", "")
	return replacer.Replace(strings.ToLower(strings.TrimSpace(cell)))
}

func hasColumns(columns []string, required ...string) bool {
	present := make(map[string]bool, len(columns))
	for _, column := range columns {
		present[column] = true
	}
	for _, column := range required {
		if !present[column] {
			return false
		}
	}
	return true
}

func blank(record []string) bool {
	for _, value := range record {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}

// failureMessage renders a row failure for the import report.
func failureMessage(err error) string {
	return appErrors.TranslateDB(err, "record not found", "failed to import row").Message
}
