package dto

import "github.com/shopspring/decimal"

// ImportRow is one student row of an import file.
type ImportRow struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Email       string `json:"email" validate:"required,email,max=255"`
	Phone       string `json:"phone" validate:"required,min=7,max=20,phone"`
	NationalID  string `json:"nationalId" validate:"omitempty,max=30"`
	Address     string `json:"address" validate:"max=500"`
	DateOfBirth string `json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	CourseName  string `json:"courseName" validate:"max=100"`
	CoursePrice string `json:"coursePrice" validate:"omitempty,decimal_gte=0"`
	Batch       string `json:"batch" validate:"max=50"`
	Notes       string `json:"notes" validate:"max=2000"`
}

// ImportRowError lists why a row of the file was rejected. Row numbers count
// the header as row 1.
type ImportRowError struct {
	Row    int       `json:"row"`
	Data   ImportRow `json:"data"`
	Errors []string  `json:"errors"`
}

// ImportPreview summarises a parsed file without persisting anything.
type ImportPreview struct {
	TotalRows int              `json:"totalRows"`
	ValidRows int              `json:"validRows"`
	ErrorRows int              `json:"errorRows"`
	ValidData []ImportRow      `json:"validData"`
	Errors    []ImportRowError `json:"errors"`
	Sample    []ImportRow      `json:"sample"`
}

// ImportRequest persists previously previewed rows.
type ImportRequest struct {
	Rows               []ImportRow     `json:"rows"`
	AutoCreateCourses  bool            `json:"autoCreateCourses"`
	DefaultCoursePrice decimal.Decimal `json:"defaultCoursePrice"`
}

// ImportFailure reports one row that could not be imported. Row is the
// 1-based position in ImportRequest.Rows, not a line of the previewed file,
// since previews drop rejected lines before rows are submitted.
type ImportFailure struct {
	Row     int    `json:"row"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// ImportResult summarises an import batch.
type ImportResult struct {
	Imported       int             `json:"imported"`
	Failed         int             `json:"failed"`
	CoursesCreated int             `json:"coursesCreated"`
	Errors         []ImportFailure `json:"errors"`
}
