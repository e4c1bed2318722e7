package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Course Admin API",
        "description": "Students, courses, enrollments and payments of a training business",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Students", "description": "Student registry and documents"},
        {"name": "Courses", "description": "Course catalog"},
        {"name": "Enrollments", "description": "Student to course bindings with balances"},
        {"name": "Payments", "description": "Payments against enrollments"},
        {"name": "Dashboard", "description": "Cached aggregate statistics"},
        {"name": "Upload", "description": "Bulk student import"},
        {"name": "Documents", "description": "Signed document downloads"}
    ],
    "paths": {
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "courseId", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string", "enum": ["name", "email", "created_at"]},
                    {"name": "order", "in": "query", "type": "string", "enum": ["asc", "desc"]}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Students"],
                "summary": "Create student",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StudentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation or uniqueness failure", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/full-create": {
            "post": {
                "tags": ["Students"],
                "summary": "Create a student with enrollment, first payment and documents",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "student", "in": "formData", "type": "string", "required": true},
                    {"name": "enrollment", "in": "formData", "type": "string"},
                    {"name": "payment", "in": "formData", "type": "string"},
                    {"name": "documents", "in": "formData", "type": "file"}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get student with enrollments, payments and balance summary",
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            },
            "put": {
                "tags": ["Students"],
                "summary": "Update student",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StudentRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "delete": {
                "tags": ["Students"],
                "summary": "Delete a student without enrollments or payments",
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {"204": {"description": "Deleted"}, "400": {"description": "Has dependents"}}
            }
        },
        "/students/{id}/documents": {
            "post": {
                "tags": ["Students"],
                "summary": "Upload documents",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "documents", "in": "formData", "type": "file", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/students/{id}/documents/{index}": {
            "delete": {
                "tags": ["Students"],
                "summary": "Remove a document",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "index", "in": "path", "type": "integer", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/students/{id}/documents/{index}/link": {
            "get": {
                "tags": ["Students"],
                "summary": "Sign a temporary download link",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "index", "in": "path", "type": "integer", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/courses": {
            "get": {
                "tags": ["Courses"],
                "summary": "List courses",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "isActive", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Courses"],
                "summary": "Create course",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CourseRequest"}}
                ],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/courses/{id}": {
            "get": {"tags": ["Courses"], "summary": "Get course", "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}}},
            "put": {
                "tags": ["Courses"],
                "summary": "Update course",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CourseRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "delete": {"tags": ["Courses"], "summary": "Delete a course without enrollments", "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}], "responses": {"204": {"description": "Deleted"}}}
        },
        "/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List enrollments with balances",
                "parameters": [
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "courseId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["ACTIVE", "COMPLETED", "CANCELLED", "SUSPENDED"]},
                    {"name": "batch", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Enrollments"],
                "summary": "Enroll a student",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EnrollmentRequest"}}
                ],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/enrollments/{id}": {
            "get": {"tags": ["Enrollments"], "summary": "Get enrollment", "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}}},
            "put": {"tags": ["Enrollments"], "summary": "Update enrollment", "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["Enrollments"], "summary": "Delete an enrollment without payments", "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}], "responses": {"204": {"description": "Deleted"}}}
        },
        "/enrollments/{id}/status": {
            "patch": {
                "tags": ["Enrollments"],
                "summary": "Change enrollment status",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"type": "object", "properties": {"status": {"type": "string"}}}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/payments": {
            "get": {
                "tags": ["Payments"],
                "summary": "List payments",
                "parameters": [
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "enrollmentId", "in": "query", "type": "string"},
                    {"name": "method", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "type": "string", "format": "date"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Payments"],
                "summary": "Record a payment",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PaymentRequest"}}
                ],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Exceeds remaining balance"}}
            }
        },
        "/payments/{id}": {
            "get": {"tags": ["Payments"], "summary": "Get payment", "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}}},
            "put": {"tags": ["Payments"], "summary": "Update payment", "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["Payments"], "summary": "Delete payment", "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/payments/{id}/receipt": {
            "get": {"tags": ["Payments"], "summary": "Download PDF receipt", "produces": ["application/pdf"], "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}], "responses": {"200": {"description": "PDF"}}}
        },
        "/payments/student/{id}/summary": {
            "get": {"tags": ["Payments"], "summary": "Payment summary of a student", "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/dashboard/overview": {"get": {"tags": ["Dashboard"], "summary": "Headline counters and revenue", "responses": {"200": {"description": "OK"}}}},
        "/dashboard/enrollments": {"get": {"tags": ["Dashboard"], "summary": "Enrollment distribution", "responses": {"200": {"description": "OK"}}}},
        "/dashboard/payments": {"get": {"tags": ["Dashboard"], "summary": "Revenue and outstanding balances", "responses": {"200": {"description": "OK"}}}},
        "/dashboard/students": {"get": {"tags": ["Dashboard"], "summary": "Student registration statistics", "responses": {"200": {"description": "OK"}}}},
        "/upload/csv-preview": {
            "post": {
                "tags": ["Upload"],
                "summary": "Parse and validate a CSV of students",
                "consumes": ["multipart/form-data"],
                "parameters": [{"name": "file", "in": "formData", "type": "file", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/upload/import-students": {
            "post": {
                "tags": ["Upload"],
                "summary": "Import previewed rows",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"type": "object"}}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/upload/template": {
            "get": {
                "tags": ["Upload"],
                "summary": "Download the import template",
                "parameters": [{"name": "format", "in": "query", "type": "string", "enum": ["csv", "xlsx"]}],
                "responses": {"200": {"description": "File"}}
            }
        },
        "/documents/download": {
            "get": {
                "tags": ["Documents"],
                "summary": "Download a document through a signed link",
                "parameters": [{"name": "token", "in": "query", "type": "string", "required": true}],
                "responses": {"200": {"description": "File"}, "403": {"description": "Invalid or expired link"}}
            }
        }
    },
    "definitions": {
        "StudentRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "nationalId": {"type": "string"},
                "address": {"type": "string"},
                "dateOfBirth": {"type": "string", "format": "date"},
                "notes": {"type": "string"}
            },
            "required": ["name", "email", "phone"]
        },
        "CourseRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "price": {"type": "string"},
                "duration": {"type": "string"},
                "isActive": {"type": "boolean"}
            },
            "required": ["name", "price"]
        },
        "EnrollmentRequest": {
            "type": "object",
            "properties": {
                "studentId": {"type": "string"},
                "courseId": {"type": "string"},
                "status": {"type": "string"},
                "batch": {"type": "string"},
                "startDate": {"type": "string", "format": "date"},
                "endDate": {"type": "string", "format": "date"},
                "notes": {"type": "string"}
            },
            "required": ["studentId", "courseId"]
        },
        "PaymentRequest": {
            "type": "object",
            "properties": {
                "enrollmentId": {"type": "string"},
                "studentId": {"type": "string"},
                "amount": {"type": "string"},
                "method": {"type": "string"},
                "paymentDate": {"type": "string", "format": "date"},
                "notes": {"type": "string"}
            },
            "required": ["enrollmentId", "amount", "method"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "limit": {"type": "integer"},
                "total": {"type": "integer"},
                "pages": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "fields": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
