package handler

import "github.com/gin-gonic/gin"

// Handlers groups every HTTP handler mounted under the API prefix.
type Handlers struct {
	Students      *StudentHandler
	Courses       *CourseHandler
	Enrollments   *EnrollmentHandler
	Payments      *PaymentHandler
	Dashboard     *DashboardHandler
	Uploads       *UploadHandler
	Registrations *RegistrationHandler
	Documents     *DocumentHandler
}

// DocumentDownloadPath is the route, relative to the API prefix, that serves
// signed document links.
const DocumentDownloadPath = "/documents/download"

// RegisterRoutes mounts the resource routes on api.
func RegisterRoutes(api gin.IRouter, h Handlers) {
	registerStudentRoutes(api.Group("/students"), h.Students, h.Registrations)
	registerCourseRoutes(api.Group("/courses"), h.Courses)
	registerEnrollmentRoutes(api.Group("/enrollments"), h.Enrollments)
	registerPaymentRoutes(api.Group("/payments"), h.Payments)
	registerDashboardRoutes(api.Group("/dashboard"), h.Dashboard)
	registerUploadRoutes(api.Group("/upload"), h.Uploads)

	if h.Documents != nil {
		api.GET(DocumentDownloadPath, h.Documents.Download)
	}
}

func registerStudentRoutes(g *gin.RouterGroup, students *StudentHandler, registrations *RegistrationHandler) {
	if registrations != nil {
		g.POST("/full-create", registrations.Create)
	}
	if students == nil {
		return
	}
	g.GET("", students.List)
	g.POST("", students.Create)
	g.GET("/:id", students.Get)
	g.PUT("/:id", students.Update)
	g.DELETE("/:id", students.Delete)
	g.POST("/:id/documents", students.AddDocuments)
	g.DELETE("/:id/documents/:index", students.RemoveDocument)
	g.GET("/:id/documents/:index/link", students.DocumentLink)
}

func registerCourseRoutes(g *gin.RouterGroup, courses *CourseHandler) {
	if courses == nil {
		return
	}
	g.GET("", courses.List)
	g.POST("", courses.Create)
	g.GET("/:id", courses.Get)
	g.PUT("/:id", courses.Update)
	g.DELETE("/:id", courses.Delete)
}

func registerEnrollmentRoutes(g *gin.RouterGroup, enrollments *EnrollmentHandler) {
	if enrollments == nil {
		return
	}
	g.GET("", enrollments.List)
	g.POST("", enrollments.Create)
	g.GET("/:id", enrollments.Get)
	g.PUT("/:id", enrollments.Update)
	g.PATCH("/:id/status", enrollments.UpdateStatus)
	g.DELETE("/:id", enrollments.Delete)
}

func registerPaymentRoutes(g *gin.RouterGroup, payments *PaymentHandler) {
	if payments == nil {
		return
	}
	g.GET("", payments.List)
	g.POST("", payments.Create)
	g.GET("/student/:id/summary", payments.StudentSummary)
	g.GET("/:id", payments.Get)
	g.GET("/:id/receipt", payments.Receipt)
	g.PUT("/:id", payments.Update)
	g.DELETE("/:id", payments.Delete)
}

func registerDashboardRoutes(g *gin.RouterGroup, dashboard *DashboardHandler) {
	if dashboard == nil {
		return
	}
	g.GET("/overview", dashboard.Overview)
	g.GET("/enrollments", dashboard.Enrollments)
	g.GET("/payments", dashboard.Payments)
	g.GET("/students", dashboard.Students)
}

func registerUploadRoutes(g *gin.RouterGroup, uploads *UploadHandler) {
	if uploads == nil {
		return
	}
	g.POST("/csv-preview", uploads.Preview)
	g.POST("/import-students", uploads.Import)
	g.GET("/template", uploads.Template)
}
