package dto

import "github.com/noah-isme/course-admin-api/internal/models"

// RegistrationResult is returned by the composite student creation endpoint.
type RegistrationResult struct {
	Student    *models.Student       `json:"student"`
	Enrollment *models.Enrollment    `json:"enrollment,omitempty"`
	Payment    *models.PaymentResult `json:"payment,omitempty"`
}
