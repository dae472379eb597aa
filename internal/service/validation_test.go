package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RubachokBoss/major-recommender/internal/apierror"
	"github.com/RubachokBoss/major-recommender/internal/models"
)

func TestValidateRegistration(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *models.RegisterRequest)
		field  string
		want   string
	}{
		{"valid", func(*models.RegisterRequest) {}, "", ""},
		{"bad email", func(r *models.RegisterRequest) { r.Email = "nora@example" }, "email", "Please enter a valid email address"},
		{"gender", func(r *models.RegisterRequest) { r.Gender = "other" }, "gender", "Gender must be either Male or Female"},
		{"short password", func(r *models.RegisterRequest) { r.Password, r.ConfirmPassword = "a1", "a1" }, "password", "Password must be at least 8 characters long"},
		{"no digit", func(r *models.RegisterRequest) { r.Password, r.ConfirmPassword = "abcdefgh", "abcdefgh" }, "password", "Password must contain at least one number"},
		{"no letter", func(r *models.RegisterRequest) { r.Password, r.ConfirmPassword = "12345678", "12345678" }, "password", "Password must contain at least one letter"},
		{"mismatch", func(r *models.RegisterRequest) { r.ConfirmPassword = "other1234" }, "confirm_password", "Passwords do not match"},
		{"gpa range", func(r *models.RegisterRequest) { r.HighSchoolGPA = scorePtr(101) }, "high_school_gpa", "GPA must be between 0 and 100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRegistration("nora@example.com")
			req.Gender = "female"
			tt.mutate(&req)

			err := validateRegistration(req)
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			var pre *apierror.PreconditionError
			require.True(t, errors.As(err, &pre))
			assert.Equal(t, tt.want, pre.Fields[tt.field])
			assert.Equal(t, tt.want, pre.Message)
		})
	}
}

func TestValidateRegistrationJoinsInFormOrder(t *testing.T) {
	err := validateRegistration(models.RegisterRequest{})

	var pre *apierror.PreconditionError
	require.ErrorAs(t, err, &pre)
	assert.Equal(t,
		"First name is required; Last name is required; Email is required; Gender is required; Password is required; Please confirm your password",
		pre.Message,
	)
	assert.Equal(t, pre.Message, apierror.Normalize(err))
}
