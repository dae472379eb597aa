package service

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/RubachokBoss/major-recommender/internal/apierror"
	"github.com/RubachokBoss/major-recommender/internal/models"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	codePattern  = regexp.MustCompile(`^[0-9]{6}$`)
)

const minPasswordLength = 8

// registerFieldOrder fixes the order of messages in the combined error.
var registerFieldOrder = []string{
	"first_name", "last_name", "email", "gender", "password", "confirm_password",
	"gat_score", "saath_score", "high_school_gpa",
}

func validateLogin(email, password string, role models.Role) error {
	if !role.Valid() {
		return apierror.Precondition("No role selected")
	}
	fields := map[string]string{}
	if strings.TrimSpace(email) == "" {
		fields["email"] = "Email is required"
	}
	if password == "" {
		fields["password"] = "Password is required"
	}
	return fieldError(fields, []string{"email", "password"})
}

func validateRegistration(req models.RegisterRequest) error {
	fields := map[string]string{}

	if strings.TrimSpace(req.FirstName) == "" {
		fields["first_name"] = "First name is required"
	}
	if strings.TrimSpace(req.LastName) == "" {
		fields["last_name"] = "Last name is required"
	}

	switch {
	case strings.TrimSpace(req.Email) == "":
		fields["email"] = "Email is required"
	case !emailPattern.MatchString(req.Email):
		fields["email"] = "Please enter a valid email address"
	}

	switch gender := strings.ToLower(req.Gender); {
	case gender == "":
		fields["gender"] = "Gender is required"
	case gender != "male" && gender != "female":
		fields["gender"] = "Gender must be either Male or Female"
	}

	if msg := passwordProblem(req.Password); msg != "" {
		fields["password"] = msg
	}

	switch {
	case req.ConfirmPassword == "":
		fields["confirm_password"] = "Please confirm your password"
	case req.Password != "" && req.Password != req.ConfirmPassword:
		fields["confirm_password"] = "Passwords do not match"
	}

	if !scoreInRange(req.GATScore) {
		fields["gat_score"] = "GAT score must be between 0 and 100"
	}
	if !scoreInRange(req.SAATHScore) {
		fields["saath_score"] = "SAATH score must be between 0 and 100"
	}
	if !scoreInRange(req.HighSchoolGPA) {
		fields["high_school_gpa"] = "GPA must be between 0 and 100"
	}

	return fieldError(fields, registerFieldOrder)
}

func validateProfileUpdate(update models.ProfileUpdate) error {
	fields := map[string]string{}
	if update.Gender != nil {
		if g := strings.ToLower(*update.Gender); g != "male" && g != "female" {
			fields["gender"] = "Gender must be either Male or Female"
		}
	}
	if !scoreInRange(update.GATScore) {
		fields["gat_score"] = "GAT score must be between 0 and 100"
	}
	if !scoreInRange(update.SAATHScore) {
		fields["saath_score"] = "SAATH score must be between 0 and 100"
	}
	if !scoreInRange(update.HighSchoolGPA) {
		fields["high_school_gpa"] = "GPA must be between 0 and 100"
	}
	return fieldError(fields, registerFieldOrder)
}

func validateVerificationCode(email, code string) error {
	if strings.TrimSpace(email) == "" {
		return &apierror.PreconditionError{
			Message: "Email is required",
			Fields:  map[string]string{"email": "Email is required"},
		}
	}
	if !codePattern.MatchString(code) {
		return &apierror.PreconditionError{
			Message: "Please enter a valid 6-digit verification code",
			Fields:  map[string]string{"code": "Please enter a valid 6-digit verification code"},
		}
	}
	return nil
}

func passwordProblem(password string) string {
	if password == "" {
		return "Password is required"
	}
	if len([]rune(password)) < minPasswordLength {
		return "Password must be at least 8 characters long"
	}
	var hasDigit, hasLetter bool
	for _, r := range password {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r < unicode.MaxASCII && unicode.IsLetter(r):
			hasLetter = true
		}
	}
	if !hasDigit {
		return "Password must contain at least one number"
	}
	if !hasLetter {
		return "Password must contain at least one letter"
	}
	return ""
}

func scoreInRange(s *models.Score) bool {
	return s == nil || (*s >= 0 && *s <= 100)
}

func fieldError(fields map[string]string, order []string) error {
	if len(fields) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(fields))
	for _, name := range order {
		if msg, ok := fields[name]; ok {
			msgs = append(msgs, msg)
		}
	}
	return &apierror.PreconditionError{Message: strings.Join(msgs, "; "), Fields: fields}
}
