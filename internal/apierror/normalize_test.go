package apierror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFieldMessage(t *testing.T) {
	err := FromResponse("register", http.StatusBadRequest, []byte(`{"first_name": ["This field is required."]}`))

	assert.Equal(t, "First Name: This field is required.", Normalize(err))
	assert.Equal(t, KindValidation, Classify(err))
}

func TestNormalizeDetailWinsOverStatus(t *testing.T) {
	err := FromResponse("login", http.StatusBadRequest, []byte(`{"detail": "Custom message"}`))

	assert.Equal(t, "Custom message", Normalize(err))
}

func TestNormalizePrecedence(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{
			name:   "detail beats email and fields",
			status: http.StatusBadRequest,
			body:   `{"password": ["Too short."], "email": ["Taken."], "detail": "Nope"}`,
			want:   "Nope",
		},
		{
			name:   "email beats other fields",
			status: http.StatusBadRequest,
			body:   `{"password": ["Too short."], "email": ["Enter a valid email address.", "Taken."]}`,
			want:   "Email error: Enter a valid email address., Taken.",
		},
		{
			name:   "field map keeps payload order",
			status: http.StatusBadRequest,
			body:   `{"last_name": "Required.", "high_school_gpa": ["Too big.", "Not a number."]}`,
			want:   "Last Name: Required.; High School Gpa: Too big., Not a number.",
		},
		{
			name:   "objects are not field messages",
			status: http.StatusBadRequest,
			body:   `{"nested": {"a": 1}}`,
			want:   MsgInvalidData,
		},
		{
			name:   "non json body",
			status: http.StatusBadRequest,
			body:   `<html>bad</html>`,
			want:   MsgInvalidData,
		},
		{
			name:   "unauthorized ignores field map",
			status: http.StatusUnauthorized,
			body:   `{"code": "token_not_valid"}`,
			want:   MsgUnauthorized,
		},
		{
			name:   "unauthorized detail",
			status: http.StatusUnauthorized,
			body:   `{"detail": "Given token not valid for any token type"}`,
			want:   "Given token not valid for any token type",
		},
		{
			name:   "forbidden",
			status: http.StatusForbidden,
			body:   ``,
			want:   MsgForbidden,
		},
		{
			name:   "not found",
			status: http.StatusNotFound,
			body:   `{}`,
			want:   MsgNotFound,
		},
		{
			name:   "bad gateway",
			status: http.StatusBadGateway,
			body:   `{"title": ["ignored"]}`,
			want:   MsgServer,
		},
		{
			name:   "top-level message list",
			status: http.StatusBadRequest,
			body:   `["Only one answer allowed.", "Pick a major."]`,
			want:   "Only one answer allowed., Pick a major.",
		},
		{
			name:   "message list on auth failure",
			status: http.StatusUnauthorized,
			body:   `["Token expired."]`,
			want:   MsgUnauthorized,
		},
		{
			name:   "other status",
			status: http.StatusConflict,
			body:   `[]`,
			want:   "Error: 409 - Something went wrong. Please try again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromResponse("call", tt.status, []byte(tt.body))
			assert.Equal(t, tt.want, Normalize(err))
		})
	}
}

func TestNormalizeNetworkAndLocalErrors(t *testing.T) {
	netErr := Network("list announcements", context.DeadlineExceeded)
	assert.Equal(t, MsgNetwork, Normalize(netErr))
	assert.Equal(t, KindNetwork, Classify(netErr))
	assert.True(t, errors.Is(netErr, context.DeadlineExceeded))

	wrapped := fmt.Errorf("failed to fetch profile: %w", ErrUnauthenticated)
	assert.Equal(t, "You are not logged in. Please log in to continue.", Normalize(wrapped))
	assert.Equal(t, KindAuth, Classify(wrapped))

	pre := Precondition("Please select a role")
	assert.Equal(t, "Please select a role", Normalize(pre))
	assert.Equal(t, KindValidation, Classify(pre))

	assert.Equal(t, "boom", Normalize(errors.New("boom")))
	assert.Equal(t, KindUnknown, Classify(errors.New("boom")))
	assert.Empty(t, Normalize(nil))
}

func TestClassifyStatuses(t *testing.T) {
	assert.Equal(t, KindAuth, Classify(FromResponse("x", http.StatusForbidden, nil)))
	assert.Equal(t, KindNotFound, Classify(FromResponse("x", http.StatusNotFound, nil)))
	assert.Equal(t, KindServer, Classify(FromResponse("x", http.StatusServiceUnavailable, nil)))
	assert.Equal(t, KindValidation, Classify(FromResponse("x", http.StatusConflict, []byte(`{"email": "exists"}`))))
	assert.Equal(t, KindUnknown, Classify(FromResponse("x", http.StatusConflict, nil)))

	err := fmt.Errorf("wrapped: %w", FromResponse("delete announcement", http.StatusNotFound, nil))
	assert.True(t, IsNotFound(err))
	require.Equal(t, http.StatusNotFound, StatusOf(err))
}

func TestHumanizeField(t *testing.T) {
	assert.Equal(t, "First Name", HumanizeField("first_name"))
	assert.Equal(t, "Non Field Errors", HumanizeField("non_field_errors"))
	assert.Equal(t, "Email", HumanizeField("email"))

	got := HumanizeField("école_name")
	assert.Equal(t, "École Name", got)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "Ünits Öffered", HumanizeField("ünits_öffered"))
}

func TestClassifyMessageList(t *testing.T) {
	err := FromResponse("submit", http.StatusConflict, []byte(`["Already submitted."]`))

	assert.Equal(t, KindValidation, Classify(err))
	assert.Equal(t, "Already submitted.", Normalize(err))
}
