package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserProfileDecodesDecimalStrings(t *testing.T) {
	body := `{"id":7,"email":"a@b.co","first_name":"Ann","last_name":"Lee","role":"","gat_score":"85.50","saath_score":72,"high_school_gpa":null}`

	var u UserProfile
	require.NoError(t, json.Unmarshal([]byte(body), &u))

	assert.Equal(t, RoleStudent, u.Role)
	require.NotNil(t, u.GATScore)
	assert.InDelta(t, 85.5, u.GATScore.Float64(), 1e-9)
	require.NotNil(t, u.SAATHScore)
	assert.InDelta(t, 72.0, u.SAATHScore.Float64(), 1e-9)
	assert.Nil(t, u.HighSchoolGPA)

	out, err := json.Marshal(u)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"gat_score":85.5`)
}

func TestScoreRejectsGarbage(t *testing.T) {
	var s Score
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &s))
}

func TestRoleUnknownFallsBackToStudent(t *testing.T) {
	var r Role
	require.NoError(t, json.Unmarshal([]byte(`"superuser"`), &r))
	assert.Equal(t, RoleStudent, r)

	require.NoError(t, json.Unmarshal([]byte(`"Expert"`), &r))
	assert.Equal(t, RoleExpert, r)
	assert.False(t, Role("root").Valid())
}

func TestAnnouncementIDAcceptsNumbersAndStrings(t *testing.T) {
	var list []Announcement
	body := `[{"id":12,"title":"a","content":"","category":"news","created_at":"2024-01-02T03:04:05Z"},
	          {"id":"1717171717171","title":"b","content":"","category":"news","created_at":"2024-01-02T03:04:05Z"}]`
	require.NoError(t, json.Unmarshal([]byte(body), &list))

	require.Len(t, list, 2)
	assert.Equal(t, AnnouncementID("12"), list[0].ID)
	assert.Equal(t, AnnouncementID("1717171717171"), list[1].ID)
}

func TestSessionConsistency(t *testing.T) {
	assert.True(t, DefaultSession().Consistent())

	s := Session{IsAuthenticated: true, Role: RoleAdmin}
	assert.False(t, s.Consistent())

	s.User = &UserProfile{Role: RoleStudent}
	assert.False(t, s.Consistent())

	s.User.Role = RoleAdmin
	assert.True(t, s.Consistent())
}

func TestProfileUpdateApply(t *testing.T) {
	first := "Maria"
	gpa := Score(91)
	u := UserProfile{FirstName: "Mary", LastName: "Smith"}

	ProfileUpdate{FirstName: &first, HighSchoolGPA: &gpa}.Apply(&u)

	assert.Equal(t, "Maria", u.FirstName)
	assert.Equal(t, "Smith", u.LastName)
	require.NotNil(t, u.HighSchoolGPA)
	assert.InDelta(t, 91.0, u.HighSchoolGPA.Float64(), 1e-9)
}
