package models

// Request and response bodies of the platform REST API.

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role,omitempty"`
}

type LoginResponse struct {
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	User    *UserProfile `json:"user"`
}

type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"-"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Gender          string `json:"gender"`
	DateOfBirth     string `json:"date_of_birth,omitempty"`
	Role            Role   `json:"role"`
	GATScore        *Score `json:"gat_score,omitempty"`
	SAATHScore      *Score `json:"saath_score,omitempty"`
	HighSchoolGPA   *Score `json:"high_school_gpa,omitempty"`
}

type RegisterResponse struct {
	Access              string       `json:"access"`
	Refresh             string       `json:"refresh"`
	Message             string       `json:"message"`
	User                *UserProfile `json:"user,omitempty"`
	DevVerificationCode string       `json:"dev_verification_code,omitempty"`
}

type VerifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

type DetailResponse struct {
	Detail string `json:"detail"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

type RefreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// ProfileUpdate carries the editable profile fields. Nil fields are omitted
// from the request and skipped by local merges.
type ProfileUpdate struct {
	FirstName     *string `json:"first_name,omitempty"`
	LastName      *string `json:"last_name,omitempty"`
	Gender        *string `json:"gender,omitempty"`
	DateOfBirth   *string `json:"date_of_birth,omitempty"`
	GATScore      *Score  `json:"gat_score,omitempty"`
	SAATHScore    *Score  `json:"saath_score,omitempty"`
	HighSchoolGPA *Score  `json:"high_school_gpa,omitempty"`
}

func (p ProfileUpdate) Apply(u *UserProfile) {
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Gender != nil {
		u.Gender = *p.Gender
	}
	if p.DateOfBirth != nil {
		u.DateOfBirth = *p.DateOfBirth
	}
	if p.GATScore != nil {
		v := *p.GATScore
		u.GATScore = &v
	}
	if p.SAATHScore != nil {
		v := *p.SAATHScore
		u.SAATHScore = &v
	}
	if p.HighSchoolGPA != nil {
		v := *p.HighSchoolGPA
		u.HighSchoolGPA = &v
	}
}
