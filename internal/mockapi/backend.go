package mockapi

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/RubachokBoss/major-recommender/internal/models"
)

const (
	seedPassword = "password123"
	codeTTL      = 15 * time.Minute
)

var (
	errNotFound  = errors.New("not found")
	errForbidden = errors.New("forbidden")
)

type fieldMessage struct {
	Field    string
	Messages []string
}

// FieldErrors is a validation failure rendered as an ordered
// {"field": ["message"]} object.
type FieldErrors []fieldMessage

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, f := range e {
		parts = append(parts, f.Field+": "+strings.Join(f.Messages, ", "))
	}
	return strings.Join(parts, "; ")
}

func (e FieldErrors) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range e {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Field)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.Messages)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (e *FieldErrors) add(field, message string) {
	*e = append(*e, fieldMessage{Field: field, Messages: []string{message}})
}

type userRecord struct {
	profile      models.UserProfile
	passwordHash []byte
}

type verificationCode struct {
	code      string
	expiresAt time.Time
}

type announcementRecord struct {
	announcement models.Announcement
	authorID     int64
}

// Backend is the in-memory state behind the mock API.
type Backend struct {
	mu            sync.Mutex
	users         map[int64]*userRecord
	byEmail       map[string]int64
	codes         map[string]verificationCode
	announcements map[models.AnnouncementID]*announcementRecord
	results       map[int64][]models.QuestionnaireResult
	nextUserID    int64
	nextPostID    int64
	nextResultID  int64
	now           func() time.Time
}

func NewBackend() *Backend {
	return &Backend{
		users:         make(map[int64]*userRecord),
		byEmail:       make(map[string]int64),
		codes:         make(map[string]verificationCode),
		announcements: make(map[models.AnnouncementID]*announcementRecord),
		results:       make(map[int64][]models.QuestionnaireResult),
		nextUserID:    1,
		nextPostID:    1,
		nextResultID:  1,
		now:           time.Now,
	}
}

// Seed creates one verified user per role, all with password "password123",
// plus a sample announcement and a result for the student.
func (b *Backend) Seed() error {
	score := func(v float64) *models.Score {
		s := models.Score(v)
		return &s
	}
	seeds := []models.UserProfile{
		{Email: "admin@example.com", FirstName: "Admin", LastName: "User", Role: models.RoleAdmin, Gender: "male", DateOfBirth: "1985-05-15"},
		{Email: "expert@example.com", FirstName: "Expert", LastName: "User", Role: models.RoleExpert, Gender: "male", DateOfBirth: "1980-03-10"},
		{
			Email: "student@example.com", FirstName: "Student", LastName: "User", Role: models.RoleStudent,
			Gender: "female", DateOfBirth: "2000-08-20",
			GATScore: score(85.5), SAATHScore: score(92.3), HighSchoolGPA: score(88.7),
		},
	}

	for _, p := range seeds {
		p.IsVerified = true
		user, err := b.createUser(p, seedPassword)
		if err != nil {
			return fmt.Errorf("failed to seed %s: %w", p.Email, err)
		}
		if user.Role == models.RoleExpert {
			title, content, category := "Welcome", "<p>Orientation starts on <b>Monday</b>.</p>", "General"
			if _, err := b.CreateAnnouncement(user.ID, models.AnnouncementInput{Title: &title, Content: &content, Category: &category}); err != nil {
				return fmt.Errorf("failed to seed announcement: %w", err)
			}
		}
		if user.Role == models.RoleStudent {
			b.AddResult(user.ID, models.Major{ID: 1, Name: "Computer Science", Description: "Software, algorithms and systems."}, 87.5, []models.ResultResponse{
				{ID: 1, Question: 1, QuestionText: "Do you enjoy solving puzzles?", Choice: 1, ChoiceText: "Yes"},
				{ID: 2, Question: 2, QuestionText: "Which subject do you prefer?", Choice: 5, ChoiceText: "Mathematics"},
			})
		}
	}
	return nil
}

func (b *Backend) Register(req models.RegisterRequest) (models.UserProfile, error) {
	var errs FieldErrors
	email := strings.ToLower(strings.TrimSpace(req.Email))

	b.mu.Lock()
	_, exists := b.byEmail[email]
	b.mu.Unlock()

	switch {
	case email == "":
		errs.add("email", "This field is required.")
	case exists:
		errs.add("email", "user with this email already exists.")
	}
	if len(req.Password) < 8 {
		errs.add("password", "This password is too short. It must contain at least 8 characters.")
	}
	if strings.TrimSpace(req.FirstName) == "" {
		errs.add("first_name", "This field is required.")
	}
	if strings.TrimSpace(req.LastName) == "" {
		errs.add("last_name", "This field is required.")
	}
	if strings.TrimSpace(req.Gender) == "" {
		errs.add("gender", "Gender is required.")
	}
	if req.Role != "" && req.Role != models.RoleStudent {
		errs.add("role", "Only students can register through this endpoint.")
	}
	if len(errs) > 0 {
		return models.UserProfile{}, errs
	}

	return b.createUser(models.UserProfile{
		Email:         email,
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		Role:          models.RoleStudent,
		Gender:        strings.ToLower(req.Gender),
		DateOfBirth:   req.DateOfBirth,
		GATScore:      req.GATScore,
		SAATHScore:    req.SAATHScore,
		HighSchoolGPA: req.HighSchoolGPA,
	}, req.Password)
}

func (b *Backend) createUser(p models.UserProfile, password string) (models.UserProfile, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.UserProfile{}, fmt.Errorf("failed to hash password: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	p.Email = strings.ToLower(p.Email)
	if _, ok := b.byEmail[p.Email]; ok {
		return models.UserProfile{}, FieldErrors{{Field: "email", Messages: []string{"user with this email already exists."}}}
	}
	p.ID = b.nextUserID
	b.nextUserID++
	b.users[p.ID] = &userRecord{profile: p, passwordHash: hash}
	b.byEmail[p.Email] = p.ID
	return p, nil
}

func (b *Backend) Authenticate(email, password string) (models.UserProfile, error) {
	b.mu.Lock()
	id, ok := b.byEmail[strings.ToLower(strings.TrimSpace(email))]
	var rec userRecord
	if ok {
		rec = *b.users[id]
	}
	b.mu.Unlock()

	if !ok {
		return models.UserProfile{}, FieldErrors{{Field: "email", Messages: []string{"No user found with this email address."}}}
	}
	if err := bcrypt.CompareHashAndPassword(rec.passwordHash, []byte(password)); err != nil {
		return models.UserProfile{}, FieldErrors{{Field: "password", Messages: []string{"Invalid credentials."}}}
	}
	return rec.profile, nil
}

func (b *Backend) User(id int64) (models.UserProfile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.users[id]
	if !ok {
		return models.UserProfile{}, errNotFound
	}
	return rec.profile, nil
}

func (b *Backend) UpdateProfile(id int64, update models.ProfileUpdate) (models.UserProfile, error) {
	var errs FieldErrors
	checkScore := func(field, label string, s *models.Score) {
		if s != nil && (*s < 0 || *s > 100) {
			errs.add(field, label+" must be between 0 and 100")
		}
	}
	checkScore("gat_score", "GAT score", update.GATScore)
	checkScore("saath_score", "SAATH score", update.SAATHScore)
	checkScore("high_school_gpa", "High school GPA", update.HighSchoolGPA)
	if len(errs) > 0 {
		return models.UserProfile{}, errs
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.users[id]
	if !ok {
		return models.UserProfile{}, errNotFound
	}
	update.Apply(&rec.profile)
	return rec.profile, nil
}

// IssueCode replaces any pending code for email with a fresh six-digit one.
func (b *Backend) IssueCode(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.byEmail[email]; !ok {
		return "", FieldErrors{{Field: "email", Messages: []string{"No user found with this email address."}}}
	}

	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())
	b.codes[email] = verificationCode{code: code, expiresAt: b.now().Add(codeTTL)}
	return code, nil
}

func (b *Backend) ConfirmCode(email, code string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.byEmail[email]
	if !ok {
		return FieldErrors{{Field: "email", Messages: []string{"No user found with this email address."}}}
	}
	pending, ok := b.codes[email]
	if !ok || pending.code != code {
		return FieldErrors{{Field: "code", Messages: []string{"Invalid or expired verification code."}}}
	}
	if b.now().After(pending.expiresAt) {
		return FieldErrors{{Field: "code", Messages: []string{"This verification code has expired."}}}
	}
	delete(b.codes, email)
	b.users[id].profile.IsVerified = true
	return nil
}

// Announcements lists pinned records first, then newest first.
func (b *Backend) Announcements() []models.Announcement {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]models.Announcement, 0, len(b.announcements))
	for _, rec := range b.announcements {
		out = append(out, rec.announcement)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsPinned != out[j].IsPinned {
			return out[i].IsPinned
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (b *Backend) CreateAnnouncement(authorID int64, input models.AnnouncementInput) (models.Announcement, error) {
	var errs FieldErrors
	if input.Title == nil || strings.TrimSpace(*input.Title) == "" {
		errs.add("title", "This field is required.")
	}
	if input.Content == nil || strings.TrimSpace(*input.Content) == "" {
		errs.add("content", "This field is required.")
	}
	if len(errs) > 0 {
		return models.Announcement{}, errs
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now().UTC()
	a := models.Announcement{
		ID:        models.AnnouncementID(strconv.FormatInt(b.nextPostID, 10)),
		CreatedAt: now,
		UpdatedAt: &now,
	}
	b.nextPostID++
	input.Apply(&a)
	b.announcements[a.ID] = &announcementRecord{announcement: a, authorID: authorID}
	return a, nil
}

// UpdateAnnouncement lets admins edit any record and experts only their own.
func (b *Backend) UpdateAnnouncement(id models.AnnouncementID, editor models.UserProfile, input models.AnnouncementInput) (models.Announcement, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.announcements[id]
	if !ok {
		return models.Announcement{}, errNotFound
	}
	if !canEdit(editor, rec.authorID) {
		return models.Announcement{}, errForbidden
	}
	input.Apply(&rec.announcement)
	now := b.now().UTC()
	rec.announcement.UpdatedAt = &now
	return rec.announcement, nil
}

func (b *Backend) DeleteAnnouncement(id models.AnnouncementID, editor models.UserProfile) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.announcements[id]
	if !ok {
		return errNotFound
	}
	if !canEdit(editor, rec.authorID) {
		return errForbidden
	}
	delete(b.announcements, id)
	return nil
}

func canEdit(editor models.UserProfile, authorID int64) bool {
	return editor.Role == models.RoleAdmin || (editor.Role == models.RoleExpert && editor.ID == authorID)
}

func (b *Backend) AddResult(userID int64, major models.Major, score float64, responses []models.ResultResponse) models.QuestionnaireResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := models.QuestionnaireResult{
		ID:        b.nextResultID,
		Major:     major,
		Score:     models.Score(score),
		DateTaken: b.now().UTC(),
		Responses: responses,
	}
	b.nextResultID++
	b.results[userID] = append([]models.QuestionnaireResult{r}, b.results[userID]...)
	return r
}

// Results returns the history of userID without per-question responses.
func (b *Backend) Results(userID int64) []models.QuestionnaireResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.results[userID]
	out := make([]models.QuestionnaireResult, len(list))
	for i, r := range list {
		r.Responses = nil
		out[i] = r
	}
	return out
}

func (b *Backend) Result(userID, id int64) (models.QuestionnaireResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, r := range b.results[userID] {
		if r.ID == id {
			return r, nil
		}
	}
	return models.QuestionnaireResult{}, errNotFound
}
