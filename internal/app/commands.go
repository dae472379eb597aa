package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/RubachokBoss/major-recommender/internal/models"
)

var ErrUsage = errors.New("usage error")

const usage = `usage: majorrec <command> [flags]

session:
  status                     show the current session
  login -email -password -role
  logout
  register -email -password -confirm -first-name -last-name -gender [-dob -gat -saath -gpa]
  verify -email -code
  resend-code -email
  refresh                    exchange the refresh token
  profile                    fetch the profile from the server
  profile-update [-first-name -last-name -gender -dob -gat -saath -gpa]

announcements:
  announcements list|cached|filter|create|update|delete|add-local|update-local

results:
  results list
  results show -id

other:
  migrate -direction up|down|force|version
  mock-api
`

// Usage writes the command overview.
func Usage(w io.Writer) {
	fmt.Fprint(w, usage)
}

// Run executes one store command and writes its JSON result to out.
func (a *App) Run(ctx context.Context, args []string, out, errOut io.Writer) error {
	if len(args) == 0 {
		Usage(errOut)
		return ErrUsage
	}

	if err := a.Start(ctx); err != nil {
		return err
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "status":
		return a.status(ctx, out)
	case "login":
		return a.login(ctx, rest, out, errOut)
	case "logout":
		return writeResult(out, a.Auth.Logout(ctx))
	case "register":
		return a.register(ctx, rest, out, errOut)
	case "verify":
		return a.verify(ctx, rest, out, errOut)
	case "resend-code":
		return a.resendCode(ctx, rest, out, errOut)
	case "refresh":
		if err := a.Auth.RefreshSession(ctx); err != nil {
			return err
		}
		return a.status(ctx, out)
	case "profile":
		user, err := a.Auth.FetchProfile(ctx)
		if err != nil {
			return err
		}
		return writeResult(out, user)
	case "profile-update":
		return a.profileUpdate(ctx, rest, out, errOut)
	case "announcements":
		return a.announcements(ctx, rest, out, errOut)
	case "results":
		return a.results(ctx, rest, out, errOut)
	default:
		Usage(errOut)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

func (a *App) status(ctx context.Context, out io.Writer) error {
	result := struct {
		State       models.SessionState `json:"state"`
		Session     models.Session      `json:"session"`
		TokenExpiry *time.Time          `json:"token_expiry,omitempty"`
	}{
		State:   a.Auth.State(),
		Session: a.Auth.Session(),
	}

	exp, ok, err := a.Auth.TokenExpiry(ctx)
	if err != nil {
		a.logger.Debug().Err(err).Msg("Stored token has no readable expiry")
	} else if ok {
		result.TokenExpiry = &exp
	}
	return writeResult(out, result)
}

func (a *App) login(ctx context.Context, args []string, out, errOut io.Writer) error {
	fs := newFlagSet("login", errOut)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	role := fs.String("role", "", "student, expert or admin")
	if err := parse(fs, args); err != nil {
		return err
	}

	session, err := a.Auth.Login(ctx, *email, *password, models.Role(strings.ToLower(*role)))
	if err != nil {
		return err
	}
	return writeResult(out, session)
}

func (a *App) register(ctx context.Context, args []string, out, errOut io.Writer) error {
	var req models.RegisterRequest
	var gat, saath, gpa scoreFlag

	fs := newFlagSet("register", errOut)
	fs.StringVar(&req.Email, "email", "", "account email")
	fs.StringVar(&req.Password, "password", "", "password, at least 8 characters with a letter and a digit")
	fs.StringVar(&req.ConfirmPassword, "confirm", "", "password confirmation")
	fs.StringVar(&req.FirstName, "first-name", "", "first name")
	fs.StringVar(&req.LastName, "last-name", "", "last name")
	fs.StringVar(&req.Gender, "gender", "", "male or female")
	fs.StringVar(&req.DateOfBirth, "dob", "", "date of birth, YYYY-MM-DD")
	fs.Var(&gat, "gat", "GAT score, 0-100")
	fs.Var(&saath, "saath", "SAATH score, 0-100")
	fs.Var(&gpa, "gpa", "high school GPA, 0-100")
	if err := parse(fs, args); err != nil {
		return err
	}
	req.Role = models.RoleStudent
	req.GATScore, req.SAATHScore, req.HighSchoolGPA = gat.value, saath.value, gpa.value

	session, err := a.Auth.Register(ctx, req)
	if err != nil {
		return err
	}
	return writeResult(out, session)
}

func (a *App) verify(ctx context.Context, args []string, out, errOut io.Writer) error {
	fs := newFlagSet("verify", errOut)
	email := fs.String("email", "", "account email")
	code := fs.String("code", "", "6-digit verification code")
	if err := parse(fs, args); err != nil {
		return err
	}

	session, err := a.Auth.VerifyEmail(ctx, *email, *code)
	if err != nil {
		return err
	}
	return writeResult(out, session)
}

func (a *App) resendCode(ctx context.Context, args []string, out, errOut io.Writer) error {
	fs := newFlagSet("resend-code", errOut)
	email := fs.String("email", "", "account email")
	if err := parse(fs, args); err != nil {
		return err
	}

	session, err := a.Auth.ResendVerificationCode(ctx, *email)
	if err != nil {
		return err
	}
	return writeResult(out, session)
}

func (a *App) profileUpdate(ctx context.Context, args []string, out, errOut io.Writer) error {
	var update models.ProfileUpdate
	var firstName, lastName, gender, dob stringFlag
	var gat, saath, gpa scoreFlag

	fs := newFlagSet("profile-update", errOut)
	fs.Var(&firstName, "first-name", "first name")
	fs.Var(&lastName, "last-name", "last name")
	fs.Var(&gender, "gender", "male or female")
	fs.Var(&dob, "dob", "date of birth, YYYY-MM-DD")
	fs.Var(&gat, "gat", "GAT score, 0-100")
	fs.Var(&saath, "saath", "SAATH score, 0-100")
	fs.Var(&gpa, "gpa", "high school GPA, 0-100")
	if err := parse(fs, args); err != nil {
		return err
	}
	update.FirstName, update.LastName, update.Gender, update.DateOfBirth = firstName.value, lastName.value, gender.value, dob.value
	update.GATScore, update.SAATHScore, update.HighSchoolGPA = gat.value, saath.value, gpa.value

	user, err := a.Auth.UpdateProfile(ctx, update)
	if err != nil {
		return err
	}
	return writeResult(out, user)
}

func (a *App) announcements(ctx context.Context, args []string, out, errOut io.Writer) error {
	if len(args) == 0 {
		Usage(errOut)
		return fmt.Errorf("%w: announcements needs a subcommand", ErrUsage)
	}

	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		list, err := a.Announcements.List(ctx)
		if err != nil {
			return err
		}
		return writeResult(out, list)

	case "cached":
		return writeResult(out, a.Announcements.Announcements())

	case "filter":
		fs := newFlagSet("announcements filter", errOut)
		search := fs.String("search", "", "text to look for in title or content")
		category := fs.String("category", models.CategoryAll, "category, or all")
		dateRange := fs.String("range", string(models.DateRangeAll), "all, week, month or year")
		refresh := fs.Bool("refresh", false, "fetch from the server before filtering")
		if err := parse(fs, rest); err != nil {
			return err
		}
		if *refresh {
			if _, err := a.Announcements.List(ctx); err != nil {
				return err
			}
		}
		if err := a.Announcements.SetFilters(models.Filter{
			Search:    *search,
			Category:  *category,
			DateRange: models.DateRange(strings.ToLower(*dateRange)),
		}); err != nil {
			return err
		}
		return writeResult(out, a.Announcements.Filtered())

	case "create", "add-local":
		fs := newFlagSet("announcements "+sub, errOut)
		input := announcementFlags(fs)
		if err := parse(fs, rest); err != nil {
			return err
		}
		var (
			created models.Announcement
			err     error
		)
		if sub == "create" {
			created, err = a.Announcements.Create(ctx, input.build())
		} else {
			created, err = a.Announcements.AddLocal(ctx, input.build())
		}
		if err != nil {
			return err
		}
		return writeResult(out, created)

	case "update", "update-local":
		fs := newFlagSet("announcements "+sub, errOut)
		id := fs.String("id", "", "announcement id")
		input := announcementFlags(fs)
		if err := parse(fs, rest); err != nil {
			return err
		}
		if *id == "" {
			return fmt.Errorf("%w: -id is required", ErrUsage)
		}
		var (
			updated models.Announcement
			err     error
		)
		if sub == "update" {
			updated, err = a.Announcements.Update(ctx, models.AnnouncementID(*id), input.build())
		} else {
			updated, err = a.Announcements.UpdateLocal(ctx, models.AnnouncementID(*id), input.build())
		}
		if err != nil {
			return err
		}
		return writeResult(out, updated)

	case "delete":
		fs := newFlagSet("announcements delete", errOut)
		id := fs.String("id", "", "announcement id")
		if err := parse(fs, rest); err != nil {
			return err
		}
		if *id == "" {
			return fmt.Errorf("%w: -id is required", ErrUsage)
		}
		if err := a.Announcements.Delete(ctx, models.AnnouncementID(*id)); err != nil {
			return err
		}
		return writeResult(out, a.Announcements.Announcements())

	default:
		Usage(errOut)
		return fmt.Errorf("%w: unknown announcements subcommand %q", ErrUsage, sub)
	}
}

func (a *App) results(ctx context.Context, args []string, out, errOut io.Writer) error {
	if len(args) == 0 {
		Usage(errOut)
		return fmt.Errorf("%w: results needs a subcommand", ErrUsage)
	}

	switch args[0] {
	case "list":
		list, err := a.Results.Fetch(ctx)
		if err != nil {
			return err
		}
		return writeResult(out, list)
	case "show":
		fs := newFlagSet("results show", errOut)
		id := fs.Int64("id", 0, "result id")
		if err := parse(fs, args[1:]); err != nil {
			return err
		}
		result, err := a.Results.Get(ctx, *id)
		if err != nil {
			return err
		}
		return writeResult(out, result)
	default:
		Usage(errOut)
		return fmt.Errorf("%w: unknown results subcommand %q", ErrUsage, args[0])
	}
}

type announcementInputFlags struct {
	title, content, category stringFlag
	pinned                   boolFlag
}

func announcementFlags(fs *flag.FlagSet) *announcementInputFlags {
	f := &announcementInputFlags{}
	fs.Var(&f.title, "title", "title")
	fs.Var(&f.content, "content", "body, plain text or HTML")
	fs.Var(&f.category, "category", "category")
	fs.Var(&f.pinned, "pinned", "pin to the top")
	return f
}

func (f *announcementInputFlags) build() models.AnnouncementInput {
	return models.AnnouncementInput{
		Title:    f.title.value,
		Content:  f.content.value,
		Category: f.category.value,
		IsPinned: f.pinned.value,
	}
}

// stringFlag, scoreFlag and boolFlag stay nil unless the flag is given.
type stringFlag struct{ value *string }

func (f *stringFlag) String() string {
	if f.value == nil {
		return ""
	}
	return *f.value
}

func (f *stringFlag) Set(s string) error {
	f.value = &s
	return nil
}

type scoreFlag struct{ value *models.Score }

func (f *scoreFlag) String() string {
	if f.value == nil {
		return ""
	}
	return strconv.FormatFloat(f.value.Float64(), 'f', -1, 64)
}

func (f *scoreFlag) Set(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid score %q", s)
	}
	score := models.Score(v)
	f.value = &score
	return nil
}

type boolFlag struct{ value *bool }

func (f *boolFlag) String() string {
	if f.value == nil {
		return ""
	}
	return strconv.FormatBool(*f.value)
}

func (f *boolFlag) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	f.value = &v
	return nil
}

func (f *boolFlag) IsBoolFlag() bool { return true }

func newFlagSet(name string, errOut io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(errOut)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	return nil
}

func writeResult(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
