package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RubachokBoss/major-recommender/internal/apierror"
	"github.com/RubachokBoss/major-recommender/internal/config"
	"github.com/RubachokBoss/major-recommender/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) APIClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := config.APIConfig{BaseURL: server.URL + "/api", Timeout: 2 * time.Second, UserAgent: "majorrec-test"}
	return NewAPIClientWithHTTP(cfg, server.Client(), zerolog.Nop())
}

func TestLoginSendsCredentialsAndRequestID(t *testing.T) {
	var gotHeaders http.Header
	var gotReq models.LoginRequest

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/users/login/", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		gotHeaders = r.Header.Clone()
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &gotReq))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access":"a","refresh":"r","user":{"id":3,"email":"x@y.z","first_name":"X","last_name":"Y","role":"expert","is_verified":true}}`)
	})

	resp, err := client.Login(context.Background(), models.LoginRequest{Email: "x@y.z", Password: "secret123", Role: models.RoleExpert})
	require.NoError(t, err)

	assert.Equal(t, "x@y.z", gotReq.Email)
	assert.Equal(t, models.RoleExpert, gotReq.Role)
	_, err = uuid.Parse(gotHeaders.Get(HeaderRequestID))
	assert.NoError(t, err)
	assert.Empty(t, gotHeaders.Get("Authorization"))
	assert.Equal(t, "majorrec-test", gotHeaders.Get("User-Agent"))

	assert.Equal(t, "a", resp.Access)
	assert.Equal(t, "r", resp.Refresh)
	require.NotNil(t, resp.User)
	assert.Equal(t, models.RoleExpert, resp.User.Role)
}

func TestBearerTokenAndPaginatedList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/notifications/":
			fmt.Fprint(w, `{"count":1,"results":[{"id":9,"title":"t","content":"c","category":"news","created_at":"2024-05-01T00:00:00Z"}]}`)
		case "/api/questionnaire/results/":
			fmt.Fprint(w, `[{"id":1,"major":{"id":2,"name":"Physics"},"score":"87.5","date_taken":"2024-05-01T00:00:00Z"}]`)
		default:
			http.NotFound(w, r)
		}
	})

	list, err := client.ListAnnouncements(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.AnnouncementID("9"), list[0].ID)

	results, err := client.ListResults(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Physics", results[0].Major.Name)
	assert.InDelta(t, 87.5, results[0].Score.Float64(), 1e-9)
}

func TestErrorResponsesBecomeAPIErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/users/register/":
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"email":["user with this email already exists."]}`)
		case "/api/notifications/5/":
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"detail":"Not found."}`)
		}
	})

	_, err := client.Register(context.Background(), models.RegisterRequest{Email: "a@b.co"})
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, apierror.KindValidation, apiErr.Kind)
	assert.Equal(t, "Email error: user with this email already exists.", apierror.Normalize(err))

	err = client.DeleteAnnouncement(context.Background(), "tok", "5")
	assert.True(t, apierror.IsNotFound(err))
	assert.Equal(t, apierror.KindNotFound, apierror.Classify(err))
}

func TestNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewAPIClient(config.APIConfig{BaseURL: url, Timeout: time.Second}, zerolog.Nop())
	_, err := client.GetProfile(context.Background(), "tok")

	assert.Equal(t, apierror.KindNetwork, apierror.Classify(err))
	assert.Equal(t, apierror.MsgNetwork, apierror.Normalize(err))
}
