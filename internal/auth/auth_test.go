package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey    = "test-key"
	testIssuer = "geoattend-test"
)

func TestAuthorize(t *testing.T) {
	student := Principal{ProfileID: "s1"}
	instructor := Principal{ProfileID: "i1", Instructor: true}
	anonymous := Principal{}

	cases := []struct {
		name string
		p    Principal
		role Role
		want bool
	}{
		{"student any", student, RoleAny, true},
		{"student student", student, RoleStudent, true},
		{"student instructor", student, RoleInstructor, false},
		{"instructor any", instructor, RoleAny, true},
		{"instructor student", instructor, RoleStudent, false},
		{"instructor instructor", instructor, RoleInstructor, true},
		{"anonymous any", anonymous, RoleAny, false},
		{"anonymous student", anonymous, RoleStudent, false},
		{"unknown role", instructor, Role("admin"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Authorize(tc.p, tc.role))
		})
	}
}

func TestIssueAndParse(t *testing.T) {
	p := Principal{ProfileID: "prof-1", Instructor: true}
	pair, err := Issue(p, testIssuer, testKey, time.Minute, time.Hour)
	require.NoError(t, err)

	claims, err := Parse(pair.AccessToken, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, p, claims.Principal())

	_, err = Parse(pair.RefreshToken, testKey, testIssuer)
	assert.Error(t, err, "refresh token must not pass as access token")

	refresh, err := ParseRefresh(pair.RefreshToken, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "prof-1", refresh.Subject)

	_, err = Parse(pair.AccessToken, "other-key", testIssuer)
	assert.Error(t, err)
	_, err = Parse(pair.AccessToken, testKey, "other-issuer")
	assert.Error(t, err)
}

func TestParseExpired(t *testing.T) {
	pair, err := Issue(Principal{ProfileID: "p"}, testIssuer, testKey, -time.Minute, time.Hour)
	require.NoError(t, err)
	_, err = Parse(pair.AccessToken, testKey, testIssuer)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/teach", Authenticate(testKey, testIssuer), Require(RoleInstructor), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentPrincipal(c).ProfileID)
	})

	student, err := Issue(Principal{ProfileID: "s1"}, testIssuer, testKey, time.Minute, time.Hour)
	require.NoError(t, err)
	instructor, err := Issue(Principal{ProfileID: "i1", Instructor: true}, testIssuer, testKey, time.Minute, time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"student", "Bearer " + student.AccessToken, http.StatusForbidden},
		{"instructor", "Bearer " + instructor.AccessToken, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/teach", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
			if tc.want == http.StatusOK {
				assert.Equal(t, "i1", rec.Body.String())
			}
		})
	}
}

func TestIssueTokensAreUnique(t *testing.T) {
	p := Principal{ProfileID: "prof-1"}
	a, err := Issue(p, testIssuer, testKey, time.Minute, time.Hour)
	require.NoError(t, err)
	b, err := Issue(p, testIssuer, testKey, time.Minute, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, a.RefreshToken, b.RefreshToken)
}
