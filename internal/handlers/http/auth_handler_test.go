package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"peercall/internal/core/domain"
	"peercall/internal/core/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthRouter() (*gin.Engine, services.AuthService) {
	gin.SetMode(gin.TestMode)
	svc := services.NewAuthService("test-secret", time.Hour)
	router := gin.New()
	NewAuthHandler(svc).SetupRoutes(router)
	return router, svc
}

func postToken(router *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestIssueToken(t *testing.T) {
	router, svc := newAuthRouter()

	w := postToken(router, `{"user_id":"u1","display_name":"alice","room_id":"r1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	claims, err := svc.ValidateToken(body["token"])
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionID("u1"), claims.UserID)
	assert.Equal(t, domain.RoomID("r1"), claims.RoomID)
}

func TestIssueTokenValidation(t *testing.T) {
	router, _ := newAuthRouter()

	cases := []string{
		`{}`,
		`{"user_id":"u1","display_name":"alice"}`,
		`{"user_id":"bad id","display_name":"alice","room_id":"r1"}`,
		`{"user_id":"u1","display_name":"alice","room_id":"bad room"}`,
	}
	for _, body := range cases {
		w := postToken(router, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}
