package serverutils

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"docqa-be/pkg/rag"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func useSecret(t *testing.T, secret string) {
	t.Helper()
	require.NoError(t, SetJwtSecret(secret))
	t.Cleanup(func() { jwtSecret.Store(nil) })
}

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func decode(t *testing.T, body io.Reader) Response {
	t.Helper()
	var res Response
	require.NoError(t, json.NewDecoder(body).Decode(&res))
	return res
}

func newAuthApp() *fiber.App {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/me", JwtMiddleware, func(ctx *fiber.Ctx) error {
		return ctx.JSON(SuccessResponse("ok", CurrentUserID(ctx).String()))
	})
	return app
}

func TestJwtMiddleware(t *testing.T) {
	useSecret(t, testSecret)
	app := newAuthApp()
	userID := uuid.New()

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
	}{
		{"userId claim", "Bearer " + signToken(t, jwt.MapClaims{"userId": userID.String(), "exp": time.Now().Add(time.Hour).Unix()}, testSecret), "", 200},
		{"user_id claim", "Bearer " + signToken(t, jwt.MapClaims{"user_id": userID.String()}, testSecret), "", 200},
		{"query token", "", signToken(t, jwt.MapClaims{"sub": userID.String()}, testSecret), 200},
		{"missing", "", "", 401},
		{"wrong secret", "Bearer " + signToken(t, jwt.MapClaims{"userId": userID.String()}, "other"), "", 401},
		{"expired", "Bearer " + signToken(t, jwt.MapClaims{"userId": userID.String(), "exp": time.Now().Add(-time.Hour).Unix()}, testSecret), "", 401},
		{"no user claim", "Bearer " + signToken(t, jwt.MapClaims{"role": "user"}, testSecret), "", 401},
		{"bad uuid", "Bearer " + signToken(t, jwt.MapClaims{"userId": "not-a-uuid"}, testSecret), "", 401},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/me"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest("GET", target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			res := decode(t, resp.Body)
			if tt.wantStatus == 200 {
				assert.Equal(t, userID.String(), res.Data)
			} else {
				assert.False(t, res.Success)
			}
		})
	}
}

func TestParseUserToken_RejectsWithoutSecret(t *testing.T) {
	jwtSecret.Store(nil)
	forged := signToken(t, jwt.MapClaims{"userId": uuid.New().String()}, "")

	uid, err := ParseUserToken(forged)
	assert.ErrorIs(t, err, ErrEmptyJwtSecret)
	assert.Equal(t, uuid.Nil, uid)

	assert.ErrorIs(t, SetJwtSecret(""), ErrEmptyJwtSecret)
	_, err = ParseUserToken(forged)
	assert.Error(t, err)

	useSecret(t, testSecret)
	_, err = ParseUserToken(forged)
	assert.Error(t, err)

	resp, err := newAuthApp().Test(withBearer(httptest.NewRequest("GET", "/me", nil), forged))
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
}

func withBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestErrorHandlerMiddleware_MapsSentinels(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantReason string
	}{
		{rag.ErrNotAuthenticated, 401, "NOT_AUTHENTICATED"},
		{rag.ErrNoContext, 404, "NO_CONTEXT"},
		{rag.ErrNoRelevantContext, 422, "NO_RELEVANT_CONTEXT"},
		{fmt.Errorf("wrapped: %w", rag.ErrStillPreparing), 409, "STILL_PREPARING"},
		{rag.ErrPreparationFailed, 409, "PREPARATION_FAILED"},
		{fmt.Errorf("ollama down: %w", rag.ErrEmbeddingFailure), 502, "EMBEDDING_FAILURE"},
		{rag.ErrGenerationFailure, 502, "GENERATION_FAILURE"},
		{fmt.Errorf("boom"), 500, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.wantReason, func(t *testing.T) {
			app := fiber.New()
			app.Use(ErrorHandlerMiddleware())
			app.Get("/", func(ctx *fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			res := decode(t, resp.Body)
			assert.Equal(t, tt.wantReason, res.Reason)
			assert.Equal(t, tt.wantStatus, res.Code)
		})
	}
}

type sampleRequest struct {
	Question string `json:"question" validate:"required"`
	Scope    string `json:"scope" validate:"omitempty,oneof=all latest current ids"`
}

func TestErrorHandlerMiddleware_Validation(t *testing.T) {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/", func(ctx *fiber.Ctx) error {
		return ValidateRequest(sampleRequest{Scope: "everything"})
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	res := decode(t, resp.Body)
	assert.Equal(t, []string{
		"Question is required",
		"Scope must be one of [all latest current ids]",
	}, res.Errors)
}

func TestErrorHandlerMiddleware_FiberError(t *testing.T) {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/", func(ctx *fiber.Ctx) error { return fiber.NewError(fiber.StatusBadRequest, "bad id") })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, "bad id", decode(t, resp.Body).Message)
}
