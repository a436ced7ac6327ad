package serverutils

import (
	"errors"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	errMissingUserClaim = errors.New("token missing user id claim")
	ErrEmptyJwtSecret   = errors.New("jwt secret is empty")
)

// jwtSecret is installed once at startup. Until then every token is rejected.
var jwtSecret atomic.Pointer[[]byte]

// SetJwtSecret installs the HMAC key tokens are verified against.
func SetJwtSecret(secret string) error {
	if secret == "" {
		return ErrEmptyJwtSecret
	}
	key := []byte(secret)
	jwtSecret.Store(&key)
	return nil
}

func signingKey() ([]byte, error) {
	key := jwtSecret.Load()
	if key == nil || len(*key) == 0 {
		return nil, ErrEmptyJwtSecret
	}
	return *key, nil
}

// userClaimKeys are checked in order; issuers disagree on the casing.
var userClaimKeys = []string{"userId", "user_id", "sub"}

// ParseUserToken verifies an HMAC-signed bearer token and returns its user id.
func ParseUserToken(tokenStr string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.ErrUnauthorized
		}
		return signingKey()
	})
	if err != nil {
		return uuid.Nil, err
	}
	if !token.Valid {
		return uuid.Nil, fiber.ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, fiber.ErrUnauthorized
	}

	for _, key := range userClaimKeys {
		if raw, ok := claims[key].(string); ok && raw != "" {
			return uuid.Parse(raw)
		}
	}
	return uuid.Nil, errMissingUserClaim
}

// BearerToken reads the Authorization header, falling back to the "token"
// query param that browsers use for websocket upgrades.
func BearerToken(ctx *fiber.Ctx) string {
	authHeader := ctx.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return authHeader[7:]
	}
	return ctx.Query("token")
}

func JwtMiddleware(ctx *fiber.Ctx) error {
	tokenStr := BearerToken(ctx)
	if tokenStr == "" {
		return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
	}

	userID, err := ParseUserToken(tokenStr)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
	}

	ctx.Locals("user_id", userID.String())
	return ctx.Next()
}

// CurrentUserID returns uuid.Nil when no verified user is attached to the request.
func CurrentUserID(ctx *fiber.Ctx) uuid.UUID {
	userIdStr, ok := ctx.Locals("user_id").(string)
	if !ok {
		return uuid.Nil
	}
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		return uuid.Nil
	}
	return userId
}
