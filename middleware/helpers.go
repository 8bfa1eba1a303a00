package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/golang-jwt/jwt/v4"

	"github.com/Dosada05/ride-challenges/models"
)

const (
	claimUserID = "user_id"
	claimRole   = "role"
)

var errNoClaims = errors.New("no authenticated user in context")

func claimsFromContext(ctx context.Context) (jwt.MapClaims, error) {
	claims, ok := ctx.Value(userContextKey).(jwt.MapClaims)
	if !ok {
		return nil, errNoClaims
	}
	return claims, nil
}

// GetUserIDFromContext reads the user_id claim. Tokens are decoded from
// JSON, so the id arrives as a float64 and must be a positive integer.
func GetUserIDFromContext(ctx context.Context) (int, error) {
	claims, err := claimsFromContext(ctx)
	if err != nil {
		return 0, err
	}
	raw, ok := claims[claimUserID]
	if !ok {
		return 0, fmt.Errorf("token has no %s claim", claimUserID)
	}
	id, ok := raw.(float64)
	if !ok {
		return 0, fmt.Errorf("%s claim is %T, want a number", claimUserID, raw)
	}
	if id != math.Trunc(id) || id < 1 || id > math.MaxInt32 {
		return 0, fmt.Errorf("%s claim %v is not a valid user id", claimUserID, id)
	}
	return int(id), nil
}

func GetUserRoleFromContext(ctx context.Context) (models.UserRole, error) {
	claims, err := claimsFromContext(ctx)
	if err != nil {
		return "", err
	}
	raw, _ := claims[claimRole].(string)
	switch role := models.UserRole(raw); role {
	case models.RoleAdmin, models.RoleRider:
		return role, nil
	default:
		return "", fmt.Errorf("unknown %s claim %q", claimRole, raw)
	}
}
