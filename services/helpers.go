package services

import (
	"math"
	"strings"

	"github.com/Dosada05/ride-challenges/models"
)

// Actor is the authenticated user performing an operation.
type Actor struct {
	UserID int
	Role   models.UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// CanManage reports whether the actor owns the resource or is an admin.
func (a Actor) CanManage(ownerID int) bool {
	return a.IsAdmin() || a.UserID == ownerID
}

// canSeeChallenge applies the private challenge rule: creator, participants
// and admins only. joined holds the viewer's challenge ids.
func canSeeChallenge(viewer *Actor, c *models.Challenge, joined map[int]bool) bool {
	if !c.IsPrivate {
		return true
	}
	return viewer != nil && (viewer.CanManage(c.CreatorID) || joined[c.ID])
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// trimmedOrNil turns blank optional text into nil.
func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
