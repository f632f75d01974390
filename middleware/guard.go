package middleware

import (
	"net/http"

	"opdportal/models"
	"opdportal/services/session"

	"github.com/gin-gonic/gin"
)

// ContextUserKey is the gin context key holding the models.SessionUser of a
// request that passed RequireSession.
const ContextUserKey = "sessionUser"

type Outcome int

const (
	OutcomeRender Outcome = iota
	OutcomeLoading
	OutcomeRedirect
)

// Decision is what a protected view should do for the current session.
type Decision struct {
	Outcome Outcome
	Path    string
}

// Landing holds the destinations a guard may redirect to.
type Landing struct {
	Login    string
	Patient  string
	Hospital string
}

// For returns the landing page of the given role. Staff roles land on the
// hospital dashboard, everyone else on the patient dashboard.
func (l Landing) For(role string) string {
	if role == models.RoleHospital || role == models.RoleAdmin {
		return l.Hospital
	}
	return l.Patient
}

// Decide gates a protected view. No decision is made while the session is
// still loading.
func Decide(snap session.Snapshot, landing Landing, roles ...string) Decision {
	if snap.Loading {
		return Decision{Outcome: OutcomeLoading}
	}
	if snap.User == nil {
		return Decision{Outcome: OutcomeRedirect, Path: landing.Login}
	}
	if len(roles) > 0 && !contains(roles, snap.User.Role) {
		return Decision{Outcome: OutcomeRedirect, Path: landing.For(snap.User.Role)}
	}
	return Decision{Outcome: OutcomeRender}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// SessionSource is the read side of the session store.
type SessionSource interface {
	Snapshot() session.Snapshot
}

// RequireSession applies Decide to every request. Redirects are answered with
// a Location header and a JSON body naming the destination, so both browsers
// and API consumers can follow them.
func RequireSession(src SessionSource, landing Landing, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := src.Snapshot()
		d := Decide(snap, landing, roles...)
		switch d.Outcome {
		case OutcomeLoading:
			c.AbortWithStatusJSON(http.StatusAccepted, gin.H{"status": "loading"})
			return
		case OutcomeRedirect:
			status := http.StatusUnauthorized
			msg := "login required"
			if snap.User != nil {
				status = http.StatusForbidden
				msg = "role not allowed"
			}
			c.Header("Location", d.Path)
			c.AbortWithStatusJSON(status, gin.H{"error": msg, "redirect": d.Path})
			return
		}
		c.Set(ContextUserKey, *snap.User)
		c.Next()
	}
}

// CurrentUser returns the user stored by RequireSession.
func CurrentUser(c *gin.Context) (models.SessionUser, bool) {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return models.SessionUser{}, false
	}
	user, ok := v.(models.SessionUser)
	return user, ok
}
