// Package access provides an in-memory core.AccessDecider with owner,
// role and per-user grant rules.
package access

import (
	"context"
	"fmt"
	"sync"

	"github.com/Deepreo/reportsched/core"
	"github.com/Deepreo/reportsched/schedule"
)

// Roles recognized by the static decider. The role table maps each role to
// the schedule actions it may perform on any schedule in its organization.
var rolePermissions = map[string][]string{
	"admin": {
		core.ActionRead,
		core.ActionUpdate,
		core.ActionPause,
		core.ActionResume,
		core.ActionExecute,
		core.ActionDelete,
	},
	"manager": {
		core.ActionRead,
		core.ActionPause,
		core.ActionResume,
		core.ActionExecute,
	},
	"viewer": {
		core.ActionRead,
	},
}

// Static is an in-memory core.AccessDecider. The owner of a schedule may
// always perform every action on it; everyone else needs a role or a direct
// grant covering the action, and must belong to the schedule's organization.
type Static struct {
	userRoles  map[string][]string
	userGrants map[string][]string
	userOrgs   map[string]string
	mutex      sync.RWMutex
}

var _ core.AccessDecider = (*Static)(nil)

func NewStatic() *Static {
	return &Static{
		userRoles:  make(map[string][]string),
		userGrants: make(map[string][]string),
		userOrgs:   make(map[string]string),
	}
}

// SetUserRoles replaces the user's roles.
func (s *Static) SetUserRoles(userID string, roles []string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(roles) == 0 {
		delete(s.userRoles, userID)
	} else {
		s.userRoles[userID] = append([]string(nil), roles...)
	}
}

// Grant gives the user a direct permission for one action.
func (s *Static) Grant(userID, action string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	grants := s.userGrants[userID]
	for _, g := range grants {
		if g == action {
			return
		}
	}
	s.userGrants[userID] = append(grants, action)
}

// Revoke removes a direct permission from the user.
func (s *Static) Revoke(userID, action string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	grants, exists := s.userGrants[userID]
	if !exists {
		return
	}

	var kept []string
	for _, g := range grants {
		if g != action {
			kept = append(kept, g)
		}
	}

	if len(kept) == 0 {
		delete(s.userGrants, userID)
	} else {
		s.userGrants[userID] = kept
	}
}

// SetUserOrganization records which organization the user belongs to.
func (s *Static) SetUserOrganization(userID, organizationID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.userOrgs[userID] = organizationID
}

func (s *Static) Authorize(ctx context.Context, userID, action string, sr *schedule.ScheduledReport) (core.Decision, error) {
	if sr.IsCreatedBy(userID) {
		return core.Decision{Allowed: true, Reason: "owner"}, nil
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if sr.OrganizationID != "" && s.userOrgs[userID] != sr.OrganizationID {
		return core.Decision{Reason: "user does not belong to the schedule's organization"}, nil
	}

	for _, g := range s.userGrants[userID] {
		if g == action {
			return core.Decision{Allowed: true, Reason: "direct grant"}, nil
		}
	}

	for _, role := range s.userRoles[userID] {
		for _, perm := range rolePermissions[role] {
			if perm == action {
				return core.Decision{Allowed: true, Reason: "role " + role}, nil
			}
		}
	}

	return core.Decision{Reason: fmt.Sprintf("no role or grant allows %s", action)}, nil
}
