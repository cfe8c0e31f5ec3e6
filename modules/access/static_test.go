package access_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Deepreo/reportsched/core"
	"github.com/Deepreo/reportsched/modules/access"
	"github.com/Deepreo/reportsched/schedule"
)

func report() *schedule.ScheduledReport {
	return &schedule.ScheduledReport{
		ID:             "sr-1",
		CreatedBy:      "owner-1",
		OrganizationID: "org-1",
	}
}

func TestOwnerMayDoEverything(t *testing.T) {
	decider := access.NewStatic()
	sr := report()

	for _, action := range []string{
		core.ActionRead, core.ActionUpdate, core.ActionPause,
		core.ActionResume, core.ActionExecute, core.ActionDelete,
	} {
		decision, err := decider.Authorize(context.Background(), "owner-1", action, sr)
		require.NoError(t, err)
		assert.True(t, decision.Allowed, "owner denied %s", action)
	}
}

func TestStrangerIsDenied(t *testing.T) {
	decider := access.NewStatic()

	decision, err := decider.Authorize(context.Background(), "stranger", core.ActionRead, report())
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestRoleGrantsWithinOrganization(t *testing.T) {
	decider := access.NewStatic()
	decider.SetUserOrganization("colleague", "org-1")
	decider.SetUserRoles("colleague", []string{"viewer"})

	decision, err := decider.Authorize(context.Background(), "colleague", core.ActionRead, report())
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	// Viewer may not execute.
	decision, err = decider.Authorize(context.Background(), "colleague", core.ActionExecute, report())
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	// Same role in another organization gets nothing.
	decider.SetUserOrganization("colleague", "org-2")
	decision, err = decider.Authorize(context.Background(), "colleague", core.ActionRead, report())
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestDirectGrantAndRevoke(t *testing.T) {
	decider := access.NewStatic()
	decider.SetUserOrganization("colleague", "org-1")
	decider.Grant("colleague", core.ActionPause)

	decision, err := decider.Authorize(context.Background(), "colleague", core.ActionPause, report())
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	decider.Revoke("colleague", core.ActionPause)
	decision, err = decider.Authorize(context.Background(), "colleague", core.ActionPause, report())
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}
