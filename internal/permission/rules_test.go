package permission

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/templui/docvault/internal/model"
	"github.com/templui/docvault/internal/repository"
)

// stubACLs answers Grants from a fixed set of (target, capability) pairs.
type stubACLs struct {
	repository.ACLRepository
	granted map[string]model.Capability
	err     error
	calls   int
}

func (s *stubACLs) Grants(_ context.Context, targetIDs []string, _ string, _ []string, c model.Capability) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	for _, id := range targetIDs {
		if s.granted[id] == c {
			return true, nil
		}
	}
	return false, nil
}

func facts(role model.Role, c model.Capability) *Facts {
	return &Facts{
		ActorID:    "u2",
		Membership: &model.Membership{UserID: "u2", Role: role},
		Kind:       model.TargetFolder,
		TargetID:   "f1",
		OwnerID:    "u1",
		Capability: c,
		ACLTargets: []string{"f1", "root"},
		ACLs:       &stubACLs{},
	}
}

func TestOwnerRule(t *testing.T) {
	f := facts(model.RoleViewer, model.CapDelete)
	v, err := ownerRule{}.Evaluate(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, Abstain, v)

	f.OwnerID = "u2"
	v, err = ownerRule{}.Evaluate(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, Allow, v)
}

func TestAdminRule(t *testing.T) {
	v, _ := adminRule{}.Evaluate(context.Background(), facts(model.RoleAdmin, model.CapDelete))
	assert.Equal(t, Allow, v)
	v, _ = adminRule{}.Evaluate(context.Background(), facts(model.RoleEditor, model.CapDelete))
	assert.Equal(t, Abstain, v)
}

func TestACLRule_MatchesExactCapabilityOnAnyListedTarget(t *testing.T) {
	f := facts(model.RoleViewer, model.CapWrite)
	f.ACLs = &stubACLs{granted: map[string]model.Capability{"root": model.CapWrite}}
	v, err := aclRule{}.Evaluate(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, Allow, v)

	f.Capability = model.CapDelete
	v, err = aclRule{}.Evaluate(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, Abstain, v, "write grant does not imply delete")
}

func TestACLRule_PropagatesErrors(t *testing.T) {
	f := facts(model.RoleViewer, model.CapRead)
	f.ACLs = &stubACLs{err: errors.New("db down")}
	_, err := aclRule{}.Evaluate(context.Background(), f)
	require.Error(t, err)
}

func TestRoleDefaults(t *testing.T) {
	rules := DefaultRules()
	editor, viewer := rules[3], rules[4]

	tests := []struct {
		rule Rule
		role model.Role
		cap  model.Capability
		want Verdict
	}{
		{editor, model.RoleEditor, model.CapRead, Allow},
		{editor, model.RoleEditor, model.CapDownload, Allow},
		{editor, model.RoleEditor, model.CapEdit, Allow},
		{editor, model.RoleEditor, model.CapDelete, Abstain},
		{editor, model.RoleEditor, model.CapWrite, Abstain},
		{editor, model.RoleViewer, model.CapRead, Abstain},
		{viewer, model.RoleViewer, model.CapRead, Allow},
		{viewer, model.RoleViewer, model.CapDownload, Abstain},
		{viewer, model.RoleViewer, model.CapWrite, Abstain},
	}
	for _, tt := range tests {
		v, err := tt.rule.Evaluate(context.Background(), facts(tt.role, tt.cap))
		require.NoError(t, err)
		assert.Equal(t, tt.want, v, "%s %s %s", tt.rule.Name(), tt.role, tt.cap)
	}
}

func TestDeniedError(t *testing.T) {
	err := error(&DeniedError{ActorID: "u2", TargetType: model.TargetFolder, TargetID: "f1", Capability: model.CapWrite, Rule: "default", Reason: ReasonInsufficient})
	assert.True(t, errors.Is(err, ErrInsufficientPermission))
	assert.Equal(t, "insufficient permission: write on folder f1: InsufficientPermission", err.Error())

	var de *DeniedError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "default", de.Rule)
}
