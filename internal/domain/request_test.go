package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequestType(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      RequestType
		wantError bool
	}{
		{name: "approve_team", input: "approve_team", want: RequestTypeApproveTeam},
		{name: "delete_team", input: "delete_team", want: RequestTypeDeleteTeam},
		{name: "add_team_member", input: "add_team_member", want: RequestTypeAddTeamMember},
		{name: "remove_team_member", input: "remove_team_member", want: RequestTypeRemoveTeamMember},
		{name: "empty", input: "", wantError: true},
		{name: "unknown", input: "rename_team", wantError: true},
		{name: "uppercase", input: "APPROVE_TEAM", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRequestType(tt.input)
			if tt.wantError {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation))
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllRequestTypesParse(t *testing.T) {
	for _, rt := range AllRequestTypes() {
		got, err := ParseRequestType(string(rt))
		require.NoError(t, err, rt)
		assert.Equal(t, rt, got)
	}
}

func TestParseRequestStatus(t *testing.T) {
	for _, s := range []string{"pending", "approved", "rejected"} {
		got, err := ParseRequestStatus(s)
		require.NoError(t, err)
		assert.Equal(t, RequestStatus(s), got)
	}

	_, err := ParseRequestStatus("pendent")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRequestStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.True(t, StatusApproved.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())
}

func TestRequest_DedupKey(t *testing.T) {
	teamID := uuid.New()
	user := "m-42"

	t.Run("member removal includes user", func(t *testing.T) {
		r := &Request{TeamID: teamID, CampusCode: "C1", RequestType: RequestTypeRemoveTeamMember, UserID: &user}
		assert.Equal(t, DedupKey{TeamID: teamID, CampusCode: "C1", RequestType: RequestTypeRemoveTeamMember, UserID: user}, r.DedupKey())
	})

	t.Run("other types ignore user", func(t *testing.T) {
		for _, rt := range []RequestType{RequestTypeApproveTeam, RequestTypeDeleteTeam, RequestTypeAddTeamMember} {
			r := &Request{TeamID: teamID, CampusCode: "C1", RequestType: rt, UserID: &user}
			assert.Empty(t, r.DedupKey().UserID, rt)
		}
	})
}

func TestRequest_Clone(t *testing.T) {
	reason := "original"
	r := &Request{ID: uuid.New(), Reason: &reason, Status: StatusPending}

	c := r.Clone()
	*c.Reason = "changed"
	c.Status = StatusApproved

	assert.Equal(t, "original", *r.Reason)
	assert.Equal(t, StatusPending, r.Status)
	assert.Nil(t, (*Request)(nil).Clone())
}

func TestIdentity(t *testing.T) {
	id := Identity{UserID: "u1", CampusCode: "C1", Roles: []string{"student", "reviewer"}}

	assert.True(t, id.HasRole("reviewer"))
	assert.False(t, id.HasRole("admin"))
	assert.True(t, id.InScope("C1"))
	assert.False(t, id.InScope("C2"))
	assert.False(t, Identity{}.InScope(""))
}

func TestMapErrorToCode(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCode
	}{
		{ErrValidation, CodeValidation},
		{ErrInvalidReviewStatus, CodeValidation},
		{ErrRequestNotFound, CodeNotFound},
		{ErrCampusNotFound, CodeNotFound},
		{ErrForbidden, CodeForbidden},
		{ErrRequestAlreadyReviewed, CodeConflict},
		{ErrReasonRequiresRejection, CodeConflict},
		{ErrPublish, CodePublishFailed},
		{ErrInvalidToken, CodeUnauthorized},
		{errors.New("boom"), CodeInternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MapErrorToCode(tt.err), tt.err.Error())
	}
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))

	wrapped := Permanent(ErrValidation)
	assert.True(t, IsPermanent(wrapped))
	assert.ErrorIs(t, wrapped, ErrValidation)
	assert.False(t, IsPermanent(ErrValidation))
}
