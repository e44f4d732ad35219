package auth

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	p, err := NewPolicy(DefaultPolicy)
	require.NoError(t, err)

	tests := []struct {
		roles    []string
		resource string
		action   string
		want     bool
	}{
		{[]string{"patient"}, "appointment", "create", true},
		{[]string{"patient"}, "appointment", "transition", false},
		{[]string{"patient"}, "availability", "write", false},
		{[]string{"doctor"}, "appointment", "create", false},
		{[]string{"doctor"}, "appointment", "transition", true},
		{[]string{"doctor"}, "availability", "write", true},
		{[]string{"doctor"}, "timeslot", "rebuild", false},
		{[]string{"staff"}, "appointment", "create", true},
		{[]string{"staff"}, "timeslot", "rebuild", true},
		{[]string{"admin"}, "appointment", "transition", true},
		{[]string{"admin"}, "dashboard", "read", true},
		{[]string{"patient", "staff"}, "appointment", "transition", true},
		{nil, "appointment", "read", false},
		{[]string{"janitor"}, "appointment", "read", false},
	}
	for _, tt := range tests {
		got, err := p.Allowed(tt.roles, tt.resource, tt.action)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%v %s/%s", tt.roles, tt.resource, tt.action)
	}
}

func TestPolicyAuthorize(t *testing.T) {
	p, err := NewPolicy(DefaultPolicy)
	require.NoError(t, err)

	c, rec := contextWithRoles("doctor")
	require.NoError(t, p.Authorize("appointment", "transition")(okHandler)(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, _ = contextWithRoles("patient")
	expectStatus(t, p.Authorize("appointment", "transition")(okHandler)(c), http.StatusForbidden)
}
