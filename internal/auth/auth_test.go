package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/models"
)

func TestCan(t *testing.T) {
	for _, c := range allCapabilities {
		assert.True(t, Can(models.RoleAdmin, c), c)
		assert.True(t, Can(models.RoleDeveloper, c), c)
		assert.False(t, Can(models.RoleCustomer, c), c)
		assert.False(t, Can(models.Role("stranger"), c), c)
	}
	assert.True(t, Can(models.RoleDelivery, CapAdvanceDelivery))
	assert.False(t, Can(models.RoleDelivery, CapManageCatalog))
	assert.False(t, IsStaff(models.RoleDelivery))
	assert.True(t, IsStaff(models.RoleAdmin))
}

func TestAuthorize(t *testing.T) {
	_, err := Authorize(context.Background(), CapViewReports)
	require.ErrorIs(t, err, models.ErrNotAuthenticated)

	customer := WithIdentity(context.Background(), Identity{UserID: primitive.NewObjectID(), Role: models.RoleCustomer})
	_, err = Authorize(customer, CapViewReports)
	require.ErrorIs(t, err, models.ErrForbidden)

	id, err := Require(customer)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, id.Role)

	admin := WithIdentity(context.Background(), Identity{UserID: primitive.NewObjectID(), Role: models.RoleAdmin})
	_, err = Authorize(admin, CapViewReports, CapManageCoupons)
	require.NoError(t, err)
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	s := NewSessions(time.Hour)
	want := Identity{UserID: primitive.NewObjectID(), Email: "ana@masala.test", Role: models.RoleAdmin}

	token, expiry, err := s.Issue(ctx, want)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiry, time.Minute)

	got, err := s.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	other, err := s.Resolve(ctx, "not-a-token")
	require.NoError(t, err)
	assert.False(t, other.Authenticated())

	require.NoError(t, s.Revoke(ctx, token))
	got, err = s.Resolve(ctx, token)
	require.NoError(t, err)
	assert.False(t, got.Authenticated())
}
