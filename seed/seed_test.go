package seed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/blackt666/immoxx--sub004/models"
	"github.com/blackt666/immoxx--sub004/testutil"
)

func TestSeedAdminIsIdempotent(t *testing.T) {
	db := testutil.NewTestDB(t, &models.AdminUser{})
	log := zap.NewNop()

	require.NoError(t, SeedAdmin(db, log, " Ops@Immoxx.de", "first-password"))
	require.NoError(t, SeedAdmin(db, log, "ops@immoxx.de", "second-password"))

	var admins []models.AdminUser
	require.NoError(t, db.Find(&admins).Error)
	require.Len(t, admins, 1)
	assert.Equal(t, "ops@immoxx.de", admins[0].Email)
	assert.True(t, admins[0].Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admins[0].Password), []byte("first-password")))
}

func TestSeedAdminSkipsOrRejects(t *testing.T) {
	db := testutil.NewTestDB(t, &models.AdminUser{})
	log := zap.NewNop()

	require.NoError(t, SeedAdmin(db, log, "", ""))
	assert.Error(t, SeedAdmin(db, log, "ops@immoxx.de", "short"))

	var count int64
	require.NoError(t, db.Model(&models.AdminUser{}).Count(&count).Error)
	assert.Zero(t, count)
}
