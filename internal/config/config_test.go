package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CORS_ORIGINS", " http://a.test , ,http://b.test")

	require.NoError(t, Load())

	assert.Equal(t, "marketplace", AppEnv.DBName)
	assert.Equal(t, 20*time.Minute, AppEnv.AccessTokenTTL)
	assert.Equal(t, 100, AppEnv.RateLimitMax)
	assert.Equal(t, 5, AppEnv.AuthRateLimit)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, AppEnv.CORSOrigins)
	assert.True(t, AppEnv.IsDevelopment())
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("MONGO_URI", "")
	t.Setenv("JWT_SECRET", "")

	assert.Error(t, Load())
}
