package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/promptcredits/pkg/config"
)

type defaultsConfig struct {
	Name    string `env:"CFG_TEST_NAME" envDefault:"promptcredits"`
	Credits int64  `env:"CFG_TEST_CREDITS" envDefault:"5"`
}

type cachedConfig struct {
	Value string `env:"CFG_TEST_CACHED" envDefault:"first"`
}

type requiredConfig struct {
	Secret string `env:"CFG_TEST_REQUIRED_SECRET,required"`
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := config.Parse[defaultsConfig]()
	require.NoError(t, err)
	assert.Equal(t, "promptcredits", cfg.Name)
	assert.Equal(t, int64(5), cfg.Credits)
}

func TestParse_FromEnv(t *testing.T) {
	t.Setenv("CFG_TEST_CREDITS", "42")

	cfg, err := config.Parse[defaultsConfig]()
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.Credits)
}

func TestParse_MissingRequired(t *testing.T) {
	_, err := config.Parse[requiredConfig]()
	assert.ErrorIs(t, err, config.ErrParsingConfig)
}

func TestLoad_CachesPerType(t *testing.T) {
	t.Setenv("CFG_TEST_CACHED", "first")

	var a cachedConfig
	require.NoError(t, config.Load(&a))

	t.Setenv("CFG_TEST_CACHED", "second")

	var b cachedConfig
	require.NoError(t, config.Load(&b))
	assert.Equal(t, "first", b.Value)
}

func TestLoad_NilPointer(t *testing.T) {
	assert.ErrorIs(t, config.Load[cachedConfig](nil), config.ErrNilPointer)
}

func TestMustLoad_Panics(t *testing.T) {
	assert.Panics(t, func() {
		var cfg requiredConfig
		config.MustLoad(&cfg)
	})
}
