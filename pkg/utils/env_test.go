package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnvFallbacks(t *testing.T) {
	t.Setenv("POLLBOT_TEST_STR", "")
	t.Setenv("POLLBOT_TEST_INT", "-3")
	t.Setenv("POLLBOT_TEST_DUR", "bogus")

	require.Equal(t, "def", Env("POLLBOT_TEST_STR", "def"))
	require.Equal(t, 7, EnvInt("POLLBOT_TEST_INT", 7))
	require.Equal(t, time.Second, EnvDuration("POLLBOT_TEST_DUR", time.Second))
	require.True(t, EnvBool("POLLBOT_TEST_UNSET", true))
}

func TestEnvParsesValues(t *testing.T) {
	t.Setenv("POLLBOT_TEST_STR", "value")
	t.Setenv("POLLBOT_TEST_INT", "12")
	t.Setenv("POLLBOT_TEST_INT64", "0")
	t.Setenv("POLLBOT_TEST_DUR", "90s")
	t.Setenv("POLLBOT_TEST_BOOL", "false")

	require.Equal(t, "value", Env("POLLBOT_TEST_STR", "def"))
	require.Equal(t, 12, EnvInt("POLLBOT_TEST_INT", 7))
	require.Equal(t, int64(0), EnvInt64("POLLBOT_TEST_INT64", 10))
	require.Equal(t, 90*time.Second, EnvDuration("POLLBOT_TEST_DUR", time.Second))
	require.False(t, EnvBool("POLLBOT_TEST_BOOL", true))
}
