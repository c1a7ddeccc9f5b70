package os_test

import (
	"os"
	"testing"
	"time"

	kos "github.com/pyx-ai/pyx-cli/pkg/utils/os"
)

func TestGetEnvOr(t *testing.T) {
	t.Run("it returns value of envvar, if existing", func(t *testing.T) {
		key, value := "PYX_TEST_ENVVAR", "test value"
		t.Setenv(key, value)

		actual := kos.GetEnvOr(key, "default")

		if actual != value {
			t.Errorf("wrong value returned: (actual, expected) = (%s, %s)", actual, value)
		}
	})

	t.Run("it returns fallback value, if not existing", func(t *testing.T) {
		key := "PYX_TEST_ENVVAR"

		if original, ok := os.LookupEnv(key); ok {
			os.Unsetenv(key)
			t.Cleanup(func() { os.Setenv(key, original) })
		}

		fallback := "fallback value"
		actual := kos.GetEnvOr(key, fallback)

		if actual != fallback {
			t.Errorf("wrong value returned: (actual, expected) = (%s, %s)", actual, fallback)
		}
	})
}

func TestGetEnvDurationOr(t *testing.T) {
	key := "PYX_TEST_DURATION"

	t.Run("it parses value of envvar", func(t *testing.T) {
		t.Setenv(key, "90s")
		actual, err := kos.GetEnvDurationOr(key, time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		if actual != 90*time.Second {
			t.Errorf("wrong value returned: %s", actual)
		}
	})

	t.Run("it returns fallback value, if empty", func(t *testing.T) {
		t.Setenv(key, "")
		actual, err := kos.GetEnvDurationOr(key, time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		if actual != time.Minute {
			t.Errorf("wrong value returned: %s", actual)
		}
	})

	t.Run("it returns error, if malformed", func(t *testing.T) {
		t.Setenv(key, "half an hour")
		if _, err := kos.GetEnvDurationOr(key, time.Minute); err == nil {
			t.Error("expected error, but nil")
		}
	})
}
