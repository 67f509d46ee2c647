package instance

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetIDPrefersEnv(t *testing.T) {
	t.Setenv("BASKETCASE_INSTANCE_ID", "cron-worker-a")
	require.Equal(t, "cron-worker-a", GetID())
}

func TestGetIDFallsBackToHostAndPID(t *testing.T) {
	t.Setenv("BASKETCASE_INSTANCE_ID", "")
	id := GetID()
	require.True(t, strings.HasSuffix(id, fmt.Sprintf("-%d", os.Getpid())), id)
}
