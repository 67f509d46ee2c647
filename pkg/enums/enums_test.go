package enums

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseErrorLevel(t *testing.T) {
	lvl, err := ParseErrorLevel("WARNING")
	require.NoError(t, err)
	require.Equal(t, ErrorLevelWarning, lvl)
	require.True(t, lvl.IsValid())

	_, err = ParseErrorLevel("warning")
	require.Error(t, err)
	require.False(t, ErrorLevel("FATAL").IsValid())
}

func TestParseComponent(t *testing.T) {
	c, err := ParseComponent("SCHEDULER")
	require.NoError(t, err)
	require.Equal(t, ComponentScheduler, c)
	require.Equal(t, "SCHEDULER", c.String())

	_, err = ParseComponent("BILLING")
	require.Error(t, err)
}

func TestParseOperatorRole(t *testing.T) {
	role, err := ParseOperatorRole("admin")
	require.NoError(t, err)
	require.Equal(t, OperatorRoleAdmin, role)

	_, err = ParseOperatorRole("owner")
	require.Error(t, err)
}
