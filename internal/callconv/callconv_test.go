package callconv

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/svenslaggare/stackjit-go/internal/asm/amd64"
)

func TestForGOOSSelectsWindowsOnlyForWindows(t *testing.T) {
	require.IsType(t, Windows{}, ForGOOS("windows"))
	require.IsType(t, SystemV{}, ForGOOS("linux"))
	require.IsType(t, SystemV{}, ForGOOS("darwin"))
	require.IsType(t, SystemV{}, ForGOOS(""))
}

func TestSystemVHasSixIntAndEightFloatParamRegisters(t *testing.T) {
	cc := SystemV{}
	require.Len(t, cc.IntParamRegisters(), 6)
	require.Len(t, cc.FloatParamRegisters(), 8)
	require.Equal(t, 0, cc.CalculateShadowStackSize())

	intReg, floatReg := cc.ReturnRegisters()
	require.Equal(t, amd64.AX, intReg)
	require.Equal(t, amd64.XMM0, floatReg)
}

func TestWindowsHasFourSharedIndexParamRegistersAndShadowSpace(t *testing.T) {
	cc := Windows{}
	require.Len(t, cc.IntParamRegisters(), 4)
	require.Len(t, cc.FloatParamRegisters(), 4)
	require.Equal(t, 32, cc.CalculateShadowStackSize())
}

func TestStackAlignmentCorrectsOnlyOddSpilledArgCounts(t *testing.T) {
	for _, cc := range []CallingConvention{SystemV{}, Windows{}} {
		require.Equal(t, 0, cc.CalculateStackAlignment(0))
		require.Equal(t, 8, cc.CalculateStackAlignment(1))
		require.Equal(t, 0, cc.CalculateStackAlignment(2))
		require.Equal(t, 8, cc.CalculateStackAlignment(3))
	}
}
