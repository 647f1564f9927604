package platform

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocateAndMakeExecutable(t *testing.T) {
	b, err := AllocateRW(PageSize)
	require.NoError(t, err)
	require.Len(t, b, PageSize)

	// A freshly mapped RW region must be writable.
	b[0] = 0xC3 // ret
	require.NoError(t, MakeExecutable(b))
	require.NoError(t, Deallocate(b))
}

func TestRoundUpToPage(t *testing.T) {
	require.Equal(t, PageSize, RoundUpToPage(0))
	require.Equal(t, PageSize, RoundUpToPage(1))
	require.Equal(t, PageSize, RoundUpToPage(PageSize))
	require.Equal(t, 2*PageSize, RoundUpToPage(PageSize+1))
}

func TestCodePageAllocate(t *testing.T) {
	p, err := NewCodePage(16)
	require.NoError(t, err)
	require.Equal(t, PageSize, p.Size())

	region, offset := p.Allocate(10)
	require.Len(t, region, 10)
	require.Equal(t, 0, offset)
	require.Equal(t, PageSize-10, p.Remaining())

	require.NoError(t, p.MakeExecutable())
	require.NoError(t, p.Close())
}

func TestMemoryManagerGrowsOnMiss(t *testing.T) {
	m := NewMemoryManager()
	r1, p1, _, err := m.Allocate(PageSize - 16)
	require.NoError(t, err)
	require.NotNil(t, r1)

	// This allocation doesn't fit in the remainder of p1, so a new page
	// must be created.
	r2, p2, _, err := m.Allocate(64)
	require.NoError(t, err)
	require.NotNil(t, r2)
	require.NotSame(t, p1, p2)

	require.NoError(t, m.MakeExecutable())
	require.NoError(t, m.Close())
}
