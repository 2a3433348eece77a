package stats

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "data", "bot_stats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestIncrementAndCount(t *testing.T) {
	repo := testRepo(t)

	count, err := repo.Count("set_clan")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	require.NoError(t, repo.Increment("set_clan"))
	require.NoError(t, repo.Increment("set_clan"))
	require.NoError(t, repo.Increment("help"))

	count, err = repo.Count("set_clan")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestTop(t *testing.T) {
	repo := testRepo(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Increment("clan_war_info"))
	}
	require.NoError(t, repo.Increment("help"))

	top, err := repo.Top(5)
	require.NoError(t, err)

	require.Len(t, top, 2)
	assert.Equal(t, CommandCount{Command: "clan_war_info", Count: 3}, top[0])
	assert.Equal(t, CommandCount{Command: "help", Count: 1}, top[1])
}
