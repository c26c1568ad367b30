package profiling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProfileTypes(t *testing.T) {
	types, err := ParseProfileTypes("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfileTypes(), types)

	types, err = ParseProfileTypes(" CPU, mutex ")
	require.NoError(t, err)
	assert.Equal(t, []ProfileType{ProfileCPU, ProfileMutex}, types)

	_, err = ParseProfileTypes("cpu,flame")
	assert.ErrorContains(t, err, "unknown profile type")
}

func TestStart_RequiresDir(t *testing.T) {
	_, err := Start(Config{})
	assert.Error(t, err)
}

func TestSession_WritesProfiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pprof")
	sess, err := Start(Config{Dir: dir, Profiles: []ProfileType{ProfileCPU, ProfileHeap, ProfileMutex}})
	require.NoError(t, err)
	assert.Equal(t, dir, sess.Dir())

	sum := 0
	for i := 0; i < 1_000_000; i++ {
		sum += i % 7
	}
	assert.Positive(t, sum)

	files, err := sess.Stop()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "cpu.pprof"),
		filepath.Join(dir, "heap.pprof"),
		filepath.Join(dir, "mutex.pprof"),
	}, files)

	for _, f := range files {
		info, err := os.Stat(f)
		require.NoError(t, err)
		assert.Positive(t, info.Size(), f)
	}

	again, err := sess.Stop()
	require.NoError(t, err)
	assert.Equal(t, files, again)
}

func TestSession_SnapshotOnly(t *testing.T) {
	sess, err := Start(Config{Dir: t.TempDir(), Profiles: []ProfileType{ProfileGoroutine}})
	require.NoError(t, err)
	files, err := sess.Stop()
	require.NoError(t, err)
	assert.Len(t, files, 1)
}
