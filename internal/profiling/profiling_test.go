// SPDX-License-Identifier: Apache-2.0

package profiling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStart(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "profiles")

	stop, err := Start(dir)
	require.NoError(t, err)
	require.NoError(t, stop())

	for _, name := range []string{cpuProfileFile, memoryProfileFile} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		require.False(t, info.IsDir())
	}
}
