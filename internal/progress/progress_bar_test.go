// SPDX-License-Identifier: Apache-2.0

package progress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCountBar(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	bar := newCountBar(&buf, 2, "extracting")

	require.NoError(t, bar.Add(1))
	bar.Describe("extracting MARA")
	require.NoError(t, bar.Add(1))
	require.NoError(t, bar.Close())

	require.Contains(t, buf.String(), "extracting MARA")
	require.Contains(t, buf.String(), "2/2")
}
