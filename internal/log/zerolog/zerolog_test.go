// SPDX-License-Identifier: Apache-2.0

package zerolog

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	loglib "github.com/datavapte/ecctransform/pkg/log"
)

func TestNewLogger_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewStdLogger(NewLogger(&Config{
		LogLevel: "info",
		JSON:     true,
		Out:      &buf,
	}))

	logger.Debug("not written")
	loglib.WithModule(logger, "extractor").Warn(errors.New("oh noes"), "remote read rejected", loglib.Fields{
		loglib.TableField: "MARA",
	})

	line := map[string]any{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "warn", line["level"])
	require.Equal(t, "remote read rejected", line["message"])
	require.Equal(t, "oh noes", line["error.message"])
	require.Equal(t, "extractor", line[loglib.ModuleField])
	require.Equal(t, "MARA", line[loglib.TableField])
	require.Contains(t, line, "timestamp")
}
