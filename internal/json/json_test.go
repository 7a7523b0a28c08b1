// SPDX-License-Identifier: Apache-2.0

package json

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type testStatus struct {
	ClientID string   `json:"client_id"`
	Errors   []string `json:"errors,omitempty"`
}

func TestMarshalIndent(t *testing.T) {
	t.Parallel()

	got, err := MarshalIndent(&testStatus{ClientID: "C100", Errors: []string{"oh noes"}}, "\t")
	require.NoError(t, err)
	require.Equal(t, "{\n\t\"client_id\": \"C100\",\n\t\"errors\": [\n\t\t\"oh noes\"\n\t]\n}", string(got))

	status := &testStatus{}
	require.NoError(t, Unmarshal(got, status))
	require.Equal(t, &testStatus{ClientID: "C100", Errors: []string{"oh noes"}}, status)
}
