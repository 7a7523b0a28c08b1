// SPDX-License-Identifier: Apache-2.0

package otel

import (
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewInstrumentationProvider_Noop(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  *Config
	}{
		{name: "nil config", cfg: nil},
		{name: "empty config", cfg: &Config{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			p, err := NewInstrumentationProvider(tc.cfg)
			require.NoError(t, err)
			require.False(t, p.NewInstrumentation("test").IsEnabled())
			require.NoError(t, p.Close())
		})
	}
}

func TestDeltaSelector(t *testing.T) {
	t.Parallel()

	require.Equal(t, metricdata.DeltaTemporality, deltaSelector(sdkmetric.InstrumentKindCounter))
	require.Equal(t, metricdata.DeltaTemporality, deltaSelector(sdkmetric.InstrumentKindHistogram))
	require.Equal(t, metricdata.CumulativeTemporality, deltaSelector(sdkmetric.InstrumentKindUpDownCounter))
}

func TestCloseSpan_NilSpan(t *testing.T) {
	t.Parallel()

	ctx, span := StartSpan(t.Context(), nil, "noop")
	require.NotNil(t, ctx)
	require.Nil(t, span)
	CloseSpan(span, nil)
}
