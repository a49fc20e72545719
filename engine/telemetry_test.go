// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestInvocationTelemetry(t *testing.T) {
	ctx := context.Background()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	defer initTelemetry()
	otel.SetMeterProvider(provider)
	defer otel.SetMeterProvider(prev)
	initTelemetry()

	good := join(userLines(4))
	bad := join([]string{`{"id": 1, "name": "a"}`, `{"id": "x", "name": "b"}`})
	require.NoError(t, ValidateJSONL(ctx, good, userSchema))
	require.Error(t, ValidateJSONL(ctx, bad, userSchema))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	var failedFound, bytesFound, recordsFound bool
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case "fastjsonl.engine.invocations.failed":
				data := m.Data.(metricdata.Sum[int64])
				require.Len(t, data.DataPoints, 1)
				require.Equal(t, int64(1), data.DataPoints[0].Value)
				failedFound = true
			case "fastjsonl.engine.bytes":
				data := m.Data.(metricdata.Sum[int64])
				require.Equal(t, int64(len(good)+len(bad)), data.DataPoints[0].Value)
				bytesFound = true
			case "fastjsonl.engine.records":
				recordsFound = true
			}
		}
	}

	require.True(t, failedFound, "failed invocations counter not found")
	require.True(t, bytesFound, "bytes counter not found")
	require.True(t, recordsFound, "records counter not found")
}
