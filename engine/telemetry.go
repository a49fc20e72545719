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
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	recordsCounter           otelmetric.Int64Counter
	failedInvocationsCounter otelmetric.Int64Counter
	bytesCounter             otelmetric.Int64Counter
	invocationDurationHist   otelmetric.Float64Histogram

	modeValidateAttr = otelmetric.WithAttributes(attribute.String("mode", "validate"))
	modeConvertAttr  = otelmetric.WithAttributes(attribute.String("mode", "convert"))
)

func init() {
	initTelemetry()
}

func initTelemetry() {
	meter := otel.Meter("github.com/cardinalhq/fastjsonl/engine")

	var err error
	recordsCounter, err = meter.Int64Counter(
		"fastjsonl.engine.records",
		otelmetric.WithDescription("Number of records parsed and accepted"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create records counter: %w", err))
	}

	failedInvocationsCounter, err = meter.Int64Counter(
		"fastjsonl.engine.invocations.failed",
		otelmetric.WithDescription("Number of invocations that failed on a record"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create invocations.failed counter: %w", err))
	}

	bytesCounter, err = meter.Int64Counter(
		"fastjsonl.engine.bytes",
		otelmetric.WithUnit("By"),
		otelmetric.WithDescription("Number of buffer bytes handed to the engine"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create bytes counter: %w", err))
	}

	invocationDurationHist, err = meter.Float64Histogram(
		"fastjsonl.engine.duration",
		otelmetric.WithUnit("s"),
		otelmetric.WithDescription("Wall time of one validate or convert invocation"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create duration histogram: %w", err))
	}
}
