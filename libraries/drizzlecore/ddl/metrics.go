// Copyright 2026 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ddl

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalogerr"
)

const (
	opLabel      = "op"
	outcomeLabel = "outcome"
	lockLabel    = "lock"

	lockGlobal   = "global"
	lockCatalog  = "catalog"
	lockName     = "name"
	lockTableUse = "table_use"
)

type metrics struct {
	ops      *prometheus.CounterVec
	lockWait *prometheus.HistogramVec
}

func newMetrics(namespace string, reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ddl_operations_total",
			Help:      "Count of DDL operations by operation and outcome",
		}, []string{opLabel, outcomeLabel}),
		lockWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ddl_lock_wait_seconds",
			Help:      "Time DDL operations spent waiting for locks",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1.0, 10.0, 100.0},
		}, []string{lockLabel}),
	}

	if reg != nil {
		for _, col := range []prometheus.Collector{m.ops, m.lockWait} {
			if err := reg.Register(col); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *metrics) observe(op string, err error) {
	m.ops.WithLabelValues(op, catalogerr.Classify(err).String()).Inc()
}

func (m *metrics) waited(lock string, start time.Time) {
	m.lockWait.WithLabelValues(lock).Observe(time.Since(start).Seconds())
}
