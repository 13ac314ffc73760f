package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounters(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())

	r.RecordTrade("long", true)
	r.RecordTrade("long", true)
	r.RecordRejection("risk_reward")
	r.SetGauge("loss_streak", 2)
	r.RecordLastPrice("BTC-USDT-SWAP", 64000)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.trades.WithLabelValues("long", "dry_run")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rejections.WithLabelValues("risk_reward")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.gauges.WithLabelValues("loss_streak")))
	assert.Equal(t, 64000.0, testutil.ToFloat64(r.lastPrice.WithLabelValues("BTC-USDT-SWAP")))
}
