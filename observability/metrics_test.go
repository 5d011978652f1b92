package observability

import (
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"rocket/core/events"
	"rocket/crypto"
)

func TestModuleMetricsObserve(t *testing.T) {
	m := ModuleMetrics()
	before := testutil.ToFloat64(m.errors.WithLabelValues("rocket", "contribute", "409"))
	m.Observe("rocket", "contribute", 409, 5*time.Millisecond)
	m.Observe("rocket", "contribute", 200, time.Millisecond)
	require.Equal(t, before+1, testutil.ToFloat64(m.errors.WithLabelValues("rocket", "contribute", "409")))
	require.GreaterOrEqual(t, testutil.ToFloat64(m.requests.WithLabelValues("rocket", "contribute", "success")), 1.0)

	m.RecordThrottle("", "")
	require.GreaterOrEqual(t, testutil.ToFloat64(m.throttles.WithLabelValues("unknown", "unspecified")), 1.0)
}

func TestEventEmitterFeedsPoolMetrics(t *testing.T) {
	var usdc [20]byte
	usdc[19] = 0xA1
	label := labelAsset(crypto.FormatAccount(usdc))
	pools := Pools()
	contributedBefore := testutil.ToFloat64(pools.contributed.WithLabelValues(label))
	feesBefore := testutil.ToFloat64(pools.fees.WithLabelValues(label))
	claimsBefore := testutil.ToFloat64(pools.claims)

	emitter := Events()
	emitter.Emit(events.Contributed{Token: usdc, Amount: big.NewInt(1000), Fee: big.NewInt(200)})
	emitter.Emit(events.PoolRewardClaimed{Token: usdc, Amount: big.NewInt(500)})
	emitter.Emit(events.TokenTransfer{Token: usdc, Symbol: "usdc", Amount: big.NewInt(1)})

	require.Equal(t, contributedBefore+1000, testutil.ToFloat64(pools.contributed.WithLabelValues(label)))
	require.Equal(t, feesBefore+200, testutil.ToFloat64(pools.fees.WithLabelValues(label)))
	require.Equal(t, claimsBefore+1, testutil.ToFloat64(pools.claims))
	require.GreaterOrEqual(t, testutil.ToFloat64(emitter.transfers.WithLabelValues("USDC")), 1.0)
	require.GreaterOrEqual(t, testutil.ToFloat64(emitter.emitted.WithLabelValues(events.TypeContributed)), 1.0)
}

func TestBigToFloat(t *testing.T) {
	require.Zero(t, bigToFloat(nil))
	require.Zero(t, bigToFloat(big.NewInt(-5)))
	require.Equal(t, 42.0, bigToFloat(big.NewInt(42)))
}
