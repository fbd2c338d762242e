package promhook

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/tagcache"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	h, err := New(reg, "")
	require.NoError(t, err)

	h.Hit("a")
	h.Hit("b")
	h.Miss("c", tagcache.MissAbsent)
	h.Miss("d", tagcache.MissDecode)
	h.Miss("e", tagcache.MissDecode)
	h.StoreError("set", "a", errors.New("down"))
	h.Revalidated([]string{"product"}, 3)
	h.Revalidated([]string{"a", "b", "c", "d", "e", "f"}, 0)

	require.Equal(t, 2.0, testutil.ToFloat64(h.hits))
	require.Equal(t, 2.0, testutil.ToFloat64(h.misses.WithLabelValues("decode")))
	require.Equal(t, 1.0, testutil.ToFloat64(h.storeErrors.WithLabelValues("set")))
	require.Equal(t, 1.0, testutil.ToFloat64(h.revalidated.WithLabelValues("1")))
	require.Equal(t, 1.0, testutil.ToFloat64(h.revalidated.WithLabelValues("5+")))
	require.Equal(t, 3.0, testutil.ToFloat64(h.evicted))
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg, "x")
	require.NoError(t, err)
	_, err = New(reg, "x")
	require.Error(t, err)
}
