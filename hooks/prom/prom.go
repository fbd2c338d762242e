// Package promhook exports tagcache hook events as Prometheus counters.
package promhook

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/tagcache"
)

type Hooks struct {
	hits        prometheus.Counter
	misses      *prometheus.CounterVec
	storeErrors *prometheus.CounterVec
	indexDrops  prometheus.Counter
	revalidated *prometheus.CounterVec
	evicted     prometheus.Counter
}

var _ tagcache.Hooks = (*Hooks)(nil)

// New registers the collectors on reg under the given namespace
// (default "tagcache").
func New(reg prometheus.Registerer, namespace string) (*Hooks, error) {
	if namespace == "" {
		namespace = "tagcache"
	}
	h := &Hooks{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "hits_total",
			Help: "Cache hits.",
		}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "misses_total",
			Help: "Cache misses by reason.",
		}, []string{"reason"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "store_errors_total",
			Help: "Store failures on the write path by operation.",
		}, []string{"op"}),
		indexDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "index_drop_errors_total",
			Help: "Evicted entries whose tag rows could not be dropped.",
		}),
		revalidated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "revalidations_total",
			Help: "RevalidateByTag calls by number of tags.",
		}, []string{"tags"}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "evicted_total",
			Help: "Entries evicted by tag revalidation.",
		}),
	}
	for _, c := range []prometheus.Collector{h.hits, h.misses, h.storeErrors, h.indexDrops, h.revalidated, h.evicted} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) Hit(string) { h.hits.Inc() }

func (h *Hooks) Miss(_ string, r tagcache.MissReason) { h.misses.WithLabelValues(string(r)).Inc() }

func (h *Hooks) StoreError(op, _ string, _ error) { h.storeErrors.WithLabelValues(op).Inc() }

func (h *Hooks) IndexDropError(string, error) { h.indexDrops.Inc() }

func (h *Hooks) Revalidated(tags []string, evicted int) {
	// label by count, tag names are unbounded
	n := len(tags)
	if n > 5 {
		n = 5
	}
	label := strconv.Itoa(n)
	if n == 5 {
		label = "5+"
	}
	h.revalidated.WithLabelValues(label).Inc()
	h.evicted.Add(float64(evicted))
}
