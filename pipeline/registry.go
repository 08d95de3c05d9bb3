package pipeline

import (
	"sync"

	"github.com/iitrpratibha/ml-wine-quality-classification/core/model"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/log"
	"github.com/iitrpratibha/ml-wine-quality-classification/preprocessing"
	"golang.org/x/sync/singleflight"
)

// Registry is a read-only, process-wide cache over a Store. Each artifact
// is loaded on first use; concurrent first requests for the same artifact
// share one load. Loaded artifacts are never evicted or reloaded. Failed
// loads are not cached, so an artifact written later is picked up by the
// next request.
type Registry struct {
	store *Store
	group singleflight.Group

	mu      sync.RWMutex
	summary *Summary
	scaler  *preprocessing.StandardScaler
	models  map[Algorithm]model.Classifier
	loads   int
}

// NewRegistry creates a registry over store.
func NewRegistry(store *Store) *Registry {
	return &Registry{store: store, models: make(map[Algorithm]model.Classifier)}
}

// Store returns the underlying store.
func (r *Registry) Store() *Store { return r.store }

// Summary returns the cached metrics summary.
func (r *Registry) Summary() (*Summary, error) {
	v, err := r.get("summary",
		func() interface{} {
			if r.summary == nil {
				return nil
			}
			return r.summary
		},
		func() (interface{}, error) { return r.store.LoadSummary() },
		func(v interface{}) { r.summary = v.(*Summary) },
	)
	if err != nil {
		return nil, err
	}
	return v.(*Summary), nil
}

// Scaler returns the cached fitted scaler.
func (r *Registry) Scaler() (*preprocessing.StandardScaler, error) {
	v, err := r.get("scaler",
		func() interface{} {
			if r.scaler == nil {
				return nil
			}
			return r.scaler
		},
		func() (interface{}, error) { return r.store.LoadScaler() },
		func(v interface{}) { r.scaler = v.(*preprocessing.StandardScaler) },
	)
	if err != nil {
		return nil, err
	}
	return v.(*preprocessing.StandardScaler), nil
}

// Model returns the cached classifier of algorithm a.
func (r *Registry) Model(a Algorithm) (model.Classifier, error) {
	v, err := r.get("model:"+a.Slug(),
		func() interface{} {
			if m, ok := r.models[a]; ok {
				return m
			}
			return nil
		},
		func() (interface{}, error) { return r.store.LoadModel(a) },
		func(v interface{}) { r.models[a] = v.(model.Classifier) },
	)
	if err != nil {
		return nil, err
	}
	return v.(model.Classifier), nil
}

// Loads returns how many artifacts have been read from the store.
func (r *Registry) Loads() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loads
}

// get is the single acquisition point of every cached artifact. cached and
// keep run under the registry lock; fetch runs at most once per key at a
// time.
func (r *Registry) get(key string, cached func() interface{}, fetch func() (interface{}, error), keep func(interface{})) (interface{}, error) {
	r.mu.RLock()
	v := cached()
	r.mu.RUnlock()
	if v != nil {
		return v, nil
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		r.mu.RLock()
		v := cached()
		r.mu.RUnlock()
		if v != nil {
			return v, nil
		}

		v, err := fetch()
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		keep(v)
		r.loads++
		r.mu.Unlock()
		log.GetLoggerWithName("registry").Debug("Artifact loaded", "artifact", key, log.PathKey, r.store.Dir())
		return v, nil
	})
	return v, err
}
