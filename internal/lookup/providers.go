package lookup

import (
	"fmt"

	"github.com/stellarlinkco/leakguard/internal/classify"
	"github.com/stellarlinkco/leakguard/internal/config"
)

// NewProviders builds one Checker per checkable entity kind, wrapped in a
// shared verdict cache when caching is enabled.
func NewProviders(cfg config.LookupConfig) (map[classify.Kind]Checker, error) {
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	client := NewHTTPClient(timeout)

	providers := map[classify.Kind]Checker{
		classify.KindEmail: NewLeakCheck(cfg.LeakCheck, classify.KindEmail, client),
		classify.KindPhone: NewLeakCheck(cfg.LeakCheck, classify.KindPhone, client),
		classify.KindURL:   NewVirusTotal(cfg.VirusTotal, client),
		classify.KindIP:    NewIPQualityScore(cfg.IPQS, client),
	}

	if !cfg.Cache.Enabled {
		return providers, nil
	}
	ttl, err := cfg.Cache.TTLDuration()
	if err != nil {
		return nil, fmt.Errorf("cache ttl: %w", err)
	}
	cache := NewVerdictCache(cfg.Cache.SizeMB, ttl)
	for kind, checker := range providers {
		providers[kind] = NewCachedChecker(checker, kind.String(), cache)
	}
	return providers, nil
}
