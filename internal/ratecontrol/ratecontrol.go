package ratecontrol

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/praxis-labs/deepresearch/internal/metrics"
)

type config struct {
	RateLimits struct {
		DefaultRPM        int `yaml:"default_rpm"`
		ProviderOverrides map[string]struct {
			RPM int `yaml:"rpm"`
		} `yaml:"provider_overrides"`
	} `yaml:"rate_limits"`
}

var defaultPaths = []string{
	os.Getenv("MODELS_CONFIG_PATH"),
	"/app/config/models.yaml",
	"./config/models.yaml",
	"../../config/models.yaml",
}

// Limiter bounds the request rate toward one upstream provider.
// A zero or missing RPM means unlimited.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter builds a limiter allowing rpm requests per minute with a burst
// of one. rpm <= 0 disables limiting.
func NewLimiter(rpm int) *Limiter {
	if rpm <= 0 {
		return &Limiter{}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1)}
}

// Wait blocks until a request slot is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.limiter == nil {
		return nil
	}
	if l.limiter.Allow() {
		return nil
	}
	metrics.RateLimitWaits.Inc()
	return l.limiter.Wait(ctx)
}

var (
	mu     sync.RWMutex
	loaded *config
	once   sync.Once
)

func load() *config {
	once.Do(func() {
		var cfg config
		for _, p := range defaultPaths {
			if p == "" {
				continue
			}
			data, err := os.ReadFile(p)
			if err != nil {
				continue
			}
			var tmp config
			if err := yaml.Unmarshal(data, &tmp); err != nil {
				continue
			}
			cfg = tmp
			break
		}
		if cfg.RateLimits.DefaultRPM == 0 && len(cfg.RateLimits.ProviderOverrides) == 0 {
			if path, ok := findUpConfig(); ok {
				if data, err := os.ReadFile(path); err == nil {
					var tmp config
					if err := yaml.Unmarshal(data, &tmp); err == nil {
						cfg = tmp
					}
				}
			}
		}
		mu.Lock()
		loaded = &cfg
		mu.Unlock()
	})
	mu.RLock()
	defer mu.RUnlock()
	return loaded
}

func findUpConfig() (string, bool) {
	wd, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for i := 0; i < 6; i++ {
		cand := filepath.Join(wd, "config", "models.yaml")
		if _, err := os.Stat(cand); err == nil {
			return cand, true
		}
		wd = filepath.Dir(wd)
	}
	return "", false
}

// RPMForProvider returns the configured requests-per-minute budget for a
// provider, falling back to the default. 0 means unlimited.
func RPMForProvider(provider string) int {
	cfg := load()
	if cfg == nil {
		return 0
	}
	if cfg.RateLimits.ProviderOverrides != nil {
		key := strings.ToLower(strings.TrimSpace(provider))
		if override, ok := cfg.RateLimits.ProviderOverrides[key]; ok && override.RPM > 0 {
			return override.RPM
		}
	}
	return cfg.RateLimits.DefaultRPM
}

// LimiterForProvider builds a limiter from the yaml-configured budget.
func LimiterForProvider(provider string) *Limiter {
	return NewLimiter(RPMForProvider(provider))
}
