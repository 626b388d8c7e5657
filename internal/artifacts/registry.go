package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Registry downloads artifact files from a model-registry HTTP endpoint
// into the local artifacts directory before the bundle is loaded. It is
// optional; deployments that ship artifacts on disk never construct one.
type Registry struct {
	base string
	rest *resty.Client
}

func NewRegistry(base string, timeout time.Duration) *Registry {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(30 * time.Second)
	}
	return &Registry{base: base, rest: r}
}

// FetchBundle downloads both artifact files into dir, overwriting any
// existing copies. A non-2xx response or transport error aborts the
// fetch; nothing is written for the failed file.
func (r *Registry) FetchBundle(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifacts dir: %w", err)
	}

	for _, name := range []string{RegressionArtifact, ClassificationArtifact} {
		url := r.base + "/" + name
		resp, err := r.rest.R().Get(url)
		if err != nil {
			return fmt.Errorf("failed to fetch %s: %w", name, err)
		}
		if resp.IsError() {
			return fmt.Errorf("registry returned %d for %s", resp.StatusCode(), name)
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, resp.Body(), 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		log.Info().Str("url", url).Int("bytes", len(resp.Body())).Msg("artifact downloaded")
	}
	return nil
}
