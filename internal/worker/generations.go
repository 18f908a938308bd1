package worker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"offline_worker/internal/cache"
	"offline_worker/internal/obs"
)

// GenerationManager owns the static and dynamic generations of one version.
type GenerationManager struct {
	storage       cache.Storage
	client        *http.Client
	origin        *url.URL
	manifest      []string
	staticName    string
	dynamicName   string
	roles         []string
	deleteForeign bool
	metrics       *obs.Metrics
	log           *logrus.Entry
}

type manifestAsset struct {
	key   string
	entry cache.Entry
}

// Install fetches every manifest URL and writes them to the static
// generation. Nothing is written unless every fetch returned 200.
func (g *GenerationManager) Install(ctx context.Context) (cache.Generation, error) {
	assets := make([]manifestAsset, 0, len(g.manifest))
	for _, raw := range g.manifest {
		target, err := resolve(g.origin, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: manifest entry %q: %w", ErrInstallFailed, raw, err)
		}
		asset, err := g.fetchAsset(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInstallFailed, err)
		}
		assets = append(assets, asset)
	}

	gen, err := g.storage.Open(ctx, g.staticName)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrInstallFailed, g.staticName, err)
	}
	for _, asset := range assets {
		if err := gen.Put(ctx, asset.key, asset.entry); err != nil {
			if _, delErr := g.storage.Delete(context.WithoutCancel(ctx), g.staticName); delErr != nil {
				g.log.WithError(delErr).WithField("generation", g.staticName).Warn("discard partial install failed")
			}
			g.metrics.RecordCacheStoreFail("static")
			return nil, fmt.Errorf("%w: store %s: %w", ErrInstallFailed, asset.key, err)
		}
	}
	return gen, nil
}

func (g *GenerationManager) fetchAsset(ctx context.Context, target *url.URL) (manifestAsset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return manifestAsset{}, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return manifestAsset{}, &NetworkError{URL: target.String(), Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return manifestAsset{}, fmt.Errorf("fetch %s: status %d", target, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return manifestAsset{}, &NetworkError{URL: target.String(), Err: err}
	}
	return manifestAsset{key: cache.BuildKey(req), entry: cache.NewEntry(resp, body)}, nil
}

// Activate converges storage to exactly the current static and dynamic
// generations. Deletion failures are logged and skipped.
func (g *GenerationManager) Activate(ctx context.Context) (cache.Generation, cache.Generation, error) {
	names, err := g.storage.Names(ctx)
	if err != nil {
		g.metrics.RecordGenerationDelete("error")
		g.log.WithError(err).Warn("list generations failed, skipping cleanup")
	}
	for _, name := range names {
		if name == g.staticName || name == g.dynamicName {
			continue
		}
		if !g.deleteForeign && !g.owns(name) {
			continue
		}
		if _, err := g.storage.Delete(ctx, name); err != nil {
			g.metrics.RecordGenerationDelete("error")
			g.log.WithError(err).WithField("generation", name).Warn("delete stale generation failed")
			continue
		}
		g.metrics.RecordGenerationDelete("ok")
		g.log.WithField("generation", name).Info("deleted stale generation")
	}

	static, err := g.storage.Open(ctx, g.staticName)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", g.staticName, err)
	}
	dynamic, err := g.storage.Open(ctx, g.dynamicName)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", g.dynamicName, err)
	}
	return static, dynamic, nil
}

func (g *GenerationManager) owns(name string) bool {
	for _, role := range g.roles {
		if strings.HasPrefix(name, role+"-") {
			return true
		}
	}
	return false
}

func resolve(origin *url.URL, raw string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	return origin.ResolveReference(ref), nil
}
