// Package fetch declares the remote-acquisition collaborator contracts
// (§4.8) and provides a Git-subprocess Fetcher plus an HTTP
// RegistryClient with backoff-based retry as reference implementations.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Fetcher ensures a local Git clone of a remote module and materializes
// a working tree at a requested revision (§4.8).
type Fetcher interface {
	// Fetch ensures url is cloned under repositoriesDir, idempotent if
	// already present, and returns the local repository path.
	Fetch(ctx context.Context, url, repositoriesDir string) (repoPath string, err error)

	// Checkout materializes a working tree at revision under modulesDir,
	// returning the resulting module path.
	Checkout(ctx context.Context, repoPath, revision, modulesDir string) (modulePath string, err error)
}

// RegistryClient resolves a name+version to a URL+revision by consulting
// registry indexes in order (§4.8).
type RegistryClient interface {
	Lookup(ctx context.Context, registries []string, name, version string) (url, revision string, err error)
}

// repoDirName derives a stable local directory name for a clone URL.
func repoDirName(url string) string {
	clean := url
	for _, sep := range []string{"://", "@"} {
		if i := lastIndexOf(clean, sep); i >= 0 {
			clean = clean[i+len(sep):]
		}
	}
	// scp-style "host:path" maps to the same "host/path" as a URL form.
	clean = strings.Replace(clean, ":", "/", 1)
	return filepath.ToSlash(clean)
}

func lastIndexOf(s, sub string) int {
	idx := -1
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			idx = i
		}
	}
	return idx
}

// GitFetcher shells out to the system git binary. It is the reference
// Fetcher; a production driver might instead embed a Git implementation,
// but the interface keeps that swap invisible to the resolver.
type GitFetcher struct {
	// GitPath overrides the git binary name, for testing. Empty means "git".
	GitPath string
}

func (g GitFetcher) git() string {
	if g.GitPath != "" {
		return g.GitPath
	}
	return "git"
}

func (g GitFetcher) Fetch(ctx context.Context, url, repositoriesDir string) (string, error) {
	repoPath := filepath.Join(repositoriesDir, repoDirName(url))
	if _, err := os.Stat(filepath.Join(repoPath, ".git")); err == nil {
		return repoPath, nil
	}
	if err := os.MkdirAll(filepath.Dir(repoPath), 0o755); err != nil {
		return "", fmt.Errorf("fetch: failed to create repositories dir: %w", err)
	}
	cmd := exec.CommandContext(ctx, g.git(), "clone", url, repoPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("fetch: git clone %s failed: %w: %s", url, err, out)
	}
	return repoPath, nil
}

func (g GitFetcher) Checkout(ctx context.Context, repoPath, revision, modulesDir string) (string, error) {
	modulePath := filepath.Join(modulesDir, revision)
	if _, err := os.Stat(modulePath); err == nil {
		return modulePath, nil
	}
	if err := os.MkdirAll(modulePath, 0o755); err != nil {
		return "", fmt.Errorf("fetch: failed to create module dir: %w", err)
	}
	cmd := exec.CommandContext(ctx, g.git(), "-C", repoPath, "worktree", "add", "--force", modulePath, revision)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("fetch: git checkout %s@%s failed: %w: %s", repoPath, revision, err, out)
	}
	return modulePath, nil
}

// registryIndex is the decoded shape of one registry's index document:
// name -> version -> {url, revision}.
type registryIndex map[string]map[string]struct {
	URL      string `json:"url"`
	Revision string `json:"revision"`
}

// HTTPRegistryClient fetches each registry's index over HTTP, retrying
// transient failures with exponential backoff before moving on to the
// next registry in order.
type HTTPRegistryClient struct {
	HTTPClient *http.Client
	MaxRetries uint64
}

func (c HTTPRegistryClient) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c HTTPRegistryClient) Lookup(ctx context.Context, registries []string, name, version string) (string, string, error) {
	for _, registryURL := range registries {
		idx, err := c.fetchIndex(ctx, registryURL)
		if err != nil {
			continue
		}
		versions, ok := idx[name]
		if !ok {
			continue
		}
		entry, ok := versions[version]
		if !ok {
			continue
		}
		return entry.URL, entry.Revision, nil
	}
	return "", "", fmt.Errorf("fetch: %s@%s not found in any registry", name, version)
}

func (c HTTPRegistryClient) fetchIndex(ctx context.Context, registryURL string) (registryIndex, error) {
	var idx registryIndex
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, registryURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.client().Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("registry %s returned %d", registryURL, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("registry %s returned %d", registryURL, resp.StatusCode))
		}
		return json.NewDecoder(resp.Body).Decode(&idx)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second
	retry := backoff.WithMaxRetries(bo, c.maxRetries())

	if err := backoff.Retry(op, backoff.WithContext(retry, ctx)); err != nil {
		return nil, err
	}
	return idx, nil
}

func (c HTTPRegistryClient) maxRetries() uint64 {
	if c.MaxRetries > 0 {
		return c.MaxRetries
	}
	return 3
}
