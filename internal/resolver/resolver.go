// Package resolver implements the Resolver (C6): serving the deterministic,
// cache-backed config response for a given (org, app, dimensions, toss),
// with experiment variants pinned and file references materialised to
// downloadable URLs, per §4.6.
package resolver

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/skyline-ota/releasectl/internal/domain"
	"github.com/skyline-ota/releasectl/internal/domainerrors"
)

// Experiments resolves the applicable experiment variants and the final
// merged config for a request context (§6 applicable_variants,
// get_resolved_config).
type Experiments interface {
	ApplicableVariants(org, app string, context map[string]any, toss int) ([]string, error)
	GetResolvedConfig(org, app string, context map[string]any) (map[string]any, error)
}

// Files resolves the file references embedded in a resolved config to
// their downloadable {url, checksum} in a single batched call, rather
// than one round trip per reference.
type Files interface {
	ResolveMany(org, app string, refs []domain.FileRef) (map[domain.FileRef]domain.File, error)
}

// Cache is the narrow cache contract the resolver depends on; satisfied by
// internal/resolvercache's Redis- or LRU-backed implementations.
type Cache interface {
	Get(key string) (map[string]any, bool)
	Set(key string, value map[string]any)
}

// Resolver serves resolved configuration payloads.
type Resolver struct {
	experiments Experiments
	files       Files
	cache       Cache
}

// New builds a Resolver. cache may be nil to disable caching.
func New(experiments Experiments, files Files, cache Cache) *Resolver {
	return &Resolver{experiments: experiments, files: files, cache: cache}
}

// Serve implements §4.6 serve(org, app, dimensions, toss): pins the
// computed applicable variants as the variantIds pseudo-dimension before
// resolving, extracts the package/config fields from the resolved config,
// and materialises every embedded file reference to {file_path, url,
// checksum} via a single multi-key query against the File store. A file
// that cannot be resolved yields empty-string url/checksum in place
// rather than failing the whole request.
func (r *Resolver) Serve(org, app string, dimensions map[string]string, toss int) (map[string]any, error) {
	key := cacheKey(org, app, dimensions, toss)

	if r.cache != nil {
		if cached, ok := r.cache.Get(key); ok {
			return cached, nil
		}
	}

	context := make(map[string]any, len(dimensions)+1)
	for k, v := range dimensions {
		context[k] = v
	}

	variants, err := r.experiments.ApplicableVariants(org, app, context, toss)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}

	// Pin the applicable variants as the variantIds pseudo-dimension so
	// the resolved config honors in-flight experiments.
	context["variantIds"] = variants

	resolved, err := r.experiments.GetResolvedConfig(org, app, context)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}

	important := decodeFileRefs(resolved["package.important"])
	lazy := decodeFileRefs(resolved["package.lazy"])
	resources := decodeFileRefs(resolved["resources"])
	var index *domain.FileRef
	if ref, ok := decodeFileRef(resolved["package.index"]); ok {
		index = &ref
	}

	all := make([]domain.FileRef, 0, len(important)+len(lazy)+len(resources)+1)
	all = append(all, important...)
	all = append(all, lazy...)
	all = append(all, resources...)
	if index != nil {
		all = append(all, *index)
	}
	files, err := r.files.ResolveMany(org, app, all)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, err)
	}

	payload := make(map[string]any, len(resolved)+3)
	for k, v := range resolved {
		payload[k] = v
	}
	payload["applicable_variants"] = variants

	pkg := map[string]any{
		"version":    resolved["package.version"],
		"important":  materializeAll(important, files),
		"lazy":       materializeAll(lazy, files),
		"properties": nestedProperties(resolved, "package.properties"),
	}
	if index != nil {
		pkg["index"] = materialize(*index, files)
	}
	payload["package"] = pkg
	payload["resources"] = materializeAll(resources, files)
	payload["config"] = map[string]any{
		"version":                resolved["config.version"],
		"boot_timeout":           resolved["config.boot_timeout"],
		"release_config_timeout": resolved["config.release_config_timeout"],
		"properties":             nestedProperties(resolved, "config.properties"),
	}

	if r.cache != nil {
		r.cache.Set(key, payload)
	}
	return payload, nil
}

// decodeFileRef recovers a single domain.FileRef from a resolved config
// value that round-tripped through the config service as JSON.
func decodeFileRef(v any) (domain.FileRef, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return domain.FileRef{}, false
	}
	path, _ := m["FilePath"].(string)
	if path == "" {
		return domain.FileRef{}, false
	}
	version, _ := m["Version"].(float64)
	return domain.FileRef{FilePath: path, Version: int(version)}, true
}

func decodeFileRefs(v any) []domain.FileRef {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]domain.FileRef, 0, len(list))
	for _, item := range list {
		if ref, ok := decodeFileRef(item); ok {
			out = append(out, ref)
		}
	}
	return out
}

// materialize resolves a single file reference; a miss yields empty-string
// url/checksum in place rather than dropping the entry or failing the call.
func materialize(ref domain.FileRef, files map[domain.FileRef]domain.File) map[string]any {
	out := map[string]any{"file_path": ref.FilePath}
	if f, ok := files[ref]; ok {
		out["url"] = f.URL
		out["checksum"] = f.Checksum
	} else {
		out["url"] = ""
		out["checksum"] = ""
	}
	return out
}

func materializeAll(refs []domain.FileRef, files map[domain.FileRef]domain.File) []map[string]any {
	out := make([]map[string]any, len(refs))
	for i, ref := range refs {
		out[i] = materialize(ref, files)
	}
	return out
}

// nestedProperties rebuilds a nested property map from the dotted leaf
// keys the config service stores, the "dotted→nested" response
// reconstruction described alongside the flat-override-key convention.
func nestedProperties(resolved map[string]any, prefix string) map[string]any {
	match := prefix + "."
	out := map[string]any{}
	for k, v := range resolved {
		if name, ok := strings.CutPrefix(k, match); ok {
			out[name] = v
		}
	}
	return out
}

// cacheKey is a deterministic digest of the request tuple: dimensions are
// sorted by key before hashing so map iteration order never affects it.
func cacheKey(org, app string, dimensions map[string]string, toss int) string {
	keys := make([]string, 0, len(dimensions))
	for k := range dimensions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([][2]string, 0, len(keys))
	for _, k := range keys {
		ordered = append(ordered, [2]string{k, dimensions[k]})
	}

	payload, _ := json.Marshal(struct {
		Org, App   string
		Dimensions [][2]string
		Toss       int
	}{org, app, ordered, toss})

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
