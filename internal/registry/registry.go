package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dbytex91/addonx/internal/addon"
	"github.com/dbytex91/addonx/internal/store"
	"github.com/dbytex91/addonx/internal/transport"
	"github.com/gofiber/fiber/v2/log"
)

const defaultManifestTimeout = 10 * time.Second

// Registry owns the installed addon list. It is the only writer; readers get copies.
type Registry struct {
	mu     sync.Mutex
	addons []addon.Addon

	prefs           store.Store
	transport       transport.Transport
	manifestTimeout time.Duration
	onChange        []func()
}

type Option func(*Registry)

// WithOnChange registers a hook run after every successful mutation.
func WithOnChange(fn func()) Option {
	return func(r *Registry) {
		r.onChange = append(r.onChange, fn)
	}
}

func WithManifestTimeout(timeout time.Duration) Option {
	return func(r *Registry) {
		r.manifestTimeout = timeout
	}
}

func New(prefs store.Store, tr transport.Transport, opts ...Option) *Registry {
	r := &Registry{
		prefs:           prefs,
		transport:       tr,
		manifestTimeout: defaultManifestTimeout,
	}

	for _, opt := range opts {
		opt(r)
	}

	r.addons = r.load()
	return r
}

func (r *Registry) load() []addon.Addon {
	raw, ok, err := r.prefs.Get(store.KeyAddons)
	if err != nil {
		log.Errorf("Failed to read the addon list: %v", err)
		return nil
	}
	if !ok || raw == "" {
		return nil
	}

	addons := []addon.Addon{}
	if err := json.Unmarshal([]byte(raw), &addons); err != nil {
		log.Errorf("Discarding unreadable addon list: %v", err)
		return nil
	}

	return addons
}

// List returns a normalized snapshot of the installed addons.
func (r *Registry) List() []addon.Addon {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Normalize(r.addons)
}

// Get returns one addon by id.
func (r *Registry) Get(id string) (addon.Addon, error) {
	for _, a := range r.List() {
		if a.ID == id {
			return a, nil
		}
	}
	return addon.Addon{}, fmt.Errorf("%w: %s", addon.ErrAddonNotFound, id)
}

// Add installs a custom addon from a user supplied URL. The manifest is fetched first; nothing
// is persisted when it can't be.
func (r *Registry) Add(ctx context.Context, rawURL string, displayName string) (addon.Addon, error) {
	manifestURL, err := NormalizeURL(rawURL)
	if err != nil {
		return addon.Addon{}, err
	}

	manifest, err := r.fetchManifest(ctx, manifestURL)
	if err != nil {
		return addon.Addon{}, err
	}

	name := displayName
	if name == "" {
		name = manifest.Name
	}
	installed := addon.Addon{
		ID:           DeriveID(manifest.ID, manifestURL),
		Name:         name,
		Version:      manifest.Version,
		IsInstalled:  true,
		IsEnabled:    true,
		Type:         addon.TypeCustom,
		URL:          manifestURL,
		Manifest:     manifest,
		TransportURL: manifestURL,
	}

	err = r.mutate(func(addons []addon.Addon) ([]addon.Addon, error) {
		idx := slices.IndexFunc(addons, func(a addon.Addon) bool { return a.ID == installed.ID })
		if idx >= 0 {
			log.Infof("Replacing addon %s (%s)", installed.Name, manifestURL)
			addons[idx] = installed
			return addons, nil
		}

		log.Infof("Installed addon %s (%s)", installed.Name, manifestURL)
		return append(addons, installed), nil
	})
	if err != nil {
		return addon.Addon{}, err
	}

	return installed, nil
}

func (r *Registry) fetchManifest(ctx context.Context, manifestURL string) (*addon.Manifest, error) {
	resp, err := r.transport.Get(ctx, transport.Request{
		URL:     manifestURL,
		Headers: map[string]string{"Accept": "application/json"},
		Timeout: r.manifestTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", addon.ErrManifestFetchFailed, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: %s answered %d", addon.ErrManifestFetchFailed, manifestURL, resp.StatusCode)
	}

	manifest := &addon.Manifest{}
	if err := json.Unmarshal(resp.Body, manifest); err != nil {
		return nil, fmt.Errorf("%w: malformed manifest: %v", addon.ErrManifestFetchFailed, err)
	}
	if manifest.ID == "" || manifest.Name == "" {
		return nil, fmt.Errorf("%w: manifest without id or name", addon.ErrManifestFetchFailed)
	}

	return manifest, nil
}

func (r *Registry) Remove(id string) error {
	if id == BuiltinSubtitlesID {
		return addon.ErrReservedAddon
	}

	return r.mutate(func(addons []addon.Addon) ([]addon.Addon, error) {
		idx := slices.IndexFunc(addons, func(a addon.Addon) bool { return a.ID == id })
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", addon.ErrAddonNotFound, id)
		}
		return slices.Delete(addons, idx, idx+1), nil
	})
}

// Toggle flips the enabled flag and returns the updated addon.
func (r *Registry) Toggle(id string) (addon.Addon, error) {
	if id == BuiltinSubtitlesID {
		return addon.Addon{}, addon.ErrReservedAddon
	}

	var toggled addon.Addon
	err := r.mutate(func(addons []addon.Addon) ([]addon.Addon, error) {
		idx := slices.IndexFunc(addons, func(a addon.Addon) bool { return a.ID == id })
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", addon.ErrAddonNotFound, id)
		}
		addons[idx].IsEnabled = !addons[idx].IsEnabled
		toggled = addons[idx]
		return addons, nil
	})

	return toggled, err
}

// ReplaceAll swaps the whole list, e.g. after a restore or a reorder.
func (r *Registry) ReplaceAll(addons []addon.Addon) error {
	return r.mutate(func([]addon.Addon) ([]addon.Addon, error) {
		return slices.Clone(addons), nil
	})
}

// mutate runs fn on a normalized copy, persists the outcome and fires the change hooks.
func (r *Registry) mutate(fn func([]addon.Addon) ([]addon.Addon, error)) error {
	r.mu.Lock()
	next, err := fn(Normalize(r.addons))
	if err != nil {
		r.mu.Unlock()
		return err
	}
	next = Normalize(next)

	raw, err := json.Marshal(next)
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("failed to encode addon list: %w", err)
	}
	if err := r.prefs.Set(store.KeyAddons, string(raw)); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("failed to persist addon list: %w", err)
	}
	r.addons = next
	hooks := slices.Clone(r.onChange)
	r.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}
	return nil
}
