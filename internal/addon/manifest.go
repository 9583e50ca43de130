package addon

import (
	"encoding/json"
	"slices"
)

// ContentType refers to https://github.com/Stremio/stremio-addon-sdk/blob/master/docs/api/responses/content.types.md
type ContentType string

const (
	ContentTypeMovie  ContentType = "movie"
	ContentTypeSeries ContentType = "series"
)

// Resource refers to https://github.com/Stremio/stremio-addon-sdk/blob/master/docs/api/responses/manifest.md#filtering-properties
type Resource string

const (
	ResourceStream    Resource = "stream"
	ResourceSubtitles Resource = "subtitles"
)

type Manifest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`

	ResourceItems []ResourceItem `json:"resources,omitempty"`

	Types    []ContentType `json:"types,omitempty"`
	Catalogs []CatalogItem `json:"catalogs,omitempty"`

	IDPrefixes    []string       `json:"idPrefixes,omitempty"`
	Logo          string         `json:"logo,omitempty"`
	BehaviorHints *BehaviorHints `json:"behaviorHints,omitempty"`
}

// ResourceItem describes one resource of a manifest. Providers publish it either as a bare
// string ("stream") or as an object; both decode into this type. A bare string inherits the
// manifest level types and id prefixes.
type ResourceItem struct {
	Name  Resource      `json:"name"`
	Types []ContentType `json:"types,omitempty"`

	IDPrefixes []string `json:"idPrefixes,omitempty"`

	short bool
}

func (r *ResourceItem) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*r = ResourceItem{Name: Resource(name), short: true}
		return nil
	}

	type plain ResourceItem
	var item plain
	if err := json.Unmarshal(data, &item); err != nil {
		return err
	}
	*r = ResourceItem(item)
	return nil
}

func (r ResourceItem) MarshalJSON() ([]byte, error) {
	if r.short {
		return json.Marshal(string(r.Name))
	}

	type plain ResourceItem
	return json.Marshal(plain(r))
}

type BehaviorHints struct {
	Adult                 bool `json:"adult,omitempty"`
	P2P                   bool `json:"p2p,omitempty"`
	Configurable          bool `json:"configurable,omitempty"`
	ConfigurationRequired bool `json:"configurationRequired,omitempty"`
}

// CatalogItem represents a catalog.
type CatalogItem struct {
	Type ContentType `json:"type"`
	ID   string      `json:"id"`
	Name string      `json:"name,omitempty"`

	Extra []ExtraItem `json:"extra,omitempty"`
}

type ExtraItem struct {
	Name string `json:"name"`

	IsRequired   bool     `json:"isRequired,omitempty"`
	Options      []string `json:"options,omitempty"`
	OptionsLimit int      `json:"optionsLimit,omitempty"`
}

// Resource returns the declared resources with the given name. Short-form resources are
// expanded with the manifest level types and id prefixes.
func (m *Manifest) Resource(name Resource) []ResourceItem {
	if m == nil {
		return nil
	}

	items := []ResourceItem{}
	for _, item := range m.ResourceItems {
		if item.Name != name {
			continue
		}
		if item.short {
			item.Types = m.Types
			item.IDPrefixes = m.IDPrefixes
		}
		items = append(items, item)
	}
	return items
}

// HasResources reports whether the manifest declares any resource at all.
func (m *Manifest) HasResources() bool {
	return m != nil && len(m.ResourceItems) > 0
}

func (r ResourceItem) SupportsType(t ContentType) bool {
	if len(r.Types) == 0 {
		return true
	}
	return slices.Contains(r.Types, t) ||
		slices.Contains(r.Types, ContentTypeMovie) ||
		slices.Contains(r.Types, ContentTypeSeries)
}
