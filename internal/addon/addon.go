package addon

// Type classifies where an installed addon came from.
type Type string

const (
	TypeOfficial  Type = "official"
	TypeCommunity Type = "community"
	TypeSubtitle  Type = "subtitle"
	TypeMetadata  Type = "metadata"
	TypeCustom    Type = "custom"
)

// Addon is an installed provider as persisted in the preference store.
type Addon struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	IsInstalled  bool      `json:"isInstalled"`
	IsEnabled    bool      `json:"isEnabled"`
	Type         Type      `json:"type"`
	URL          string    `json:"url"`
	Manifest     *Manifest `json:"manifest,omitempty"`
	TransportURL string    `json:"transportUrl"`
}

// BaseURL returns the manifest location the resource requests are built from.
func (a Addon) BaseURL() string {
	if a.TransportURL != "" {
		return a.TransportURL
	}
	return a.URL
}
