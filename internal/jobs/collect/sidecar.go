package collect

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sidecar is the metadata file dropped next to an inbox video.
type Sidecar struct {
	Title     string `json:"title"`
	Platform  string `json:"platform,omitempty"`
	Views     int    `json:"views,omitempty"`
	URL       string `json:"url,omitempty"`
	Subreddit string `json:"subreddit,omitempty"`
}

// SidecarPath returns inbox/<id>.json.
func SidecarPath(inbox, id string) string {
	return filepath.Join(inbox, id+".json")
}

// ReadSidecar loads the metadata for id. A missing file returns ok=false
// without error.
func ReadSidecar(inbox, id string) (Sidecar, bool, error) {
	var meta Sidecar
	data, err := os.ReadFile(SidecarPath(inbox, id))
	if os.IsNotExist(err) {
		return meta, false, nil
	}
	if err != nil {
		return meta, false, fmt.Errorf("read sidecar: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, false, fmt.Errorf("decode sidecar %s: %w", id, err)
	}
	meta.Title = strings.TrimSpace(meta.Title)
	return meta, true, nil
}

// WriteSidecar stores meta as inbox/<id>.json, replacing any previous file.
func WriteSidecar(inbox, id string, meta Sidecar) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode sidecar: %w", err)
	}
	path := SidecarPath(inbox, id)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}
