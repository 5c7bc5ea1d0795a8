// Package modrinth implements the Modrinth registry client.
package modrinth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"modsync/db"
	"modsync/mcversion"
	"modsync/registry"
)

const (
	modrinthAPIURL = "https://api.modrinth.com/v2"
	defaultTimeout = 30 * time.Second
)

// Client handles communication with the Modrinth API.
type Client struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
}

// NewClient creates a new Modrinth API client. The HTTP client is
// shared with concurrent sync tasks and carries a finite timeout.
func NewClient(userAgent string, httpClient *http.Client) (*Client, error) {
	if userAgent == "" {
		return nil, fmt.Errorf("USERAGENT is not configured")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		BaseURL:    modrinthAPIURL,
		UserAgent:  userAgent,
		HTTPClient: httpClient,
	}, nil
}

func (c *Client) makeRequest(ctx context.Context, path string, queryParams url.Values, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if queryParams != nil {
		req.URL.RawQuery = queryParams.Encode()
	}

	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("api request failed: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode json response: %w", err)
	}
	return nil
}

// GetProjectVersions retrieves versions for a project, filtered by
// game version and loader.
func (c *Client) GetProjectVersions(ctx context.Context, projectID, gameVersion string, loader mcversion.Loader) ([]Version, error) {
	params := url.Values{}
	// The API expects JSON array strings for both filters.
	params.Add("game_versions", `["`+gameVersion+`"]`)
	params.Add("loaders", `["`+loaderName(loader)+`"]`)

	var versions []Version
	err := c.makeRequest(ctx, fmt.Sprintf("/project/%s/version", projectID), params, &versions)
	if err != nil {
		return nil, fmt.Errorf("failed to get project versions for %q: %w", projectID, err)
	}
	return versions, nil
}

// ResolveLatest walks the fallback version sequence and commits to the
// first game version with any compatible remote release, taking the
// release with the highest version number.
func (c *Client) ResolveLatest(ctx context.Context, mod *db.Mod) (*registry.Descriptor, error) {
	fallbacks := mcversion.Fallbacks(mod.MinecraftVersion)

	for _, gameVersion := range fallbacks {
		versions, err := c.GetProjectVersions(ctx, mod.APIModID, gameVersion, mod.Loader)
		if err != nil {
			return nil, err
		}
		if len(versions) == 0 {
			continue
		}

		sort.Slice(versions, func(i, j int) bool {
			return versions[i].VersionNumber > versions[j].VersionNumber
		})
		latest := versions[0]

		file := findPrimaryFile(latest)
		if file == nil {
			return nil, fmt.Errorf("version %s of %s has no files", latest.ID, mod.DisplayName())
		}

		// Both declared hashes must verify before the download commits.
		checksums := make([]registry.Checksum, 0, 2)
		for _, algorithm := range []string{"sha1", "sha512"} {
			if value, ok := file.Hashes[algorithm]; ok {
				checksums = append(checksums, registry.Checksum{Algorithm: algorithm, Value: value})
			}
		}

		return &registry.Descriptor{
			VersionID: latest.ID,
			URL:       file.URL,
			Filename:  file.Filename,
			Checksums: checksums,
			Verify:    registry.VerifyAll,
		}, nil
	}

	return nil, &registry.NoCompatibleVersionError{Mod: mod.DisplayName(), Tried: fallbacks}
}

// Download fetches the full file bytes from a resolved descriptor URL.
func (c *Client) Download(ctx context.Context, downloadURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/octet-stream")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to start download from %s: %w", downloadURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download failed: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read download body: %w", err)
	}
	return body, nil
}

// findPrimaryFile locates the primary file in a version, or the first
// file if no primary is marked.
func findPrimaryFile(v Version) *File {
	for i := range v.Files {
		if v.Files[i].Primary {
			return &v.Files[i]
		}
	}
	if len(v.Files) > 0 {
		return &v.Files[0]
	}
	return nil
}

func loaderName(l mcversion.Loader) string {
	switch l {
	case mcversion.Forge:
		return "forge"
	case mcversion.Quilt:
		return "quilt"
	default:
		return "fabric"
	}
}

// Version represents a Modrinth project version.
type Version struct {
	ID            string `json:"id"`
	ProjectID     string `json:"project_id"`
	Name          string `json:"name"`
	VersionNumber string `json:"version_number"`
	Files         []File `json:"files"`
}

// File represents a file within a Modrinth version.
type File struct {
	Filename string            `json:"filename"`
	URL      string            `json:"url"`
	Primary  bool              `json:"primary"`
	Size     int               `json:"size"`
	Hashes   map[string]string `json:"hashes"` // e.g. {"sha512": "...", "sha1": "..."}
}
