// Package curseforge implements the CurseForge registry client.
package curseforge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"modsync/db"
	"modsync/mcversion"
	"modsync/registry"
)

const (
	curseforgeAPIURL = "https://api.curseforge.com/v1"
	defaultTimeout   = 30 * time.Second
)

// Client handles communication with the CurseForge API. Every request
// carries the x-api-key header; resolution fails fast upstream when no
// key is configured.
type Client struct {
	BaseURL    string
	APIKey     string
	UserAgent  string
	HTTPClient *http.Client
}

// NewClient creates a new CurseForge API client sharing the given
// HTTP client with concurrent sync tasks.
func NewClient(apiKey, userAgent string, httpClient *http.Client) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("CURSEFORGE_API_KEY is not configured")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		BaseURL:    curseforgeAPIURL,
		APIKey:     apiKey,
		UserAgent:  userAgent,
		HTTPClient: httpClient,
	}, nil
}

func (c *Client) makeRequest(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.APIKey)

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

// GetProject retrieves mod metadata, including the latest-files index
// scanned during resolution.
func (c *Client) GetProject(ctx context.Context, modID string) (*Project, error) {
	var envelope struct {
		Data Project `json:"data"`
	}
	if err := c.makeRequest(ctx, fmt.Sprintf("/mods/%s", modID), &envelope); err != nil {
		return nil, fmt.Errorf("failed to get mod %q: %w", modID, err)
	}
	return &envelope.Data, nil
}

// GetFileDetails retrieves the full details of one file of a mod.
func (c *Client) GetFileDetails(ctx context.Context, modID string, fileID int) (*FileDetails, error) {
	var envelope struct {
		Data FileDetails `json:"data"`
	}
	if err := c.makeRequest(ctx, fmt.Sprintf("/mods/%s/files/%d", modID, fileID), &envelope); err != nil {
		return nil, fmt.Errorf("failed to get file %d of mod %q: %w", fileID, modID, err)
	}
	return &envelope.Data, nil
}

// ResolveLatest fetches the project metadata once and scans its file
// index per fallback version. When the matched file is already the
// locally stored version the known index fields are reused, avoiding
// the file-details round trip.
func (c *Client) ResolveLatest(ctx context.Context, mod *db.Mod) (*registry.Descriptor, error) {
	project, err := c.GetProject(ctx, mod.APIModID)
	if err != nil {
		return nil, err
	}

	fallbacks := mcversion.Fallbacks(mod.MinecraftVersion)
	for _, gameVersion := range fallbacks {
		index := findIndexEntry(project.LatestFilesIndexes, gameVersion)
		if index == nil {
			continue
		}

		fileID := strconv.Itoa(index.FileID)
		if fileID == mod.VersionID {
			// Already the known version; the engine decides up-to-date
			// from the id and filename without another round trip.
			return &registry.Descriptor{
				VersionID: fileID,
				Filename:  index.Filename,
				Verify:    registry.VerifyAny,
			}, nil
		}

		details, err := c.GetFileDetails(ctx, mod.APIModID, index.FileID)
		if err != nil {
			return nil, err
		}

		// Any one declared MD5 matching is enough.
		var checksums []registry.Checksum
		for _, hash := range details.Hashes {
			if hash.Algo == hashAlgoMD5 {
				checksums = append(checksums, registry.Checksum{Algorithm: "md5", Value: hash.Value})
			}
		}

		return &registry.Descriptor{
			VersionID: fileID,
			URL:       details.DownloadURL,
			Filename:  details.FileName,
			Checksums: checksums,
			Verify:    registry.VerifyAny,
		}, nil
	}

	return nil, &registry.NoCompatibleVersionError{Mod: mod.DisplayName(), Tried: fallbacks}
}

// Download fetches the full file bytes from a resolved descriptor URL.
// The API key rides along; the CDN ignores it but file endpoints behind
// the API host require it.
func (c *Client) Download(ctx context.Context, downloadURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("x-api-key", c.APIKey)

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

func findIndexEntry(indexes []FileIndex, gameVersion string) *FileIndex {
	for i := range indexes {
		if indexes[i].GameVersion == gameVersion {
			return &indexes[i]
		}
	}
	return nil
}

// CurseForge hash algo ids.
const (
	hashAlgoSHA1 = 1
	hashAlgoMD5  = 2
)

// Project represents a CurseForge mod.
type Project struct {
	ID                 int         `json:"id"`
	Name               string      `json:"name"`
	Slug               string      `json:"slug"`
	LatestFilesIndexes []FileIndex `json:"latestFilesIndexes"`
}

// FileIndex is one entry of a mod's latest-files index.
type FileIndex struct {
	GameVersion string `json:"gameVersion"`
	FileID      int    `json:"fileId"`
	Filename    string `json:"filename"`
	ModLoader   int    `json:"modLoader"`
}

// FileDetails is the full description of one downloadable file.
type FileDetails struct {
	ID          int        `json:"id"`
	FileName    string     `json:"fileName"`
	DownloadURL string     `json:"downloadUrl"`
	FileLength  int64      `json:"fileLength"`
	Hashes      []FileHash `json:"hashes"`
}

// FileHash is a declared digest; Algo 1 is SHA-1, 2 is MD5.
type FileHash struct {
	Value string `json:"value"`
	Algo  int    `json:"algo"`
}
