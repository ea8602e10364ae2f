package library

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/grabtree/grabtree/internal/cache"
	"github.com/grabtree/grabtree/internal/config"
	"github.com/grabtree/grabtree/internal/progress"
)

const searchLimit = 10

// Jellyfin implements Service against a Jellyfin-compatible HTTP API.
// Duplicate lookups and folder listings are cached so repeated downloads in
// one session do not hammer the server.
type Jellyfin struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	userID     string
	libraries  []string
	lookups    cache.Cache
}

// NewJellyfin builds a library service from the configuration. It returns
// nil when the integration is disabled or misconfigured; callers treat a nil
// service as "no library integration".
func NewJellyfin(cfg *config.Config) *Jellyfin {
	logger := config.GetLogger()

	if !cfg.Library.Enabled {
		return nil
	}
	if cfg.Library.ServerURL == "" || cfg.Library.APIKey == "" {
		logger.Warn().Msg("Library integration enabled but server_url or api_key is missing, disabling")
		return nil
	}

	ttl := time.Hour
	if cfg.Cache.TTL != "" {
		if parsed, err := time.ParseDuration(cfg.Cache.TTL); err != nil {
			logger.Warn().Err(err).Str("ttl", cfg.Cache.TTL).Msg("Invalid cache TTL, using default 1h")
		} else {
			ttl = parsed
		}
	}

	lookups, err := cache.New(cfg.Cache.Provider, cache.ProviderConfig{
		Size:          cfg.Cache.Size,
		TTL:           ttl,
		Logger:        &logger,
		RedisAddress:  cfg.Cache.RedisAddress,
		RedisPassword: cfg.Cache.RedisPassword,
		RedisDB:       cfg.Cache.RedisDB,
		Group:         "library-lookups",
	})
	if err != nil {
		logger.Warn().Err(err).Str("provider", cfg.Cache.Provider).Msg("Library lookup cache unavailable, continuing without it")
	}

	return &Jellyfin{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(cfg.Library.ServerURL, "/"),
		apiKey:     cfg.Library.APIKey,
		userID:     cfg.Library.UserID,
		libraries:  cfg.Library.Libraries,
		lookups:    lookups,
	}
}

// Close releases the lookup cache.
func (j *Jellyfin) Close() error {
	if j.lookups != nil {
		return j.lookups.Close()
	}
	return nil
}

// IsAvailable implements Service by pinging the server's system info
// endpoint.
func (j *Jellyfin) IsAvailable(ctx context.Context) bool {
	var info struct {
		ServerName string `json:"ServerName"`
		Version    string `json:"Version"`
	}
	if err := j.getJSON(ctx, "/System/Info", nil, &info); err != nil {
		logger := config.GetLogger()
		logger.Debug().Err(err).Msg("Library server unreachable")
		return false
	}
	return true
}

// CheckDuplicate implements Service. The code is preferred as the search
// term because it identifies the content exactly; the title is the fallback.
func (j *Jellyfin) CheckDuplicate(ctx context.Context, title, code string) *DuplicateCheckResult {
	logger := config.GetLogger()

	term := code
	if term == "" {
		term = title
	}
	if term == "" {
		return nil
	}

	cacheKey := "dup:" + term
	if j.lookups != nil {
		if data, ok := j.lookups.Get(cacheKey); ok {
			var cached DuplicateCheckResult
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached
			}
		}
	}

	items, err := j.searchItems(ctx, term)
	if err != nil {
		logger.Warn().Err(err).Str("term", term).Msg("Duplicate check failed, continuing without it")
		return nil
	}
	if len(items) == 0 {
		return nil
	}

	// Prefer a name match on the code over the server's relevance order.
	match := items[0]
	if code != "" {
		upper := strings.ToUpper(code)
		for _, candidate := range items {
			if strings.Contains(strings.ToUpper(candidate.Name), upper) {
				match = candidate
				break
			}
		}
	}

	result := &DuplicateCheckResult{
		Exists: true,
		Item: &Item{
			ID:   match.ID,
			Name: match.Name,
			Path: match.Path,
			Year: match.ProductionYear,
		},
		Quality: qualityInfo(match),
	}

	if j.lookups != nil {
		if data, err := json.Marshal(result); err == nil {
			j.lookups.Set(cacheKey, data)
		}
	}

	logger.Info().Str("name", match.Name).Str("term", term).Msg("Found existing library copy")
	return result
}

// GetLibraryFolders implements Service using the server's virtual folder
// listing. When a monitored library list is configured, other libraries are
// filtered out.
func (j *Jellyfin) GetLibraryFolders(ctx context.Context) map[string][]string {
	logger := config.GetLogger()

	const cacheKey = "folders"
	if j.lookups != nil {
		if data, ok := j.lookups.Get(cacheKey); ok {
			var cached map[string][]string
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached
			}
		}
	}

	var folders []virtualFolder
	if err := j.getJSON(ctx, "/Library/VirtualFolders", nil, &folders); err != nil {
		logger.Warn().Err(err).Msg("Failed to list library folders")
		return map[string][]string{}
	}

	result := make(map[string][]string, len(folders))
	for _, folder := range folders {
		if len(j.libraries) > 0 && !contains(j.libraries, folder.Name) {
			continue
		}
		result[folder.Name] = folder.Locations
	}

	if j.lookups != nil {
		if data, err := json.Marshal(result); err == nil {
			j.lookups.Set(cacheKey, data)
		}
	}
	return result
}

// MoveToLibrary implements Service. The destination folder must already
// exist; the file keeps its name.
func (j *Jellyfin) MoveToLibrary(ctx context.Context, sourcePath, destFolder string) bool {
	logger := config.GetLogger()

	info, err := os.Stat(sourcePath)
	if err != nil || !info.Mode().IsRegular() {
		logger.Error().Str("source", sourcePath).Msg("Library move source missing or not a regular file")
		return false
	}
	destInfo, err := os.Stat(destFolder)
	if err != nil || !destInfo.IsDir() {
		logger.Error().Str("dest", destFolder).Msg("Library folder missing or not a directory")
		return false
	}

	dest := filepath.Join(destFolder, filepath.Base(sourcePath))
	if err := relocate(sourcePath, dest); err != nil {
		logger.Error().Err(err).Str("source", sourcePath).Str("dest", dest).Msg("Library move failed")
		return false
	}

	logger.Info().Str("dest", dest).Msg("Moved file into library")
	return true
}

// RefreshLibrary implements Service by asking the server to rescan the
// named library.
func (j *Jellyfin) RefreshLibrary(ctx context.Context, name string) bool {
	logger := config.GetLogger()

	var folders []virtualFolder
	if err := j.getJSON(ctx, "/Library/VirtualFolders", nil, &folders); err != nil {
		logger.Warn().Err(err).Msg("Failed to list libraries for refresh")
		return false
	}

	for _, folder := range folders {
		if folder.Name != name {
			continue
		}
		if err := j.post(ctx, "/Items/"+folder.ItemID+"/Refresh"); err != nil {
			logger.Warn().Err(err).Str("library", name).Msg("Library refresh request failed")
			return false
		}
		logger.Info().Str("library", name).Msg("Requested library refresh")
		return true
	}

	logger.Warn().Str("library", name).Msg("No library with that name on the server")
	return false
}

// jfItem mirrors the fields of a Jellyfin item this client consumes.
type jfItem struct {
	ID             string          `json:"Id"`
	Name           string          `json:"Name"`
	Path           string          `json:"Path"`
	ProductionYear int             `json:"ProductionYear"`
	RunTimeTicks   int64           `json:"RunTimeTicks"`
	DateCreated    string          `json:"DateCreated"`
	MediaSources   []jfMediaSource `json:"MediaSources"`
}

type jfMediaSource struct {
	Size         int64           `json:"Size"`
	Bitrate      int64           `json:"Bitrate"`
	MediaStreams []jfMediaStream `json:"MediaStreams"`
}

type jfMediaStream struct {
	Type   string `json:"Type"`
	Width  int    `json:"Width"`
	Height int    `json:"Height"`
	Codec  string `json:"Codec"`
}

type itemsResponse struct {
	Items            []jfItem `json:"Items"`
	TotalRecordCount int      `json:"TotalRecordCount"`
}

type virtualFolder struct {
	Name      string   `json:"Name"`
	ItemID    string   `json:"ItemId"`
	Locations []string `json:"Locations"`
}

func (j *Jellyfin) searchItems(ctx context.Context, term string) ([]jfItem, error) {
	query := url.Values{}
	query.Set("searchTerm", term)
	query.Set("IncludeItemTypes", "Movie,Video")
	query.Set("Recursive", "true")
	query.Set("Fields", "Path,MediaSources,DateCreated")
	query.Set("Limit", fmt.Sprintf("%d", searchLimit))

	path := "/Items"
	if j.userID != "" {
		path = "/Users/" + j.userID + "/Items"
	}

	var resp itemsResponse
	if err := j.getJSON(ctx, path, query, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (j *Jellyfin) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	reqURL := j.baseURL + path
	if query != nil {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Emby-Token", j.apiKey)

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d from %s: %s", resp.StatusCode, path, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (j *Jellyfin) post(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("X-Emby-Token", j.apiKey)

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}
	return nil
}

// qualityInfo condenses an item's media sources into a display summary.
func qualityInfo(item jfItem) *QualityInfo {
	info := &QualityInfo{
		Path:      item.Path,
		AddedDate: item.DateCreated,
		Runtime:   fmt.Sprintf("%d min", item.RunTimeTicks/(10_000_000*60)),
	}

	if len(item.MediaSources) == 0 {
		return info
	}
	source := item.MediaSources[0]
	info.Size = progress.FormatBytes(source.Size)
	if source.Bitrate > 0 {
		info.Bitrate = fmt.Sprintf("%.1f Mbps", float64(source.Bitrate)/1_000_000)
	}
	for _, stream := range source.MediaStreams {
		if stream.Type != "Video" {
			continue
		}
		info.Resolution = fmt.Sprintf("%dx%d", stream.Width, stream.Height)
		info.Codec = stream.Codec
		break
	}
	return info
}

// relocate renames source to dest, falling back to copy-and-delete across
// filesystems.
func relocate(source, dest string) error {
	if err := os.Rename(source, dest); err == nil {
		return nil
	}

	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return err
	}
	return os.Remove(source)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
