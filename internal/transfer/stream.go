package transfer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/failsafe-go/failsafe-go"

	"github.com/grabtree/grabtree/internal/config"
	"github.com/grabtree/grabtree/internal/metrics"
	"github.com/grabtree/grabtree/internal/models"
	"github.com/grabtree/grabtree/internal/naming"
)

// FetchStream implements StreamFetcher. It downloads the playlist, fetches
// every segment with bounded concurrency, and merges them in playlist order
// into dest. Segments land in a scratch directory derived from the playlist
// content hash, so a re-run of an interrupted transfer reuses completed
// segments.
func (c *Client) FetchStream(ctx context.Context, playlistURL string, headers map[string]string, dest string, sink models.ProgressSink) error {
	logger := config.GetLogger()

	playlist, err := c.fetchPlaylist(ctx, playlistURL, headers)
	if err != nil {
		return fmt.Errorf("fetching playlist: %w", err)
	}

	segments, err := parsePlaylist(playlist, playlistURL)
	if err != nil {
		return err
	}
	logger.Info().Int("segments", len(segments)).Str("dest", dest).Msg("Fetching stream segments")

	scratchDir := scratchDirFor(dest, playlist)
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return fmt.Errorf("creating segment directory: %w", err)
	}

	if err := c.fetchSegments(ctx, segments, headers, scratchDir, sink); err != nil {
		return err
	}

	if sink != nil {
		sink(models.ProgressInfo{StatusMessage: "merging segments"})
	}
	written, err := mergeSegments(scratchDir, len(segments), dest)
	if err != nil {
		return err
	}
	metrics.DownloadedBytesTotal.Add(float64(written))

	if err := os.RemoveAll(scratchDir); err != nil {
		logger.Warn().Err(err).Str("dir", scratchDir).Msg("Failed to remove segment directory")
	}
	return nil
}

func (c *Client) fetchPlaylist(ctx context.Context, playlistURL string, headers map[string]string) (string, error) {
	resp, err := c.get(ctx, playlistURL, headers)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading playlist: %w", err)
	}
	return string(body), nil
}

// parsePlaylist extracts segment URLs from an m3u8 document, resolving
// relative URIs against the playlist URL.
func parsePlaylist(playlist, playlistURL string) ([]string, error) {
	var segments []string
	scanner := bufio.NewScanner(strings.NewReader(playlist))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		resolved, err := resolveSegmentURL(playlistURL, line)
		if err != nil {
			return nil, err
		}
		segments = append(segments, resolved)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("playlist %s contains no segments", playlistURL)
	}
	return segments, nil
}

// fetchSegments downloads all segments with at most c.concurrency in flight.
// Already-present segment files are skipped. The first failure cancels the
// remaining work.
func (c *Client) fetchSegments(ctx context.Context, segments []string, headers map[string]string, scratchDir string, sink models.ProgressSink) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
		firstErr  error
	)
	sem := make(chan struct{}, c.concurrency)

	for i, segmentURL := range segments {
		select {
		case <-ctx.Done():
		case sem <- struct{}{}:
			wg.Add(1)
			go func(index int, segmentURL string) {
				defer wg.Done()
				defer func() { <-sem }()

				err := c.fetchSegment(ctx, segmentURL, headers, segmentPath(scratchDir, index))

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if firstErr == nil {
						firstErr = fmt.Errorf("segment %d: %w", index, err)
					}
					cancel()
					return
				}
				completed++
				if sink != nil {
					sink(models.ProgressInfo{
						Downloaded:    int64(completed),
						TotalSize:     int64(len(segments)),
						StatusMessage: "fetching segments",
					})
				}
			}(i, segmentURL)
		}
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

func (c *Client) fetchSegment(ctx context.Context, segmentURL string, headers map[string]string, path string) error {
	// Reuse segments completed by a previous interrupted run.
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return nil
	}

	return failsafe.With[any](c.retry).WithContext(ctx).Run(func() error {
		resp, err := c.get(ctx, segmentURL, headers)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		tmp := path + ".part"
		out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, resp.Body); err != nil {
			out.Close()
			os.Remove(tmp)
			return err
		}
		if err := out.Close(); err != nil {
			os.Remove(tmp)
			return err
		}
		return os.Rename(tmp, path)
	})
}

// scratchDirFor derives the segment scratch directory from the destination
// and the playlist content, so the same playlist always maps to the same
// directory across runs.
func scratchDirFor(dest, playlist string) string {
	return fmt.Sprintf("%s_segments_%s", dest, naming.Hash(playlist)[:12])
}

func segmentPath(scratchDir string, index int) string {
	return filepath.Join(scratchDir, fmt.Sprintf("segment_%06d.ts", index))
}

// mergeSegments concatenates the segment files in order into dest and
// returns the number of bytes written.
func mergeSegments(scratchDir string, count int, dest string) (int64, error) {
	tmp := dest + ".part"
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("creating merge target: %w", err)
	}

	var written int64
	for i := 0; i < count; i++ {
		in, err := os.Open(segmentPath(scratchDir, i))
		if err != nil {
			out.Close()
			os.Remove(tmp)
			return 0, fmt.Errorf("opening segment %d: %w", i, err)
		}
		n, err := io.Copy(out, in)
		in.Close()
		if err != nil {
			out.Close()
			os.Remove(tmp)
			return 0, fmt.Errorf("merging segment %d: %w", i, err)
		}
		written += n
	}

	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("renaming merged file: %w", err)
	}
	return written, nil
}
