package youtube

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dperrin/vidrag/internal/core"
	"github.com/dperrin/vidrag/internal/logger"
)

const defaultBaseURL = "https://video.google.com/timedtext"

// Client fetches video transcripts over the timedtext endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a transcript client. An empty baseURL uses the public
// timedtext endpoint.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// timedtext is the XML document returned by the transcript endpoint.
type timedtext struct {
	Texts []timedtextEntry `xml:"text"`
}

type timedtextEntry struct {
	Start    float64 `xml:"start,attr"`
	Duration float64 `xml:"dur,attr"`
	Body     string  `xml:",chardata"`
}

// Fetch retrieves the transcript for a video, trying each candidate language
// in order and returning the first that has one. The second return value is
// the language that matched. When no candidate yields a transcript, the
// per-language failures are folded into a single error wrapping
// core.ErrTranscriptUnavailable.
func (c *Client) Fetch(ctx context.Context, videoID string, languages []string) ([]core.TranscriptSegment, string, error) {
	if videoID == "" {
		return nil, "", fmt.Errorf("%w: empty video ID", core.ErrTranscriptUnavailable)
	}
	if len(languages) == 0 {
		languages = []string{"en"}
	}

	var failures []string
	for _, lang := range languages {
		segments, err := c.fetchLanguage(ctx, videoID, lang)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			logger.Debug("No %s transcript for video %s: %v", lang, videoID, err)
			failures = append(failures, fmt.Sprintf("%s: %v", lang, err))
			continue
		}
		logger.Info("Fetched %d transcript segments for video %s (language %s)", len(segments), videoID, lang)
		return segments, lang, nil
	}

	return nil, "", fmt.Errorf("%w for video %s: %s",
		core.ErrTranscriptUnavailable, videoID, strings.Join(failures, "; "))
}

func (c *Client) fetchLanguage(ctx context.Context, videoID, lang string) ([]core.TranscriptSegment, error) {
	params := url.Values{}
	params.Set("v", videoID)
	params.Set("lang", lang)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("transcript endpoint returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, fmt.Errorf("no transcript published")
	}

	var doc timedtext
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse transcript XML: %w", err)
	}
	if len(doc.Texts) == 0 {
		return nil, fmt.Errorf("transcript is empty")
	}

	segments := make([]core.TranscriptSegment, 0, len(doc.Texts))
	for _, entry := range doc.Texts {
		text := strings.TrimSpace(entry.Body)
		if text == "" {
			continue
		}
		segments = append(segments, core.TranscriptSegment{
			Text:     text,
			Start:    entry.Start,
			Duration: entry.Duration,
		})
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("transcript has no text")
	}
	return segments, nil
}
