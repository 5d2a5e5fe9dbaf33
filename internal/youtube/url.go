package youtube

import (
	"fmt"
	"net/url"
	"strings"
)

// ExtractVideoID pulls the video ID out of the common YouTube URL shapes:
// watch?v=<id>, youtu.be/<id> and /embed/<id>. A bare 11-character ID is
// not accepted; callers pass full URLs.
func ExtractVideoID(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid YouTube URL %q: %w", rawURL, err)
	}

	host := strings.ToLower(parsed.Hostname())
	if strings.Contains(host, "youtu.be") {
		id := strings.Trim(parsed.Path, "/")
		if id == "" {
			return "", fmt.Errorf("could not extract video ID from URL: %s", rawURL)
		}
		return id, nil
	}

	if v := parsed.Query().Get("v"); v != "" {
		return v, nil
	}

	parts := strings.Split(parsed.Path, "/")
	for i, part := range parts {
		if part == "embed" && i+1 < len(parts) && parts[i+1] != "" {
			return parts[i+1], nil
		}
	}

	return "", fmt.Errorf("could not extract video ID from URL: %s", rawURL)
}
