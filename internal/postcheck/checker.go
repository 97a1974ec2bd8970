package postcheck

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Checker verifies ad posts in public channels through the t.me embed pages.
// No bot membership in the channel is needed, which matters because the
// advertiser's bot is usually not an admin there.
type Checker struct {
	httpClient *http.Client
	log        *zap.Logger
	maxRetries int
}

func NewChecker(timeoutMS, maxRetries int, log *zap.Logger) *Checker {
	return &Checker{
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutMS) * time.Millisecond,
		},
		log:        log,
		maxRetries: maxRetries,
	}
}

// FetchPost fetches a post's embed page and reports whether the post still
// exists plus its current text. A 404 means the post was deleted; that is a
// negative result, not an error.
func (c *Checker) FetchPost(ctx context.Context, username string, messageID int64) (bool, string, error) {
	url := fmt.Sprintf("https://t.me/%s/%d?embed=1", username, messageID)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return false, "", err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
			continue
		}

		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			return false, "", nil
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
			time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
			continue
		}

		exists, text, err := parsePostPage(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return exists, text, nil
	}

	return false, "", lastErr
}

func parsePostPage(body io.Reader) (bool, string, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return false, "", err
	}

	text := strings.TrimSpace(doc.Find(".tgme_widget_message_text").Text())
	if text == "" {
		// Might be a media-only post, check if the message widget exists.
		if doc.Find(".tgme_widget_message").Length() == 0 {
			return false, "", nil
		}
	}
	return true, text, nil
}

var postLinkRE = regexp.MustCompile(`^(?:https?://)?t\.me/([A-Za-z0-9_]+)/(\d+)(?:\?.*)?$`)

// ParsePostLink extracts the channel username and message id from a t.me
// post URL like https://t.me/mychannel/123.
func ParsePostLink(link string) (string, int64, error) {
	m := postLinkRE.FindStringSubmatch(strings.TrimSpace(link))
	if m == nil {
		return "", 0, fmt.Errorf("not a t.me post link: %q", link)
	}
	id, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil || id <= 0 {
		return "", 0, fmt.Errorf("bad message id in link: %q", link)
	}
	return m[1], id, nil
}
