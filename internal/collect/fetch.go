package collect

import (
	"time"

	"github.com/go-shiori/go-readability"
)

// ReadabilityFetcher returns a BodyFetcher that downloads a page and
// strips it to readable text. The timeout guards against hung origins.
func ReadabilityFetcher(timeout time.Duration) BodyFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return func(url string) (string, error) {
		article, err := readability.FromURL(url, timeout)
		if err != nil {
			return "", err
		}
		return article.TextContent, nil
	}
}
