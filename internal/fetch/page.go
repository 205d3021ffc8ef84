package fetch

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrNotText is returned when a page body is not valid UTF-8.
var ErrNotText = errors.New("response body is not valid UTF-8 text")

// FetchPage downloads url and returns its body as text.
func (c *Client) FetchPage(ctx context.Context, url string) (string, error) {
	body, err := c.Get(ctx, url)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(body) {
		return "", fmt.Errorf("decoding %s: %w", url, ErrNotText)
	}
	return string(body), nil
}
