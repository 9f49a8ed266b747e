// Package senapred implements the page-fetching collaborator against the
// live SENAPRED site: it lists alert detail locators from the index page
// and flattens a detail page to the normalized text the extractor
// expects.
package senapred

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"
)

const userAgent = "senapred-monitor/1.0 (+https://github.com/fabianodin23-lab/senapred-monitor)"

// Client fetches pages from the SENAPRED site.
// It implements pipeline.PageFetcher.
type Client struct {
	rest     *resty.Client
	indexURL string
	baseURL  string
	logger   *slog.Logger
}

// NewClient creates a fetcher for the given index and base URLs.
func NewClient(indexURL, baseURL string, timeout time.Duration, retries int, logger *slog.Logger) *Client {
	rest := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(2 * time.Second).
		SetHeader("User-Agent", userAgent)

	return &Client{
		rest:     rest,
		indexURL: indexURL,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		logger:   logger,
	}
}

// ListLocators fetches the alert index page and returns the detail-page
// URLs it links to, in document order, deduplicated. Only links under
// /alerta/ count; the listing page itself (/alertas/) does not.
func (c *Client) ListLocators(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, c.indexURL)
	if err != nil {
		return nil, fmt.Errorf("fetch alert index: %w", err)
	}

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse alert index: %w", err)
	}

	var locators []string
	seen := make(map[string]bool)
	for _, href := range collectHrefs(doc) {
		if !strings.Contains(href, "/alerta/") || strings.Contains(href, "alertas") {
			continue
		}
		locator := href
		if strings.HasPrefix(href, "/") {
			locator = c.baseURL + href
		}
		if !strings.HasPrefix(locator, "http") || seen[locator] {
			continue
		}
		seen[locator] = true
		locators = append(locators, locator)
	}

	c.logger.Debug("alert index listed", "locators", len(locators))
	return locators, nil
}

// FetchPage fetches one detail page and returns its visible text with
// all whitespace flattened to single spaces.
func (c *Client) FetchPage(ctx context.Context, locator string) (string, error) {
	body, err := c.get(ctx, locator)
	if err != nil {
		return "", fmt.Errorf("fetch alert page: %w", err)
	}

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse alert page: %w", err)
	}

	return FlattenText(doc), nil
}

func (c *Client) get(ctx context.Context, url string) (string, error) {
	resp, err := c.rest.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("GET %s: status %d", url, resp.StatusCode())
	}
	return resp.String(), nil
}

// collectHrefs walks the document and returns every anchor href in
// document order.
func collectHrefs(doc *html.Node) []string {
	var hrefs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" && attr.Val != "" {
					hrefs = append(hrefs, attr.Val)
					break
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return hrefs
}

// FlattenText extracts the visible text of a parsed document as one
// whitespace-normalized string, skipping script and style subtrees.
func FlattenText(doc *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				parts = append(parts, text)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
