package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	htmldom "golang.org/x/net/html"

	"stagehand/internal/dispatch"
	"stagehand/internal/plan"
)

// WebRole is the built-in worker role for page fetching and HTML work.
const WebRole = "web_agent"

const maxFetchBody = 2 << 20

// WebRoleDefinition describes the built-in web role for the validator's
// catalog and the planner prompt.
func WebRoleDefinition() plan.RoleDefinition {
	def := plan.RoleDefinition{Role: WebRole}
	fetch := plan.ToolDefinition{Name: "fetch_page", Description: "Fetches a URL and returns its readable text and raw HTML."}
	fetch.PayloadSchema.Required = []string{"url"}
	links := plan.ToolDefinition{Name: "extract_links", Description: "Extracts anchor links from HTML, resolved against base_url."}
	links.PayloadSchema.Required = []string{"html"}
	text := plan.ToolDefinition{Name: "extract_text", Description: "Extracts the inner text of HTML, optionally scoped to a CSS selector."}
	text.PayloadSchema.Required = []string{"html"}
	elems := plan.ToolDefinition{Name: "extract_elements", Description: "Returns the outer HTML of every element matching a CSS selector."}
	elems.PayloadSchema.Required = []string{"html", "selector"}
	def.Tools = []plan.ToolDefinition{fetch, links, text, elems}
	return def
}

// NewWebWorker builds a worker for WebRole with its built-in tools.
func NewWebWorker(queue *dispatch.Queue, results *dispatch.ResultRouter, client *http.Client, logger *log.Logger) *Worker {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	w := New(WebRole, queue, results, logger)
	w.Register("fetch_page", fetchPageTool(client))
	w.Register("extract_links", extractLinksTool)
	w.Register("extract_text", extractTextTool)
	w.Register("extract_elements", extractElementsTool)
	return w
}

func requireString(input map[string]any, key string) (string, error) {
	v, ok := input[key]
	if !ok {
		return "", fmt.Errorf("input is missing required key: '%s'", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("input key '%s' has an invalid type (expected string)", key)
	}
	return s, nil
}

func fetchPageTool(client *http.Client) ToolFunc {
	return func(ctx context.Context, input map[string]any) (any, error) {
		rawURL, err := requireString(input, "url")
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("bad url: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("http status %d for %s", resp.StatusCode, rawURL)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBody))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}

		html := string(body)
		text := html
		pageURL, _ := url.Parse(rawURL)
		if article, err := readability.FromReader(strings.NewReader(html), pageURL); err == nil {
			if t := strings.TrimSpace(article.TextContent); t != "" {
				text = t
			}
		}
		return map[string]any{
			"url":         rawURL,
			"status_code": resp.StatusCode,
			"html":        html,
			"text":        text,
		}, nil
	}
}

func absolute(base, href string) string {
	u, err := url.Parse(href)
	if err != nil || href == "" {
		return href
	}
	if u.IsAbs() {
		return u.String()
	}
	if base == "" {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	return bu.ResolveReference(u).String()
}

func extractLinksTool(_ context.Context, input map[string]any) (any, error) {
	html, err := requireString(input, "html")
	if err != nil {
		return nil, err
	}
	baseURL, _ := input["base_url"].(string)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	type link struct {
		Text string `json:"text"`
		URL  string `json:"url"`
	}
	var out []link
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		out = append(out, link{
			Text: strings.TrimSpace(s.Text()),
			URL:  absolute(baseURL, href),
		})
	})
	b, _ := json.Marshal(out)
	var generic []any
	_ = json.Unmarshal(b, &generic)
	return map[string]any{"links": generic}, nil
}

func extractElementsTool(_ context.Context, input map[string]any) (any, error) {
	html, err := requireString(input, "html")
	if err != nil {
		return nil, err
	}
	selector, err := requireString(input, "selector")
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	var items []any
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		var buf strings.Builder
		for _, n := range s.Nodes {
			_ = htmldom.Render(&buf, n)
		}
		items = append(items, buf.String())
	})
	return map[string]any{"elements": items}, nil
}

func extractTextTool(_ context.Context, input map[string]any) (any, error) {
	html, err := requireString(input, "html")
	if err != nil {
		return nil, err
	}
	selector, _ := input["selector"].(string)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	var text string
	if selector != "" {
		var parts []string
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			parts = append(parts, strings.TrimSpace(s.Text()))
		})
		text = strings.Join(parts, "\n")
	} else {
		text = strings.TrimSpace(doc.Text())
	}
	return map[string]any{"text": text}, nil
}
