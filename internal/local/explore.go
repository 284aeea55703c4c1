package local

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/sync/errgroup"
)

// explore fetches every link from an earlier step's output, one bounded
// attempt per link, and concatenates the readable text of the successes.
// Per-link failures become partial errors; the action fails only when no
// links were available at all.
func (r *Runner) explore(ctx context.Context, input map[string]any) (*Result, error) {
	links, err := coerceLinks(input["links"])
	if err != nil {
		return nil, fmt.Errorf("web_explore: %w", err)
	}
	if len(links) == 0 {
		return nil, fmt.Errorf("web_explore: no links available to explore")
	}

	contents := make([]string, len(links))
	failures := make([]string, len(links))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.FetchConcurrency)

	for i := range links {
		idx := i
		g.Go(func() error {
			link := links[idx]
			text, err := r.fetchReadable(gctx, link)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[idx] = fmt.Sprintf("%s: %v", link, err)
				return nil // keep exploring the remaining links
			}
			contents[idx] = text
			return nil
		})
	}
	_ = g.Wait()

	var sb strings.Builder
	var partial []string
	for i, link := range links {
		if failures[i] != "" {
			partial = append(partial, failures[i])
			sb.WriteString(fmt.Sprintf("--- Failed to fetch %s ---\n\n", link))
			continue
		}
		sb.WriteString(fmt.Sprintf("--- Content from %s ---\n%s\n\n", link, contents[i]))
	}

	return &Result{
		Data:          strings.TrimSpace(sb.String()),
		PartialErrors: partial,
	}, nil
}

func (r *Runner) fetchReadable(ctx context.Context, link string) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.opts.PerLinkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("bad url: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("http status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	pageURL, _ := url.Parse(link)
	text := string(body)
	if article, err := readability.FromReader(strings.NewReader(text), pageURL); err == nil {
		if t := strings.TrimSpace(article.TextContent); t != "" {
			text = t
		}
	}
	if len(text) > r.opts.MaxLinkContent {
		text = text[:r.opts.MaxLinkContent] + "..."
	}
	return text, nil
}

// coerceLinks accepts a slice of link strings, a slice of {url: ...}
// objects, or a JSON array string of either.
func coerceLinks(v any) ([]string, error) {
	if v == nil {
		return nil, fmt.Errorf("links is missing")
	}
	if s, ok := v.(string); ok {
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			return nil, nil
		}
		var arr []any
		if err := json.Unmarshal([]byte(trimmed), &arr); err != nil {
			// A single bare URL.
			return []string{trimmed}, nil
		}
		return coerceLinks(arr)
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("links must be an array or JSON array string, got %T", v)
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		switch t := item.(type) {
		case string:
			if strings.TrimSpace(t) != "" {
				out = append(out, t)
			}
		case map[string]any:
			u, _ := t["url"].(string)
			if strings.TrimSpace(u) != "" {
				out = append(out, u)
			}
		default:
			return nil, fmt.Errorf("links contains unsupported element of type %T", item)
		}
	}
	return out, nil
}
