package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/sandevgo/readr/internal/core"
	"github.com/sandevgo/readr/pkg/retry"
)

// Wikipedia searches the MediaWiki API and returns intro extracts as
// snippets. Best effort: transient failures are retried with backoff,
// then surfaced to the retriever for its cache fallback.
type Wikipedia struct {
	client     *http.Client
	baseURL    string
	maxResults int
	retrier    *retry.Retrier
}

func NewWikipedia(baseURL string, maxResults int) *Wikipedia {
	return &Wikipedia{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL:    baseURL,
		maxResults: maxResults,
		retrier:    retry.NewDefaultRetrier(),
	}
}

func (w *Wikipedia) Name() string {
	return "wikipedia"
}

type wikiResponse struct {
	Query struct {
		Pages map[string]struct {
			PageID  int    `json:"pageid"`
			Title   string `json:"title"`
			Extract string `json:"extract"`
			FullURL string `json:"fullurl"`
			Index   int    `json:"index"`
		} `json:"pages"`
	} `json:"query"`
}

func (w *Wikipedia) Search(ctx context.Context, term string) ([]core.Snippet, error) {
	cleaned := CleanTerm(term)
	if cleaned == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("generator", "search")
	params.Set("gsrsearch", cleaned)
	params.Set("gsrlimit", strconv.Itoa(w.maxResults))
	params.Set("prop", "extracts|info")
	params.Set("exintro", "1")
	params.Set("inprop", "url")

	var body []byte
	err := w.retrier.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, "GET", w.baseURL+"/w/api.php?"+params.Encode(), nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", core.ReadrUserAgent)

		resp, err := w.client.Do(req)
		if err != nil {
			return fmt.Errorf("request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("http %d from wikipedia", resp.StatusCode)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response body: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("wikipedia search %q: %w", cleaned, err)
	}

	var parsed wikiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode wikipedia response: %w", err)
	}

	type ranked struct {
		index   int
		snippet core.Snippet
	}
	var results []ranked
	now := time.Now()

	for _, page := range parsed.Query.Pages {
		text := flattenHTML(page.Extract)
		if text == "" {
			continue
		}
		results = append(results, ranked{
			index: page.Index,
			snippet: core.Snippet{
				SourceID:  w.Name(),
				Query:     term,
				Title:     page.Title,
				Text:      text,
				URL:       page.FullURL,
				FetchedAt: now,
			},
		})
	}

	// The pages map is unordered; search rank lives in the index field.
	sort.Slice(results, func(a, b int) bool { return results[a].index < results[b].index })

	snippets := make([]core.Snippet, 0, len(results))
	for i, r := range results {
		r.snippet.Relevance = 1 / float32(i+1)
		snippets = append(snippets, r.snippet)
	}
	return snippets, nil
}
