package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sandevgo/readr/internal/core"
	"github.com/sandevgo/readr/pkg/retry"
)

// GoogleBooks queries the volumes API for book descriptions. Only active
// when an API key is configured.
type GoogleBooks struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	maxResults int
	retrier    *retry.Retrier
}

func NewGoogleBooks(baseURL, apiKey string, maxResults int) *GoogleBooks {
	return &GoogleBooks{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL:    baseURL,
		apiKey:     apiKey,
		maxResults: maxResults,
		retrier:    retry.NewDefaultRetrier(),
	}
}

func (g *GoogleBooks) Name() string {
	return "google_books"
}

type booksResponse struct {
	Items []struct {
		VolumeInfo struct {
			Title       string   `json:"title"`
			Authors     []string `json:"authors"`
			Description string   `json:"description"`
			PreviewLink string   `json:"previewLink"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

func (g *GoogleBooks) Search(ctx context.Context, term string) ([]core.Snippet, error) {
	cleaned := CleanTerm(term)
	if cleaned == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", cleaned)
	params.Set("maxResults", strconv.Itoa(g.maxResults))
	params.Set("key", g.apiKey)

	var body []byte
	err := g.retrier.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, "GET", g.baseURL+"/books/v1/volumes?"+params.Encode(), nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", core.ReadrUserAgent)

		resp, err := g.client.Do(req)
		if err != nil {
			return fmt.Errorf("request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("http %d from google books", resp.StatusCode)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response body: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("google books search %q: %w", cleaned, err)
	}

	var parsed booksResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode google books response: %w", err)
	}

	now := time.Now()
	var snippets []core.Snippet
	for i, item := range parsed.Items {
		info := item.VolumeInfo
		if info.Description == "" {
			continue
		}

		var sb strings.Builder
		sb.WriteString(info.Title)
		if len(info.Authors) > 0 {
			sb.WriteString(" by ")
			sb.WriteString(strings.Join(info.Authors, ", "))
		}
		sb.WriteString("\n\n")
		sb.WriteString(flattenHTML(info.Description))

		snippets = append(snippets, core.Snippet{
			SourceID:  g.Name(),
			Query:     term,
			Title:     info.Title,
			Text:      sb.String(),
			URL:       info.PreviewLink,
			FetchedAt: now,
			Relevance: 1 / float32(i+1),
		})
	}
	return snippets, nil
}
