package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mediapulse/mediapulse-back/internal/domain"
)

var ErrSearchUnavailable = errors.New("search client unavailable")

type ClientConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	PageSize   int
	HTTPClient *http.Client
	Cache      *ResultCache
}

// Client queries an upstream news search API. Each call covers exactly one
// date window; window widening is the caller's concern.
type Client struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	maxRetries int
	pageSize   int
	httpClient *http.Client
	cache      *ResultCache
}

func NewClient(config ClientConfig) *Client {
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = "https://newsapi.org/v2"
	}
	if config.Timeout <= 0 {
		config.Timeout = 20 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 2
	}
	if config.PageSize <= 0 {
		config.PageSize = 20
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	if config.Cache == nil {
		config.Cache = NewResultCache(CacheConfig{})
	}

	return &Client{
		apiKey:     strings.TrimSpace(config.APIKey),
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		timeout:    config.Timeout,
		maxRetries: config.MaxRetries,
		pageSize:   config.PageSize,
		httpClient: config.HTTPClient,
		cache:      config.Cache,
	}
}

func (c *Client) Available() bool {
	return c.apiKey != ""
}

func (c *Client) Search(ctx context.Context, queries []string, windowDays int) ([]domain.Article, error) {
	if !c.Available() {
		return nil, ErrSearchUnavailable
	}
	if len(queries) == 0 {
		return nil, errors.New("at least one query is required")
	}
	if windowDays <= 0 {
		windowDays = 7
	}

	signature := BuildSignature(queries, windowDays)
	if cached, ok := c.cache.Get(signature); ok {
		return cached, nil
	}

	from := time.Now().UTC().AddDate(0, 0, -windowDays).Format("2006-01-02")
	seen := make(map[string]struct{})
	articles := make([]domain.Article, 0, c.pageSize)

	for _, query := range queries {
		trimmed := strings.TrimSpace(query)
		if trimmed == "" {
			continue
		}
		batch, err := c.searchQuery(ctx, trimmed, from)
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", trimmed, err)
		}
		for _, article := range batch {
			if _, dup := seen[article.URL]; dup || article.URL == "" {
				continue
			}
			seen[article.URL] = struct{}{}
			articles = append(articles, article)
		}
	}

	c.cache.Set(signature, articles)
	return articles, nil
}

func (c *Client) searchQuery(ctx context.Context, query, from string) ([]domain.Article, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("from", from)
	params.Set("sortBy", "publishedAt")
	params.Set("language", "en")
	params.Set("pageSize", strconv.Itoa(c.pageSize))

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		batch, callErr := c.callSearchAPI(ctx, params)
		if callErr == nil {
			return batch, nil
		}
		lastErr = callErr

		if !isRetryableSearchError(callErr) || attempt == c.maxRetries {
			break
		}

		backoff := time.Duration(300*(attempt+1)) * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, lastErr
}

func (c *Client) callSearchAPI(ctx context.Context, params url.Values) ([]domain.Article, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpRequest, err := http.NewRequestWithContext(
		timeoutCtx,
		http.MethodGet,
		c.baseURL+"/everything?"+params.Encode(),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	httpRequest.Header.Set("X-Api-Key", c.apiKey)
	httpRequest.Header.Set("Accept", "application/json")

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("search timeout: %w", err)
		}
		return nil, fmt.Errorf("search transport error: %w", err)
	}
	defer httpResponse.Body.Close()

	body, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, fmt.Errorf("read search body: %w", err)
	}

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		message := strings.TrimSpace(string(body))
		if len(message) > 500 {
			message = message[:500]
		}
		return nil, &searchHTTPError{StatusCode: httpResponse.StatusCode, Message: message}
	}

	var raw struct {
		Articles []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			Content     string `json:"content"`
			PublishedAt string `json:"publishedAt"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	articles := make([]domain.Article, 0, len(raw.Articles))
	for _, item := range raw.Articles {
		title := strings.TrimSpace(item.Title)
		if title == "" || strings.TrimSpace(item.URL) == "" {
			continue
		}
		bodyText := strings.TrimSpace(item.Content)
		if bodyText == "" {
			bodyText = strings.TrimSpace(item.Description)
		}
		articles = append(articles, domain.Article{
			Title:       title,
			URL:         strings.TrimSpace(item.URL),
			Source:      strings.TrimSpace(item.Source.Name),
			PublishedAt: strings.TrimSpace(item.PublishedAt),
			Body:        bodyText,
		})
	}
	return articles, nil
}

type searchHTTPError struct {
	StatusCode int
	Message    string
}

func (e *searchHTTPError) Error() string {
	return fmt.Sprintf("search http %d: %s", e.StatusCode, e.Message)
}

func isRetryableSearchError(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *searchHTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "timeout") || strings.Contains(message, "tempor")
}
