package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const defaultNewsAPIEndpoint = "https://newsapi.org"

// NewsAPIArticle is one entry of a NewsAPI /v2/everything response.
type NewsAPIArticle struct {
	Source struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

type newsAPIResponse struct {
	Status       string           `json:"status"`
	Code         string           `json:"code"`
	Message      string           `json:"message"`
	TotalResults int              `json:"totalResults"`
	Articles     []NewsAPIArticle `json:"articles"`
}

// NewsAPIClient searches the NewsAPI "everything" endpoint.
type NewsAPIClient struct {
	endpoint  string
	apiKey    string
	userAgent string
	http      *http.Client
}

func NewNewsAPIClient(endpoint, apiKey, userAgent string, client *http.Client) *NewsAPIClient {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		endpoint = defaultNewsAPIEndpoint
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &NewsAPIClient{
		endpoint:  endpoint,
		apiKey:    strings.TrimSpace(apiKey),
		userAgent: userAgent,
		http:      client,
	}
}

func (c *NewsAPIClient) Configured() bool {
	return c != nil && c.apiKey != ""
}

// Search returns up to pageSize English articles for query, newest first.
func (c *NewsAPIClient) Search(ctx context.Context, query string, pageSize int) ([]NewsAPIArticle, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("newsapi key is not configured")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("newsapi query is empty")
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("pageSize", strconv.Itoa(pageSize))
	params.Set("language", "en")
	params.Set("sortBy", "publishedAt")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/v2/everything?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build newsapi request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("newsapi request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read newsapi response: %w", err)
	}

	var decoded newsAPIResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode newsapi response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || decoded.Status != "ok" {
		return nil, fmt.Errorf("newsapi status %d: %s %s", resp.StatusCode, decoded.Code, decoded.Message)
	}

	articles := decoded.Articles
	if len(articles) > pageSize {
		articles = articles[:pageSize]
	}
	return articles, nil
}
