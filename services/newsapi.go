package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"currency-features/models"
	"currency-features/observability"
)

// headlineLimit is how many articles feed the sentiment score and the news digest
const headlineLimit = 100

// NewsAPIService handles communication with NewsAPI.org
type NewsAPIService struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	retry      RetryConfig
}

// NewNewsAPIService creates a new NewsAPIService instance
func NewNewsAPIService(apiKey string) *NewsAPIService {
	return &NewsAPIService{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:    "https://newsapi.org/v2",
		retry:      DefaultRetryConfig,
	}
}

// NewsAPIResponse represents the response from NewsAPI
type NewsAPIResponse struct {
	Status       string `json:"status"`
	Code         string `json:"code"`
	Message      string `json:"message"`
	TotalResults int    `json:"totalResults"`
	Articles     []struct {
		Source struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"source"`
		Author      string `json:"author"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// GetNews returns the newest English articles matching query
func (s *NewsAPIService) GetNews(ctx context.Context, query string, limit int) ([]models.NewsArticle, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("language", "en")
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", fmt.Sprintf("%d", limit))
	reqURL := s.baseURL + "/everything?" + params.Encode()
	headers := map[string]string{"X-Api-Key": s.apiKey}

	var newsResp NewsAPIResponse
	err := WithRetry(ctx, s.retry, func() error {
		var err error
		newsResp, err = WithCircuitBreaker(ctx, BreakerNewsAPI, func() (NewsAPIResponse, error) {
			var out NewsAPIResponse
			err := getJSON(ctx, s.httpClient, BreakerNewsAPI, "everything", reqURL, headers, &out)
			return out, err
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if newsResp.Status != "" && newsResp.Status != "ok" {
		return nil, newProviderError(KindRejected, BreakerNewsAPI, "everything",
			fmt.Errorf("%s: %s", newsResp.Code, newsResp.Message))
	}

	articles := make([]models.NewsArticle, 0, len(newsResp.Articles))
	for _, item := range newsResp.Articles {
		publishedAt, err := time.Parse(time.RFC3339, item.PublishedAt)
		if err != nil {
			observability.Debug("unparseable article timestamp, using current time",
				"published_at", item.PublishedAt,
				"error", err)
			publishedAt = time.Now()
		}

		articles = append(articles, models.NewsArticle{
			Title:       item.Title,
			Description: item.Description,
			URL:         item.URL,
			Source:      item.Source.Name,
			Author:      item.Author,
			PublishedAt: publishedAt,
		})
	}

	return articles, nil
}

// Sentiment is the mean headline polarity of articles matching query, in [-1, 1]
func (s *NewsAPIService) Sentiment(ctx context.Context, query string) (float64, error) {
	articles, err := s.GetNews(ctx, query, headlineLimit)
	if err != nil {
		return 0, err
	}
	return MeanPolarity(titles(articles)), nil
}

// Digest joins the headlines of articles matching query, one per line
func (s *NewsAPIService) Digest(ctx context.Context, query string) (string, error) {
	articles, err := s.GetNews(ctx, query, headlineLimit)
	if err != nil {
		return "", err
	}
	return strings.Join(titles(articles), "\n"), nil
}

func titles(articles []models.NewsArticle) []string {
	out := make([]string, 0, len(articles))
	for _, a := range articles {
		if t := strings.TrimSpace(a.Title); t != "" {
			out = append(out, t)
		}
	}
	return out
}
