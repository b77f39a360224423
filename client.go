package impact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the REST API of an impact server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

// APIError is a non-2xx answer of the server.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Details string `json:"details"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

type Evidence struct {
	ID          string `json:"id"`
	ImpactID    string `json:"impact_id"`
	Description string `json:"description"`
	SourceURL   string `json:"source_url"`
	Source      string `json:"source"`
}

type Impact struct {
	ID                    string      `json:"id"`
	ArticleID             string      `json:"article_id"`
	ImpactedEntity        string      `json:"impacted_entity"`
	Impact                string      `json:"impact"`
	Score                 float64     `json:"score"`
	Confidence            *float64    `json:"confidence"`
	Source                string      `json:"source"`
	UserVotesUp           int64       `json:"user_votes_up"`
	UserVotesDown         int64       `json:"user_votes_down"`
	SupportingEvidenceIDs []string    `json:"supporting_evidence_ids"`
	SupportingEvidence    []*Evidence `json:"supporting_evidence,omitempty"`
}

type Article struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	URL             string    `json:"url"`
	ImpactingEntity string    `json:"impacting_entity"`
	UserID          string    `json:"userId"`
	Summary         string    `json:"summary"`
	CreatedAt       time.Time `json:"created_at"`
}

type ArticleWithImpacts struct {
	Article *Article  `json:"article"`
	Impacts []*Impact `json:"impacts"`
}

type AnalyzeResult struct {
	AttemptID string `json:"attemptId"`
	ArticleID string `json:"articleId"`
	Analysis  struct {
		ArticleTitle    string `json:"article_title"`
		ImpactingEntity string `json:"impacting_entity"`
		Impacts         []struct {
			ImpactedEntity string  `json:"impacted_entity"`
			Impact         string  `json:"impact"`
			Score          float64 `json:"score"`
		} `json:"impacts"`
	} `json:"analysis"`
}

type HistoryEntry struct {
	ID          string    `json:"id"`
	ArticleID   string    `json:"articleId"`
	Title       string    `json:"title"`
	ImpactCount int       `json:"impactCount"`
	CreatedAt   time.Time `json:"createdAt"`
	Article     *struct {
		Summary     string `json:"summary"`
		ImpactCount int64  `json:"cnt_of_impacts"`
	} `json:"article"`
}

// Analyze submits article text, or a URL to fetch when content is empty.
// A non-empty key makes retries of the same call return the first result.
func (c *Client) Analyze(ctx context.Context, content, articleURL, key string) (*AnalyzeResult, error) {
	body := map[string]string{"content": content, "url": articleURL}
	headers := map[string]string{}
	if key != "" {
		headers["Idempotency-Key"] = key
	}

	var out AnalyzeResult
	if err := c.do(ctx, http.MethodPost, "/analyze", headers, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetArticle(ctx context.Context, id string, evidence bool) (*ArticleWithImpacts, error) {
	path := "/articles/" + url.PathEscape(id)
	if evidence {
		path += "?evidence=true"
	}

	var out ArticleWithImpacts
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteArticle(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/articles/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) Vote(ctx context.Context, impactID, voteType string) error {
	body := map[string]string{"voteType": voteType}
	return c.do(ctx, http.MethodPost, "/impacts/"+url.PathEscape(impactID)+"/vote", nil, body, nil)
}

func (c *Client) History(ctx context.Context) ([]*HistoryEntry, error) {
	var out struct {
		Analyses []*HistoryEntry `json:"analyses"`
	}
	if err := c.do(ctx, http.MethodGet, "/analysis-history", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Analyses, nil
}

func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
