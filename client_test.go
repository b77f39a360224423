package impact

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /analyze", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "k1", r.Header.Get("Idempotency-Key"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Some news", body["content"])

		_, _ = w.Write([]byte(`{"articleId":"a1","analysis":{"article_title":"Some news","impacts":[{"impact":"x","score":0.5}]}}`))
	})
	mux.HandleFunc("GET /articles/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "a1" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found","details":"not found: article"}`))
			return
		}
		assert.Equal(t, "true", r.URL.Query().Get("evidence"))
		_, _ = w.Write([]byte(`{"article":{"id":"a1","title":"Some news"},"impacts":[{"id":"i1","supporting_evidence":[{"id":"e1"}]}]}`))
	})
	mux.HandleFunc("POST /impacts/{id}/vote", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid request"}`))
	})
	mux.HandleFunc("GET /analysis-history", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"analyses":[{"id":"h1","articleId":"a1","impactCount":1,"article":{"cnt_of_impacts":2}}]}`))
	})
	mux.HandleFunc("DELETE /articles/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL+"/", "tok")
	ctx := context.Background()

	result, err := client.Analyze(ctx, "Some news", "", "k1")
	require.NoError(t, err)
	assert.Equal(t, "a1", result.ArticleID)
	assert.Equal(t, "Some news", result.Analysis.ArticleTitle)
	require.Len(t, result.Analysis.Impacts, 1)

	article, err := client.GetArticle(ctx, "a1", true)
	require.NoError(t, err)
	assert.Equal(t, "Some news", article.Article.Title)
	require.Len(t, article.Impacts, 1)
	assert.Len(t, article.Impacts[0].SupportingEvidence, 1)

	_, err = client.GetArticle(ctx, "missing", true)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "404 not found: not found: article", apiErr.Error())

	err = client.Vote(ctx, "i1", "sideways")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)

	err = client.DeleteArticle(ctx, "a1")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "500 Internal Server Error", apiErr.Error())

	history, err := client.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(2), history[0].Article.ImpactCount)
}
