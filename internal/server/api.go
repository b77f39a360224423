package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	gatewayfile "github.com/black-06/grpc-gateway-file"
	"github.com/emrgen/impact/internal/auth"
	"github.com/emrgen/impact/internal/service"
	"github.com/emrgen/impact/internal/store"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/encoding/protojson"
)

const maxBodySize = 2 << 20

// API is the REST surface of the impact service.
type API struct {
	analysis *service.AnalysisService
	articles *service.ArticleService
	impacts  *service.ImpactService
	history  *service.HistoryService
	store    store.Store
	verifier auth.Verifier
	required bool
	debug    bool
	mux      *runtime.ServeMux
}

type APIDeps struct {
	Analysis *service.AnalysisService
	Articles *service.ArticleService
	Impacts  *service.ImpactService
	History  *service.HistoryService
	Store    store.Store
	// Verifier may be nil, bearer tokens are then ignored.
	Verifier     auth.Verifier
	AuthRequired bool
	Debug        bool
}

func NewAPI(deps APIDeps) (*API, error) {
	if deps.AuthRequired && deps.Verifier == nil {
		return nil, errNoVerifier
	}

	a := &API{
		analysis: deps.Analysis,
		articles: deps.Articles,
		impacts:  deps.Impacts,
		history:  deps.History,
		store:    deps.Store,
		verifier: deps.Verifier,
		required: deps.AuthRequired,
		debug:    deps.Debug,
	}

	a.mux = runtime.NewServeMux(
		runtime.WithMarshalerOption(runtime.MIMEWildcard, &runtime.HTTPBodyMarshaler{
			Marshaler: &runtime.JSONPb{
				MarshalOptions: protojson.MarshalOptions{
					EmitUnpopulated: true,
				},
				UnmarshalOptions: protojson.UnmarshalOptions{
					DiscardUnknown: true,
				},
			},
		}),
		gatewayfile.WithHTTPBodyMarshaler(),
	)
	if err := a.routes(); err != nil {
		return nil, err
	}

	return a, nil
}

func (a *API) Handler() http.Handler {
	return a.mux
}

func (a *API) routes() error {
	type route struct {
		method  string
		pattern string
		policy  access
		handler runtime.HandlerFunc
	}

	routes := []route{
		{http.MethodPost, "/analyze", mutating, a.analyze},
		{http.MethodGet, "/articles/{id}", public, a.getArticle},
		{http.MethodDelete, "/articles/{id}", mutating, a.deleteArticle},
		{http.MethodGet, "/article/{id}", public, a.getArticle},
		{http.MethodDelete, "/article/{id}", mutating, a.deleteArticle},
		{http.MethodPost, "/articles/{id}/impacts/{impact_id}/vote", mutating, a.voteScoped},
		{http.MethodPost, "/impacts", mutating, a.createImpact},
		{http.MethodPost, "/impacts/{id}/vote", mutating, a.vote},
		{http.MethodPost, "/evidence", mutating, a.addEvidence},
		{http.MethodGet, "/evidence/{id}", public, a.getEvidence},
		{http.MethodGet, "/analysis-history", listing, a.listHistory},
		{http.MethodDelete, "/analysis-history/{id}", userScoped, a.deleteHistory},
		{http.MethodGet, "/healthz", public, a.healthz},
	}

	for _, r := range routes {
		if err := a.mux.HandlePath(r.method, r.pattern, a.route(r.policy, r.handler)); err != nil {
			return fmt.Errorf("register %s %s: %w", r.method, r.pattern, err)
		}
	}

	return nil
}

func (a *API) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	_, outbound := runtime.MarshalerForRequest(a.mux, r)
	body, err := outbound.Marshal(v)
	if err != nil {
		logrus.Errorf("failed to encode response of %s: %v", r.URL.Path, err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logrus.Debugf("failed to write response of %s: %v", r.URL.Path, err)
	}
}

func (a *API) decode(r *http.Request, v interface{}) error {
	inbound, _ := runtime.MarshalerForRequest(a.mux, r)
	err := inbound.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
	if err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", service.ErrInvalidInput, err)
	}
	return nil
}

type analyzeRequest struct {
	Content string `json:"content"`
	// Article is the field name older clients send.
	Article string `json:"article"`
	URL     string `json:"url"`
}

func (a *API) analyze(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req analyzeRequest
	if err := a.decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.Content == "" {
		req.Content = req.Article
	}

	result, err := a.analysis.Analyze(r.Context(), service.AnalyzeRequest{
		AttemptID: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
		UserID:    userOf(r),
		Content:   req.Content,
		URL:       req.URL,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	a.writeJSON(w, r, http.StatusOK, result)
}

func (a *API) getArticle(w http.ResponseWriter, r *http.Request, params map[string]string) {
	withEvidence := false
	if raw := r.URL.Query().Get("evidence"); raw != "" {
		var err error
		if withEvidence, err = strconv.ParseBool(raw); err != nil {
			a.writeError(w, r, fmt.Errorf("%w: evidence must be a boolean", service.ErrInvalidInput))
			return
		}
	}

	article, err := a.articles.GetArticle(r.Context(), params["id"], withEvidence)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	a.writeJSON(w, r, http.StatusOK, article)
}

func (a *API) deleteArticle(w http.ResponseWriter, r *http.Request, params map[string]string) {
	if err := a.articles.DeleteArticle(r.Context(), userOf(r), params["id"]); err != nil {
		a.writeError(w, r, err)
		return
	}

	a.writeJSON(w, r, http.StatusOK, map[string]bool{"success": true})
}

func (a *API) createImpact(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req service.CreateImpactRequest
	if err := a.decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	impact, err := a.impacts.CreateImpact(r.Context(), userOf(r), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	a.writeJSON(w, r, http.StatusOK, impact)
}

type voteRequest struct {
	VoteType string `json:"voteType"`
}

func (a *API) vote(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var req voteRequest
	if err := a.decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	if _, err := a.impacts.Vote(r.Context(), userOf(r), params["id"], req.VoteType); err != nil {
		a.writeError(w, r, err)
		return
	}

	a.writeJSON(w, r, http.StatusOK, map[string]bool{"success": true})
}

func (a *API) voteScoped(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var req voteRequest
	if err := a.decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	impact, err := a.impacts.VoteScoped(r.Context(), userOf(r), params["id"], params["impact_id"], req.VoteType)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	a.writeJSON(w, r, http.StatusOK, map[string]interface{}{"success": true, "impact": impact})
}

func (a *API) addEvidence(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req service.AddEvidenceRequest
	if err := a.decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	evidence, err := a.impacts.AddEvidence(r.Context(), userOf(r), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	a.writeJSON(w, r, http.StatusOK, evidence)
}

func (a *API) getEvidence(w http.ResponseWriter, r *http.Request, params map[string]string) {
	evidence, err := a.articles.GetEvidence(r.Context(), params["id"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	a.writeJSON(w, r, http.StatusOK, evidence)
}

// listHistory always answers 200, with no analyses when the caller is unknown.
func (a *API) listHistory(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	analyses, err := a.history.ListHistory(r.Context(), userOf(r))
	if err != nil {
		logrus.Errorf("failed to list analysis history: %v", err)
		analyses = []*service.HistoryView{}
	}

	a.writeJSON(w, r, http.StatusOK, map[string]interface{}{"analyses": analyses})
}

func (a *API) deleteHistory(w http.ResponseWriter, r *http.Request, params map[string]string) {
	if err := a.history.DeleteHistory(r.Context(), userOf(r), params["id"]); err != nil {
		a.writeError(w, r, err)
		return
	}

	a.writeJSON(w, r, http.StatusOK, map[string]bool{"success": true})
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	if err := a.store.Ping(r.Context()); err != nil {
		a.writeError(w, r, fmt.Errorf("%w: %w", service.ErrStorageFailure, err))
		return
	}

	a.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
