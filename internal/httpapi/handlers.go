package httpapi

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"horse.fit/allball/internal/db"
	"horse.fit/allball/internal/globaltime"
)

const (
	defaultLimit     = 20
	maxLimit         = 100
	defaultRunsLimit = 20
	maxRunsLimit     = 200
	maxOffset        = 1_000_000
	healthTimeout    = 2 * time.Second
)

type leagueInfo struct {
	League string `json:"league"`
	Sport  string `json:"sport"`
	Region string `json:"region"`
}

func (s *Server) handleHealth(c echo.Context) error {
	data := map[string]any{
		"service": "allball",
		"time":    globaltime.UTC(),
	}
	if p, ok := s.store.(pinger); ok {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("health check ping failed")
			data["database"] = "unavailable"
		} else {
			data["database"] = "ok"
		}
	}
	return success(c, data)
}

func (s *Server) handleArticles(c echo.Context) error {
	query, errs := parseArticleQuery(c)
	if len(errs) > 0 {
		return failValidation(c, errs)
	}
	return s.listArticles(c, query)
}

func (s *Server) handleRecentArticles(c echo.Context) error {
	limit, err := parseBoundedInt(c.QueryParam("limit"), defaultLimit, 1, maxLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}
	return s.listArticles(c, db.ArticleQuery{PublishedOnly: true, Sort: db.SortNewest, Limit: limit})
}

func (s *Server) handleArticlesByLeague(c echo.Context) error {
	query, errs := parseArticleQuery(c)
	if len(errs) > 0 {
		return failValidation(c, errs)
	}
	query.LeagueID = normalizeKey(c.Param("league"))
	return s.listArticles(c, query)
}

func (s *Server) handleArticlesBySport(c echo.Context) error {
	query, errs := parseArticleQuery(c)
	if len(errs) > 0 {
		return failValidation(c, errs)
	}
	query.Sport = normalizeKey(c.Param("sport"))
	return s.listArticles(c, query)
}

func (s *Server) listArticles(c echo.Context, query db.ArticleQuery) error {
	items, err := s.store.ListArticles(c.Request().Context(), query)
	if err != nil {
		s.logger.Error().Err(err).
			Str("sport", query.Sport).
			Str("league", query.LeagueID).
			Msg("list articles failed")
		return internalError(c, "Failed to load articles")
	}
	if items == nil {
		items = []db.ArticleRecord{}
	}

	return successList(c, items, len(items), query.Limit, query.Offset, map[string]any{
		"sport":          query.Sport,
		"league":         query.LeagueID,
		"region":         query.Region,
		"published_only": query.PublishedOnly,
		"sort":           query.Sort,
	})
}

func (s *Server) handleArticle(c echo.Context) error {
	slug := strings.TrimSpace(c.Param("slug"))
	if slug == "" {
		return failNotFound(c, "Article not found")
	}

	article, err := s.store.GetArticleBySlug(c.Request().Context(), slug)
	if err != nil {
		s.logger.Error().Err(err).Str("slug", slug).Msg("get article failed")
		return internalError(c, "Failed to load article")
	}
	if article == nil {
		return failNotFound(c, "Article not found")
	}
	return success(c, article)
}

func (s *Server) handleLeagues(c echo.Context) error {
	items := make([]leagueInfo, 0)
	if s.registry != nil {
		sport := normalizeKey(c.QueryParam("sport"))
		for _, src := range s.registry.Sources() {
			if sport != "" && src.Sport != sport {
				continue
			}
			items = append(items, leagueInfo{League: src.LeagueID, Sport: src.Sport, Region: src.Region})
		}
	}
	return success(c, map[string]any{"items": items})
}

func (s *Server) handleSports(c echo.Context) error {
	items := []string{}
	if s.registry != nil {
		items = s.registry.Sports()
	}
	return success(c, map[string]any{"items": items})
}

func (s *Server) handleRuns(c echo.Context) error {
	limit, err := parseBoundedInt(c.QueryParam("limit"), defaultRunsLimit, 1, maxRunsLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	runs, err := s.store.ListRuns(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("list pipeline runs failed")
		return internalError(c, "Failed to load pipeline runs")
	}
	if runs == nil {
		runs = []db.RunRecord{}
	}
	return successList(c, runs, len(runs), limit, 0, nil)
}

func parseArticleQuery(c echo.Context) (db.ArticleQuery, map[string]string) {
	errs := make(map[string]string)
	query := db.ArticleQuery{
		Sport:    normalizeKey(c.QueryParam("sport")),
		LeagueID: normalizeKey(c.QueryParam("league")),
		Region:   normalizeKey(c.QueryParam("region")),
	}

	limit, err := parseBoundedInt(c.QueryParam("limit"), defaultLimit, 1, maxLimit)
	if err != nil {
		errs["limit"] = err.Error()
	}
	query.Limit = limit

	offset, err := parseBoundedInt(c.QueryParam("offset"), 0, 0, maxOffset)
	if err != nil {
		errs["offset"] = err.Error()
	}
	query.Offset = offset

	query.PublishedOnly = true
	if raw := strings.TrimSpace(c.QueryParam("published_only")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			errs["published_only"] = "must be true or false"
		}
		query.PublishedOnly = v
	}

	switch sort := strings.ToLower(strings.TrimSpace(c.QueryParam("sort"))); sort {
	case "", db.SortNewest:
		query.Sort = db.SortNewest
	case db.SortOldest:
		query.Sort = db.SortOldest
	default:
		errs["sort"] = fmt.Sprintf("must be %q or %q", db.SortNewest, db.SortOldest)
	}

	return query, errs
}

func normalizeKey(raw string) string {
	return strings.TrimSpace(strings.ToLower(raw))
}

func parseBoundedInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}
