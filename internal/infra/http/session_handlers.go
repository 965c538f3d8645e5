package http

import (
	"net/http"
	"strings"

	"bizzshort/internal/domain"
	"bizzshort/internal/usecase"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type startSessionRequest struct {
	ProfileID string   `json:"profile_id"`
	AdIDs     []string `json:"ad_ids"`
	Placement string   `json:"placement"`
}

type outcomeResponse struct {
	Outcome domain.AdOutcome `json:"outcome"`
	State   domain.AdState   `json:"state,omitempty"`
}

// preferencesRequest uses pointers so an omitted field can be told apart from
// an explicit false.
type preferencesRequest struct {
	ShowBannerAds       *bool   `json:"showBannerAds"`
	ShowSidebarAds      *bool   `json:"showSidebarAds"`
	ShowPersonalizedAds *bool   `json:"showPersonalizedAds"`
	Frequency           *string `json:"frequency"`
}

type preferencesResponse struct {
	ProfileID   string               `json:"profile_id"`
	Preferences domain.AdPreferences `json:"preferences"`
	Persisted   *bool                `json:"persisted,omitempty"`
}

func (r preferencesRequest) toDomain() (domain.AdPreferences, error) {
	switch {
	case r.ShowBannerAds == nil:
		return domain.AdPreferences{}, &domain.ValidationError{Field: "showBannerAds", Reason: "is required"}
	case r.ShowSidebarAds == nil:
		return domain.AdPreferences{}, &domain.ValidationError{Field: "showSidebarAds", Reason: "is required"}
	case r.ShowPersonalizedAds == nil:
		return domain.AdPreferences{}, &domain.ValidationError{Field: "showPersonalizedAds", Reason: "is required"}
	case r.Frequency == nil || strings.TrimSpace(*r.Frequency) == "":
		return domain.AdPreferences{}, &domain.ValidationError{Field: "frequency", Reason: "is required"}
	}
	return domain.AdPreferences{
		ShowBannerAds:       *r.ShowBannerAds,
		ShowSidebarAds:      *r.ShowSidebarAds,
		ShowPersonalizedAds: *r.ShowPersonalizedAds,
		Frequency:           strings.TrimSpace(*r.Frequency),
	}, nil
}

func (s *Server) handleStartSession(c *gin.Context) {
	if !s.enforceRateLimit(c, routeSessions, domain.Principal{}) {
		return
	}
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid JSON body")
		return
	}
	req.ProfileID = strings.TrimSpace(req.ProfileID)
	if len(req.ProfileID) > maxIdentifierLen {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "profile_id must be 1-128 characters")
		return
	}
	for _, id := range req.AdIDs {
		if id == "" || len(id) > maxIdentifierLen {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "ad_ids must be 1-128 characters each")
			return
		}
	}
	in := usecase.StartSessionInput{ProfileID: req.ProfileID, AdIDs: req.AdIDs}
	if s.content != nil {
		in.Select = s.content.SelectAdsFor(strings.TrimSpace(req.Placement))
	}
	session, err := s.sessions.Start(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session.Snapshot())
}

func (s *Server) lookupSession(c *gin.Context) (*usecase.PageSession, bool) {
	if !s.enforceRateLimit(c, routeSessions, domain.Principal{}) {
		return nil, false
	}
	id, ok := parseUUIDParam(c, "session_id")
	if !ok {
		return nil, false
	}
	session, err := s.sessions.Get(id)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return session, true
}

func (s *Server) handleGetSession(c *gin.Context) {
	session, ok := s.lookupSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

func (s *Server) handleEndSession(c *gin.Context) {
	if !s.enforceRateLimit(c, routeSessions, domain.Principal{}) {
		return
	}
	id, ok := parseUUIDParam(c, "session_id")
	if !ok {
		return
	}
	if err := s.sessions.End(id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleHideAd(c *gin.Context) {
	session, ok := s.lookupSession(c)
	if !ok {
		return
	}
	adID, ok := parseIdentifierParam(c, "ad_id")
	if !ok {
		return
	}
	actor := strings.TrimSpace(c.GetHeader("X-Actor-Key"))
	if len(actor) > maxIdentifierLen {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "X-Actor-Key must be at most 128 characters")
		return
	}
	outcome := session.RequestHide(c.Request.Context(), adID, actor)
	if outcome == domain.OutcomeRateLimited {
		c.JSON(http.StatusTooManyRequests, errorResponse{
			Code:    "RATE_LIMITED",
			Message: usecase.RateLimitNotice,
			Details: map[string]any{"outcome": outcome, "ad_id": adID},
		})
		return
	}
	s.writeOutcome(c, session, adID, outcome)
}

func (s *Server) handleUnhideAd(c *gin.Context) {
	session, ok := s.lookupSession(c)
	if !ok {
		return
	}
	adID, ok := parseIdentifierParam(c, "ad_id")
	if !ok {
		return
	}
	outcome := session.RequestUnhide(c.Request.Context(), adID)
	s.writeOutcome(c, session, adID, outcome)
}

func (s *Server) writeOutcome(c *gin.Context, session *usecase.PageSession, adID string, outcome domain.AdOutcome) {
	resp := outcomeResponse{Outcome: outcome}
	if state, ok := session.State(adID); ok {
		resp.State = state
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRemoveAd(c *gin.Context) {
	session, ok := s.lookupSession(c)
	if !ok {
		return
	}
	adID, ok := parseIdentifierParam(c, "ad_id")
	if !ok {
		return
	}
	if err := session.RemoveElement(adID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetPreferences(c *gin.Context) {
	if !s.enforceRateLimit(c, routeProfiles, domain.Principal{}) {
		return
	}
	profileID, ok := parseIdentifierParam(c, "profile_id")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, preferencesResponse{
		ProfileID:   profileID,
		Preferences: s.profiles.Preferences(c.Request.Context(), profileID),
	})
}

// handlePutPreferences overwrites the whole record. A failed write is still
// answered 200 so the page keeps working. persisted tells the caller.
func (s *Server) handlePutPreferences(c *gin.Context) {
	if !s.enforceRateLimit(c, routeProfiles, domain.Principal{}) {
		return
	}
	profileID, ok := parseIdentifierParam(c, "profile_id")
	if !ok {
		return
	}
	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid JSON body")
		return
	}
	prefs, err := req.toDomain()
	if err != nil {
		writeError(c, err)
		return
	}
	persisted := true
	if err := s.profiles.SavePreferences(c.Request.Context(), profileID, prefs); err != nil {
		persisted = false
		s.log.Warn("ad preferences not persisted", zap.String("profile_id", profileID), zap.Error(err))
	}
	c.JSON(http.StatusOK, preferencesResponse{
		ProfileID:   profileID,
		Preferences: prefs,
		Persisted:   &persisted,
	})
}

func (s *Server) handleGetHiddenAds(c *gin.Context) {
	if !s.enforceRateLimit(c, routeProfiles, domain.Principal{}) {
		return
	}
	profileID, ok := parseIdentifierParam(c, "profile_id")
	if !ok {
		return
	}
	hidden := s.profiles.HiddenAds(c.Request.Context(), profileID)
	c.JSON(http.StatusOK, gin.H{"profile_id": profileID, "hidden_ad_ids": hidden.IDs()})
}
