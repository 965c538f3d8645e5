package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"bizzshort/internal/domain"

	"github.com/gin-gonic/gin"
)

type documentResponse struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	Fields     map[string]any `json:"fields"`
	CreatedAt  string         `json:"created_at"`
	UpdatedAt  string         `json:"updated_at"`
}

type listResponse struct {
	Items      []documentResponse `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

type auditEventResponse struct {
	Seq           int64  `json:"seq"`
	Action        string `json:"action"`
	Collection    string `json:"collection"`
	DocumentID    string `json:"document_id"`
	ActorHash     string `json:"actor_hash"`
	PayloadHash   string `json:"payload_hash"`
	PrevEventHash string `json:"prev_event_hash"`
	EventHash     string `json:"event_hash"`
	CreatedAt     string `json:"created_at"`
}

func toDocumentResponse(doc domain.Document) documentResponse {
	fields := doc.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	return documentResponse{
		ID:         doc.ID,
		Collection: string(doc.Collection),
		Fields:     fields,
		CreatedAt:  doc.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:  doc.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (s *Server) bindFields(c *gin.Context) (map[string]any, bool) {
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil || fields == nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "body must be a JSON object")
		return nil, false
	}
	return fields, true
}

func (s *Server) handleCreateDocument(collection domain.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := s.requireAuth(c, string(collection), writePermission(collection))
		if !ok {
			return
		}
		if !s.enforceRateLimit(c, routeContentWrite, principal) {
			return
		}
		fields, ok := s.bindFields(c)
		if !ok {
			return
		}
		doc, err := s.content.Create(c.Request.Context(), collection, fields, principal.Subject)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toDocumentResponse(doc))
	}
}

func (s *Server) handleReplaceDocument(collection domain.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := s.requireAuth(c, string(collection), writePermission(collection))
		if !ok {
			return
		}
		if !s.enforceRateLimit(c, routeContentWrite, principal) {
			return
		}
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		fields, ok := s.bindFields(c)
		if !ok {
			return
		}
		doc, err := s.content.Replace(c.Request.Context(), collection, id, fields, principal.Subject)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toDocumentResponse(doc))
	}
}

func (s *Server) handleDeleteDocument(collection domain.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := s.requireAuth(c, string(collection), writePermission(collection))
		if !ok {
			return
		}
		if !s.enforceRateLimit(c, routeContentWrite, principal) {
			return
		}
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		if err := s.content.Delete(c.Request.Context(), collection, id, principal.Subject); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// readAccess gates reads. Only the users collection is private.
func (s *Server) readAccess(c *gin.Context, collection domain.Collection) (domain.Principal, bool) {
	if collection != domain.CollectionUsers {
		return domain.Principal{}, true
	}
	return s.requireAuth(c, string(collection), readPermission(collection))
}

func (s *Server) handleGetDocument(collection domain.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := s.readAccess(c, collection)
		if !ok {
			return
		}
		if !s.enforceRateLimit(c, routeContentRead, principal) {
			return
		}
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		doc, err := s.content.Get(c.Request.Context(), collection, id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toDocumentResponse(doc))
	}
}

func (s *Server) handleListDocuments(collection domain.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := s.readAccess(c, collection)
		if !ok {
			return
		}
		if !s.enforceRateLimit(c, routeContentRead, principal) {
			return
		}
		filter := domain.DocumentFilter{Collection: collection}
		filter.Query = strings.TrimSpace(c.Query("q"))
		filter.Category = strings.TrimSpace(c.Query("category"))
		filter.Language = strings.TrimSpace(c.Query("language"))
		filter.Placement = strings.TrimSpace(c.Query("placement"))
		if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit <= 0 {
				writeErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "limit must be a positive integer")
				return
			}
			filter.Limit = limit
		}
		result, err := s.content.List(c.Request.Context(), filter, strings.TrimSpace(c.Query("cursor")))
		if err != nil {
			writeError(c, err)
			return
		}
		items := make([]documentResponse, 0, len(result.Items))
		for _, doc := range result.Items {
			items = append(items, toDocumentResponse(doc))
		}
		c.JSON(http.StatusOK, listResponse{Items: items, NextCursor: result.NextCursor})
	}
}

func (s *Server) handleActiveAds(c *gin.Context) {
	if !s.enforceRateLimit(c, routeContentRead, domain.Principal{}) {
		return
	}
	placement := strings.TrimSpace(c.Query("placement"))
	switch placement {
	case "", domain.PlacementBanner, domain.PlacementSidebar, domain.PlacementInline:
	default:
		writeErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "placement must be banner, sidebar or inline")
		return
	}
	ads, err := s.content.ActiveAds(c.Request.Context(), placement)
	if err != nil {
		writeError(c, err)
		return
	}
	items := make([]documentResponse, 0, len(ads))
	for _, ad := range ads {
		items = append(items, toDocumentResponse(ad))
	}
	c.JSON(http.StatusOK, listResponse{Items: items})
}

func (s *Server) handleListAudit(c *gin.Context) {
	principal, ok := s.requireAuth(c, "audit", permAuditRead)
	if !ok {
		return
	}
	if !s.enforceRateLimit(c, routeAudit, principal) {
		return
	}
	var collection domain.Collection
	if raw := strings.TrimSpace(c.Query("collection")); raw != "" {
		parsed, ok := domain.ParseCollection(raw)
		if !ok {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "unknown collection")
			return
		}
		collection = parsed
	}
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	events, err := s.audit.Events(c.Request.Context(), collection, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]auditEventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, auditEventResponse{
			Seq:           event.Seq,
			Action:        string(event.Action),
			Collection:    string(event.Collection),
			DocumentID:    event.DocumentID,
			ActorHash:     event.ActorHash,
			PayloadHash:   event.PayloadHash,
			PrevEventHash: event.PrevEventHash,
			EventHash:     event.EventHash,
			CreatedAt:     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}
