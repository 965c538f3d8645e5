package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"bizzshort/internal/domain"
)

type docRepoStub struct {
	docs map[string]domain.Document
}

func newDocRepoStub() *docRepoStub {
	return &docRepoStub{docs: map[string]domain.Document{}}
}

func (r *docRepoStub) key(c domain.Collection, id string) string { return string(c) + "/" + id }

func (r *docRepoStub) Create(ctx context.Context, doc domain.Document) error {
	r.docs[r.key(doc.Collection, doc.ID)] = doc
	return nil
}

func (r *docRepoStub) Get(ctx context.Context, c domain.Collection, id string) (domain.Document, error) {
	doc, ok := r.docs[r.key(c, id)]
	if !ok {
		return domain.Document{}, domain.ErrNotFound
	}
	return doc, nil
}

func (r *docRepoStub) Replace(ctx context.Context, doc domain.Document) error {
	if _, ok := r.docs[r.key(doc.Collection, doc.ID)]; !ok {
		return domain.ErrNotFound
	}
	r.docs[r.key(doc.Collection, doc.ID)] = doc
	return nil
}

func (r *docRepoStub) Delete(ctx context.Context, c domain.Collection, id string) error {
	if _, ok := r.docs[r.key(c, id)]; !ok {
		return domain.ErrNotFound
	}
	delete(r.docs, r.key(c, id))
	return nil
}

func (r *docRepoStub) List(ctx context.Context, f domain.DocumentFilter) ([]domain.Document, error) {
	var out []domain.Document
	for _, doc := range r.docs {
		if doc.Collection != f.Collection {
			continue
		}
		if f.Placement != "" && doc.StringField("placement") != f.Placement {
			continue
		}
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if len(out) > f.PageSize() {
		out = out[:f.PageSize()]
	}
	return out, nil
}

type prefixHasher struct{}

func (prefixHasher) Hash(secret string) (string, error) {
	return "hashed:" + secret, nil
}

type auditRepoStub struct {
	events []domain.AuditEvent
}

func (r *auditRepoStub) Append(ctx context.Context, event domain.AuditEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *auditRepoStub) Last(ctx context.Context) (domain.AuditEvent, error) {
	if len(r.events) == 0 {
		return domain.AuditEvent{}, domain.ErrNotFound
	}
	return r.events[len(r.events)-1], nil
}

func (r *auditRepoStub) List(ctx context.Context, c domain.Collection, limit int) ([]domain.AuditEvent, error) {
	return r.events, nil
}

func newContentService(clock *fakeClock) (*ContentService, *docRepoStub, *auditRepoStub) {
	docs := newDocRepoStub()
	audit := &auditRepoStub{}
	var seq int
	return &ContentService{
		Docs:   docs,
		Hasher: prefixHasher{},
		Audit:  NewAuditTrail(audit, clock.Now),
		Now:    clock.Now,
		NewID: func() string {
			seq++
			return fmt.Sprintf("doc-%d", seq)
		},
	}, docs, audit
}

func TestContentService_CreateValidates(t *testing.T) {
	svc, _, _ := newContentService(newFakeClock())
	_, err := svc.Create(context.Background(), domain.CollectionArticles, map[string]any{"title": "No body"}, "admin")
	verr, ok := domain.IsValidationError(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	if verr.Field != "content" {
		t.Fatalf("expected content to be reported, got %s", verr.Field)
	}
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatal("validation errors must unwrap to ErrInvalidArgument")
	}

	_, err = svc.Create(context.Background(), domain.Collection("podcasts"), map[string]any{}, "admin")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected unknown collection to be not found, got %v", err)
	}
}

func TestContentService_UserPasswordHashedAndRedacted(t *testing.T) {
	ctx := context.Background()
	svc, docs, _ := newContentService(newFakeClock())
	created, err := svc.Create(ctx, domain.CollectionUsers, map[string]any{
		"email":    "Editor@BizzShort.com",
		"name":     "Desk Editor",
		"role":     "editor",
		"password": "s3cret-pass",
	}, "admin")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, ok := created.Fields["password"]; ok {
		t.Fatal("password must not be returned")
	}
	if created.StringField("email") != "editor@bizzshort.com" {
		t.Fatalf("expected normalized email, got %q", created.StringField("email"))
	}
	stored := docs.docs["users/doc-1"]
	if stored.StringField("password") != "hashed:s3cret-pass" {
		t.Fatalf("expected hashed password in storage, got %q", stored.StringField("password"))
	}
	got, err := svc.Get(ctx, domain.CollectionUsers, "doc-1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if _, ok := got.Fields["password"]; ok {
		t.Fatal("password must not be returned from Get")
	}
}

func TestContentService_ReplaceKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	svc, _, _ := newContentService(clock)
	created, err := svc.Create(ctx, domain.CollectionEvents, map[string]any{
		"title": "Startup Summit", "date": "2026-07-01", "location": "Mumbai",
	}, "admin")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.StringField("date") != "2026-07-01T00:00:00Z" {
		t.Fatalf("expected normalized date, got %q", created.StringField("date"))
	}
	clock.Advance(time.Hour)
	replaced, err := svc.Replace(ctx, domain.CollectionEvents, created.ID, map[string]any{
		"title": "Startup Summit 2026", "date": "2026-07-02T10:00:00+05:30", "location": "Pune",
	}, "admin")
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if !replaced.CreatedAt.Equal(created.CreatedAt) || !replaced.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("unexpected timestamps: %+v", replaced)
	}
	if _, ok := replaced.Fields["description"]; ok {
		t.Fatal("replace must not merge fields")
	}
	if _, err := svc.Replace(ctx, domain.CollectionEvents, "missing", map[string]any{
		"title": "x", "date": "2026-07-02", "location": "y",
	}, "admin"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestContentService_ListCursor(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	svc, _, _ := newContentService(clock)
	for i := 0; i < 3; i++ {
		clock.Advance(time.Minute)
		if _, err := svc.Create(ctx, domain.CollectionVideos, map[string]any{
			"title": fmt.Sprintf("Clip %d", i), "video_url": "https://youtu.be/x",
		}, "admin"); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	page, err := svc.List(ctx, domain.DocumentFilter{Collection: domain.CollectionVideos, Limit: 2}, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 2 || page.NextCursor != "2" || page.Items[0].Title() != "Clip 2" {
		t.Fatalf("unexpected first page: %+v", page)
	}
	page, err = svc.List(ctx, domain.DocumentFilter{Collection: domain.CollectionVideos, Limit: 2}, page.NextCursor)
	if err != nil {
		t.Fatalf("list next: %v", err)
	}
	if len(page.Items) != 1 || page.NextCursor != "" {
		t.Fatalf("unexpected last page: %+v", page)
	}
	if _, err := svc.List(ctx, domain.DocumentFilter{Collection: domain.CollectionVideos}, "abc"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid cursor error, got %v", err)
	}
}

func TestContentService_ActiveAdsAndSelection(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	svc, _, _ := newContentService(clock)
	create := func(title, placement string, extra map[string]any) string {
		fields := map[string]any{"title": title, "image_url": "https://cdn/x.png", "link": "https://x", "placement": placement}
		for k, v := range extra {
			fields[k] = v
		}
		doc, err := svc.Create(ctx, domain.CollectionAdvertisements, fields, "admin")
		if err != nil {
			t.Fatalf("create ad %s: %v", title, err)
		}
		return doc.ID
	}
	banner := create("Bank", domain.PlacementBanner, nil)
	sidebar := create("Fintech", domain.PlacementSidebar, map[string]any{"budget": "1500.5"})
	create("Paused", domain.PlacementBanner, map[string]any{"active": false})
	create("Expired", domain.PlacementSidebar, map[string]any{"ends_at": "2026-01-01"})
	create("Future", domain.PlacementInline, map[string]any{"starts_at": "2027-01-01"})

	ads, err := svc.ActiveAds(ctx, "")
	if err != nil {
		t.Fatalf("active ads: %v", err)
	}
	if len(ads) != 2 {
		t.Fatalf("expected 2 active ads, got %d", len(ads))
	}

	ids, err := svc.SelectAdsFor("")(ctx, domain.AdPreferences{ShowBannerAds: false, ShowSidebarAds: true})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(ids) != 1 || ids[0] != sidebar {
		t.Fatalf("expected only sidebar ad, got %v (banner %s)", ids, banner)
	}
}

func TestContentService_AuditTrail(t *testing.T) {
	ctx := context.Background()
	svc, _, audit := newContentService(newFakeClock())
	doc, err := svc.Create(ctx, domain.CollectionVideos, map[string]any{"title": "A", "video_url": "https://youtu.be/a"}, "admin-key")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(ctx, domain.CollectionVideos, doc.ID, "admin-key"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(audit.events) != 2 {
		t.Fatalf("expected 2 audit events, got %d", len(audit.events))
	}
	if audit.events[1].Action != domain.AuditDelete || audit.events[1].DocumentID != doc.ID {
		t.Fatalf("unexpected delete event: %+v", audit.events[1])
	}
	for _, event := range audit.events {
		if strings.Contains(event.ActorHash, "admin-key") {
			t.Fatal("actor must be hashed")
		}
	}
	if err := VerifyAuditChain(audit.events); err != nil {
		t.Fatalf("verify chain: %v", err)
	}
}
