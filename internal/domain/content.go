package domain

import (
	"fmt"
	"math"
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Collection string

const (
	CollectionArticles       Collection = "articles"
	CollectionEvents         Collection = "events"
	CollectionInterviews     Collection = "interviews"
	CollectionVideos         Collection = "videos"
	CollectionAdvertisements Collection = "advertisements"
	CollectionUsers          Collection = "users"
)

const (
	PlacementBanner  = "banner"
	PlacementSidebar = "sidebar"
	PlacementInline  = "inline"
)

func Collections() []Collection {
	return []Collection{
		CollectionArticles,
		CollectionEvents,
		CollectionInterviews,
		CollectionVideos,
		CollectionAdvertisements,
		CollectionUsers,
	}
}

func ParseCollection(raw string) (Collection, bool) {
	c := Collection(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := schemas[c]
	return c, ok
}

type FieldKind string

const (
	KindString     FieldKind = "string"
	KindText       FieldKind = "text"
	KindBool       FieldKind = "bool"
	KindNumber     FieldKind = "number"
	KindTime       FieldKind = "time"
	KindStringList FieldKind = "string_list"
	KindMoney      FieldKind = "money"
	KindEmail      FieldKind = "email"
	KindSecret     FieldKind = "secret"
)

type FieldSpec struct {
	Name     string
	Kind     FieldKind
	Required bool
	Enum     []string
}

type Schema struct {
	Collection Collection
	// TitleField is indexed for search and listing.
	TitleField string
	Fields     []FieldSpec
}

var schemas = map[Collection]Schema{
	CollectionArticles: {
		Collection: CollectionArticles,
		TitleField: "title",
		Fields: []FieldSpec{
			{Name: "title", Kind: KindString, Required: true},
			{Name: "content", Kind: KindText, Required: true},
			{Name: "category", Kind: KindString, Required: true},
			{Name: "language", Kind: KindString},
			{Name: "author", Kind: KindString},
			{Name: "image_url", Kind: KindString},
			{Name: "tags", Kind: KindStringList},
			{Name: "published_at", Kind: KindTime},
			{Name: "featured", Kind: KindBool},
			{Name: "views", Kind: KindNumber},
		},
	},
	CollectionEvents: {
		Collection: CollectionEvents,
		TitleField: "title",
		Fields: []FieldSpec{
			{Name: "title", Kind: KindString, Required: true},
			{Name: "date", Kind: KindTime, Required: true},
			{Name: "location", Kind: KindString, Required: true},
			{Name: "description", Kind: KindText},
			{Name: "category", Kind: KindString},
			{Name: "language", Kind: KindString},
			{Name: "image_url", Kind: KindString},
			{Name: "registration_url", Kind: KindString},
		},
	},
	CollectionInterviews: {
		Collection: CollectionInterviews,
		TitleField: "title",
		Fields: []FieldSpec{
			{Name: "title", Kind: KindString, Required: true},
			{Name: "person", Kind: KindString, Required: true},
			{Name: "content", Kind: KindText, Required: true},
			{Name: "designation", Kind: KindString},
			{Name: "company", Kind: KindString},
			{Name: "category", Kind: KindString},
			{Name: "language", Kind: KindString},
			{Name: "image_url", Kind: KindString},
			{Name: "video_url", Kind: KindString},
			{Name: "published_at", Kind: KindTime},
		},
	},
	CollectionVideos: {
		Collection: CollectionVideos,
		TitleField: "title",
		Fields: []FieldSpec{
			{Name: "title", Kind: KindString, Required: true},
			{Name: "video_url", Kind: KindString, Required: true},
			{Name: "platform", Kind: KindString, Enum: []string{"youtube", "instagram"}},
			{Name: "thumbnail_url", Kind: KindString},
			{Name: "category", Kind: KindString},
			{Name: "language", Kind: KindString},
			{Name: "duration_seconds", Kind: KindNumber},
			{Name: "published_at", Kind: KindTime},
		},
	},
	CollectionAdvertisements: {
		Collection: CollectionAdvertisements,
		TitleField: "title",
		Fields: []FieldSpec{
			{Name: "title", Kind: KindString, Required: true},
			{Name: "image_url", Kind: KindString, Required: true},
			{Name: "link", Kind: KindString, Required: true},
			{Name: "placement", Kind: KindString, Required: true, Enum: []string{PlacementBanner, PlacementSidebar, PlacementInline}},
			{Name: "advertiser", Kind: KindString},
			{Name: "budget", Kind: KindMoney},
			{Name: "active", Kind: KindBool},
			{Name: "starts_at", Kind: KindTime},
			{Name: "ends_at", Kind: KindTime},
			{Name: "category", Kind: KindString},
			{Name: "language", Kind: KindString},
		},
	},
	CollectionUsers: {
		Collection: CollectionUsers,
		TitleField: "name",
		Fields: []FieldSpec{
			{Name: "email", Kind: KindEmail, Required: true},
			{Name: "name", Kind: KindString, Required: true},
			{Name: "role", Kind: KindString, Required: true, Enum: []string{"admin", "editor", "reader"}},
			{Name: "password", Kind: KindSecret, Required: true},
			{Name: "language", Kind: KindString},
		},
	},
}

func SchemaFor(c Collection) (Schema, bool) {
	s, ok := schemas[c]
	return s, ok
}

// Normalize validates fields against the schema and returns a cleaned copy.
// Unknown fields are dropped. Times are rewritten as RFC3339 UTC, money as a
// fixed two-decimal string, and numbers as float64.
func (s Schema) Normalize(fields map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(s.Fields))
	for _, spec := range s.Fields {
		raw, present := fields[spec.Name]
		if !present || raw == nil || isBlankString(raw) {
			if spec.Required {
				return nil, &ValidationError{Field: spec.Name, Reason: "is required"}
			}
			continue
		}
		value, err := normalizeValue(spec, raw)
		if err != nil {
			return nil, err
		}
		out[spec.Name] = value
	}
	return out, nil
}

func (s Schema) Secrets() []string {
	var names []string
	for _, spec := range s.Fields {
		if spec.Kind == KindSecret {
			names = append(names, spec.Name)
		}
	}
	return names
}

func normalizeValue(spec FieldSpec, raw any) (any, error) {
	invalid := func(reason string) error {
		return &ValidationError{Field: spec.Name, Reason: reason}
	}
	switch spec.Kind {
	case KindString, KindText:
		str, ok := raw.(string)
		if !ok {
			return nil, invalid("must be a string")
		}
		str = strings.TrimSpace(str)
		if len(spec.Enum) > 0 && !contains(spec.Enum, str) {
			return nil, invalid("must be one of " + strings.Join(spec.Enum, ", "))
		}
		return str, nil
	case KindEmail:
		str, ok := raw.(string)
		if !ok {
			return nil, invalid("must be a string")
		}
		addr, err := mail.ParseAddress(strings.TrimSpace(str))
		if err != nil {
			return nil, invalid("must be an email address")
		}
		return strings.ToLower(addr.Address), nil
	case KindSecret:
		str, ok := raw.(string)
		if !ok {
			return nil, invalid("must be a string")
		}
		if len(str) < 8 {
			return nil, invalid("must be at least 8 characters")
		}
		return str, nil
	case KindBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, invalid("must be a boolean")
		}
		return b, nil
	case KindNumber:
		n, ok := toFloat(raw)
		if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, invalid("must be a finite number")
		}
		return n, nil
	case KindTime:
		str, ok := raw.(string)
		if !ok {
			return nil, invalid("must be an RFC3339 timestamp")
		}
		parsed, err := parseTime(strings.TrimSpace(str))
		if err != nil {
			return nil, invalid("must be an RFC3339 timestamp")
		}
		return parsed.UTC().Format(time.RFC3339), nil
	case KindStringList:
		items, ok := raw.([]any)
		if !ok {
			if typed, ok := raw.([]string); ok {
				items = make([]any, len(typed))
				for i, v := range typed {
					items[i] = v
				}
			} else {
				return nil, invalid("must be a list of strings")
			}
		}
		out := make([]any, 0, len(items))
		for _, item := range items {
			str, ok := item.(string)
			if !ok {
				return nil, invalid("must be a list of strings")
			}
			if str = strings.TrimSpace(str); str != "" {
				out = append(out, str)
			}
		}
		return out, nil
	case KindMoney:
		var (
			amount decimal.Decimal
			err    error
		)
		switch v := raw.(type) {
		case string:
			amount, err = decimal.NewFromString(strings.TrimSpace(v))
		case float64:
			amount = decimal.NewFromFloat(v)
		case int:
			amount = decimal.NewFromInt(int64(v))
		default:
			err = fmt.Errorf("unsupported type %T", raw)
		}
		if err != nil {
			return nil, invalid("must be a decimal amount")
		}
		if amount.IsNegative() {
			return nil, invalid("must not be negative")
		}
		return amount.StringFixed(2), nil
	}
	return nil, invalid("has unknown kind " + string(spec.Kind))
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func isBlankString(raw any) bool {
	str, ok := raw.(string)
	return ok && strings.TrimSpace(str) == ""
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

type Document struct {
	ID         string
	Collection Collection
	Fields     map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (d Document) StringField(name string) string {
	if v, ok := d.Fields[name].(string); ok {
		return v
	}
	return ""
}

func (d Document) Bool(name string) (bool, bool) {
	v, ok := d.Fields[name].(bool)
	return v, ok
}

func (d Document) Time(name string) (time.Time, bool) {
	raw := d.StringField(name)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (d Document) Title() string {
	if schema, ok := schemas[d.Collection]; ok {
		return d.StringField(schema.TitleField)
	}
	return d.StringField("title")
}

// ActiveAt reports whether an advertisement is switched on and inside its
// schedule window. A missing active flag counts as active.
func (d Document) ActiveAt(now time.Time) bool {
	if active, ok := d.Bool("active"); ok && !active {
		return false
	}
	if start, ok := d.Time("starts_at"); ok && now.Before(start) {
		return false
	}
	if end, ok := d.Time("ends_at"); ok && !now.Before(end) {
		return false
	}
	return true
}

type DocumentFilter struct {
	Collection Collection
	Query      string
	Category   string
	Language   string
	Placement  string
	Limit      int
	Offset     int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func (f DocumentFilter) PageSize() int {
	switch {
	case f.Limit <= 0:
		return DefaultPageSize
	case f.Limit > MaxPageSize:
		return MaxPageSize
	default:
		return f.Limit
	}
}
