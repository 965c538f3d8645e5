package domain

import (
	"encoding/json"
)

const (
	HiddenAdIDsKey   = "hidden-ad-ids"
	AdPreferencesKey = "ad-preferences"

	DefaultAdFrequency = "normal"
)

type AdPreferences struct {
	ShowBannerAds       bool   `json:"showBannerAds"`
	ShowSidebarAds      bool   `json:"showSidebarAds"`
	ShowPersonalizedAds bool   `json:"showPersonalizedAds"`
	Frequency           string `json:"frequency"`
}

func DefaultAdPreferences() AdPreferences {
	return AdPreferences{
		ShowBannerAds:       true,
		ShowSidebarAds:      true,
		ShowPersonalizedAds: true,
		Frequency:           DefaultAdFrequency,
	}
}

// AllowsPlacement reports whether an ad slot of the given placement should be
// rendered for these preferences. Unknown placements are always allowed.
func (p AdPreferences) AllowsPlacement(placement string) bool {
	switch placement {
	case PlacementBanner:
		return p.ShowBannerAds
	case PlacementSidebar:
		return p.ShowSidebarAds
	default:
		return true
	}
}

// HiddenAdSet is a set of ad element ids that keeps insertion order so the
// persisted sequence is stable.
type HiddenAdSet struct {
	order []string
	index map[string]struct{}
}

func NewHiddenAdSet(ids ...string) *HiddenAdSet {
	s := &HiddenAdSet{index: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add reports whether id was not present before.
func (s *HiddenAdSet) Add(id string) bool {
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

// Remove reports whether id was present.
func (s *HiddenAdSet) Remove(id string) bool {
	if _, ok := s.index[id]; !ok {
		return false
	}
	delete(s.index, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *HiddenAdSet) Has(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[id]
	return ok
}

func (s *HiddenAdSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// IDs returns a copy in insertion order.
func (s *HiddenAdSet) IDs() []string {
	if s == nil {
		return []string{}
	}
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *HiddenAdSet) Clone() *HiddenAdSet {
	return NewHiddenAdSet(s.IDs()...)
}

func (s *HiddenAdSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

func (s *HiddenAdSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = *NewHiddenAdSet(ids...)
	return nil
}

type AdState string

const (
	AdVisible AdState = "visible"
	AdHiding  AdState = "hiding"
	AdHidden  AdState = "hidden"
	AdShowing AdState = "showing"
)

// AdOutcome is the informational result of a hide or unhide request.
type AdOutcome string

const (
	OutcomeApplied        AdOutcome = "applied"
	OutcomeNoop           AdOutcome = "noop"
	OutcomeRateLimited    AdOutcome = "rate_limited"
	OutcomeMissingElement AdOutcome = "missing_element"
)
