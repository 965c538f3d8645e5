package domain

type PolicyInput struct {
	Subject    string   `json:"subject"`
	Roles      []string `json:"roles"`
	Scopes     []string `json:"scopes"`
	Resource   string   `json:"resource"`
	Permission string   `json:"permission"`
}

type PolicyDeny struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type PolicyResult struct {
	Allow bool         `json:"allow"`
	Deny  []PolicyDeny `json:"deny,omitempty"`
}

type PolicyEvaluation struct {
	BundleID   string       `json:"bundle_id,omitempty"`
	BundleHash string       `json:"bundle_hash"`
	Result     PolicyResult `json:"result"`
}
