package domain

type Principal struct {
	Subject string
	Roles   []string
	Scopes  []string
}

type Authorizer interface {
	Require(principal Principal, resource string, permission string) error
}
