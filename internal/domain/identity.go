package domain

// Identity is an authenticated participant resolved from a verified token.
type Identity struct {
	ID        string `json:"_id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}
