package domain

import "time"

// Credential is the persisted login: the bearer token, the user it was
// issued to and the project the user last selected.
type Credential struct {
	APIURL          string
	Token           string
	User            User
	ActiveProjectID *int
	UpdatedAt       time.Time
}
