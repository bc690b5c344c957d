package types

// UserIdentity is resolved once during connection authentication and is
// immutable for the lifetime of the connection.
type UserIdentity struct {
	Id       string `json:"userId"`
	Username string `json:"username"`
}
