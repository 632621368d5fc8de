package model

import "time"

// UserIdentity is what a verified initData blob tells us about the caller.
type UserIdentity struct {
	ID           int64
	FirstName    string
	LastName     string
	Username     string
	LanguageCode string
	StartParam   string    // start_param / startapp, may be empty
	AuthDate     time.Time // zero when absent
}
