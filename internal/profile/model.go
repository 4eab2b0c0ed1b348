package profile

import "time"

// Profile is the per-user record kept alongside the account.
type Profile struct {
	UserID      string
	Email       string
	DisplayName string
	LastLogin   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Fields is a partial profile write. Nil fields leave the stored value as is.
type Fields struct {
	Email       *string
	DisplayName *string
	LastLogin   *time.Time
}

// String returns a pointer to s for use in Fields.
func String(s string) *string { return &s }

// Time returns a pointer to t for use in Fields.
func Time(t time.Time) *time.Time { return &t }

func (p Profile) merge(f Fields) Profile {
	if f.Email != nil {
		p.Email = *f.Email
	}
	if f.DisplayName != nil {
		p.DisplayName = *f.DisplayName
	}
	if f.LastLogin != nil {
		p.LastLogin = f.LastLogin.UTC()
	}
	return p
}
