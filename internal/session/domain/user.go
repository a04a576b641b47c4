package domain

import (
	"net/url"
	"time"
)

// avatarBaseURL renders a deterministic avatar from the user's name.
const avatarBaseURL = "https://api.dicebear.com/9.x/notionists/svg?seed="

type User struct {
	ID           string
	Email        string // lower-cased, unique
	Name         string
	PasswordHash string // argon2 encoded
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the public view of a user carried in session tokens and
// returned by the profile endpoint.
type Profile struct {
	ID       string
	Email    string
	Name     string
	PhotoURL string
}

func (u User) Profile() Profile {
	return Profile{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		PhotoURL: PhotoURL(u.Name),
	}
}

// PhotoURL returns the avatar URL for a display name.
func PhotoURL(name string) string {
	return avatarBaseURL + url.QueryEscape(name)
}
