// Package models defines the core data structures used throughout the application.
package models

import (
	"fmt"
	"strconv"
	"strings"
)

// RecordColumns are the tabular column names of a Repository, in order.
var RecordColumns = []string{
	"repo_name",
	"username",
	"creation_date",
	"stars",
	"forks",
	"last_update",
	"description",
	"topics",
}

// NullText is how a null description is shown in tabular output.
const NullText = "null"

// Repository is one flattened repository row owned by Username.
// Missing upstream fields are carried as zero values. Description is nil
// only when upstream sent an explicit null.
type Repository struct {
	RepoName     string   `db:"repo_name" json:"repo_name"`
	Username     string   `db:"username" json:"username"`
	CreationDate string   `db:"creation_date" json:"creation_date"`
	Stars        int      `db:"stars" json:"stars"`
	Forks        int      `db:"forks" json:"forks"`
	LastUpdate   string   `db:"last_update" json:"last_update"`
	Description  *string  `db:"description" json:"description"`
	Topics       []string `db:"topics" json:"topics"`
}

// Values returns the record as strings in RecordColumns order.
func (r Repository) Values() []string {
	return []string{
		r.RepoName,
		r.Username,
		r.CreationDate,
		strconv.Itoa(r.Stars),
		strconv.Itoa(r.Forks),
		r.LastUpdate,
		r.DescriptionText(),
		"[" + strings.Join(r.Topics, ", ") + "]",
	}
}

// DescriptionText returns the description, or NullText when it is null.
func (r Repository) DescriptionText() string {
	if r.Description == nil {
		return NullText
	}
	return *r.Description
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// Quota bounds how many items a single fetch may return.
type Quota struct {
	UsersPerLocation int `json:"users_per_location"`
	ReposPerUser     int `json:"repos_per_user"`
}

// Validate rejects negative limits. Zero is allowed and yields no items.
func (q Quota) Validate() error {
	if q.UsersPerLocation < 0 {
		return fmt.Errorf("users per location must not be negative, got %d", q.UsersPerLocation)
	}
	if q.ReposPerUser < 0 {
		return fmt.Errorf("repos per user must not be negative, got %d", q.ReposPerUser)
	}
	return nil
}

// ParseLocations splits a comma separated list, dropping blanks.
func ParseLocations(raw string) []string {
	var locations []string
	for _, part := range strings.Split(raw, ",") {
		if loc := strings.TrimSpace(part); loc != "" {
			locations = append(locations, loc)
		}
	}
	return locations
}
