package github

import (
	"encoding/json"

	gh "github.com/google/go-github/v57/github"

	"locrepos/models"
)

// repoPayload decodes a repository listing item. Timestamps are kept as the
// raw upstream strings and description as raw JSON, so an odd timestamp
// format cannot fail the page and a null description stays distinguishable
// from an absent one.
type repoPayload struct {
	gh.Repository
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
	PushedAt    json.RawMessage `json:"pushed_at"`
	Description json.RawMessage `json:"description"`
}

// toRecord flattens an API repository. Absent fields become "", 0 or an
// empty topic list; a JSON null description becomes nil.
func toRecord(username string, repo *repoPayload) models.Repository {
	if repo == nil {
		repo = &repoPayload{}
	}

	return models.Repository{
		RepoName:     repo.GetName(),
		Username:     username,
		CreationDate: repo.CreatedAt,
		Stars:        repo.GetStargazersCount(),
		Forks:        repo.GetForksCount(),
		LastUpdate:   repo.UpdatedAt,
		Description:  description(repo.Description),
		Topics:       append([]string{}, repo.Topics...),
	}
}

func description(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return models.StringPtr("")
	}
	if string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// Not a JSON string; keep the upstream text as is
		return models.StringPtr(string(raw))
	}
	return &s
}
