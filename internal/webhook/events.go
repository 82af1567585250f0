package webhook

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Repository struct {
	Name     string `json:"name" validate:"required"`
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
	Owner    struct {
		Login string `json:"login"`
		Name  string `json:"name"`
	} `json:"owner"`
}

type PushCommit struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	URL     string `json:"url"`
	Author  struct {
		Name     string `json:"name"`
		Username string `json:"username"`
	} `json:"author"`
}

type PushEvent struct {
	Ref     string `json:"ref" validate:"required"`
	Before  string `json:"before"`
	After   string `json:"after"`
	Created bool   `json:"created"`
	Deleted bool   `json:"deleted"`
	Forced  bool   `json:"forced"`
	Compare string `json:"compare"`
	Pusher  struct {
		Name string `json:"name"`
	} `json:"pusher"`
	Commits    []PushCommit `json:"commits"`
	Repository Repository   `json:"repository" validate:"required"`
}

type PullRequestEvent struct {
	Action      string `json:"action" validate:"required"`
	Number      int    `json:"number"`
	PullRequest struct {
		Title   string `json:"title"`
		HTMLURL string `json:"html_url"`
		Merged  bool   `json:"merged"`
		User    struct {
			Login string `json:"login"`
		} `json:"user"`
	} `json:"pull_request"`
	Repository Repository `json:"repository" validate:"required"`
}

type IssuesEvent struct {
	Action string `json:"action" validate:"required"`
	Issue  struct {
		Number  int    `json:"number"`
		Title   string `json:"title"`
		HTMLURL string `json:"html_url"`
		User    struct {
			Login string `json:"login"`
		} `json:"user"`
	} `json:"issue"`
	Repository Repository `json:"repository" validate:"required"`
}

type IssueCommentEvent struct {
	Action string `json:"action" validate:"required"`
	Issue  struct {
		Number  int    `json:"number"`
		Title   string `json:"title"`
		HTMLURL string `json:"html_url"`
	} `json:"issue"`
	Comment struct {
		HTMLURL string `json:"html_url"`
		User    struct {
			Login string `json:"login"`
		} `json:"user"`
	} `json:"comment"`
	Repository Repository `json:"repository" validate:"required"`
}
