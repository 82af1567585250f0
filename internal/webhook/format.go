package webhook

import (
	"fmt"
	"strings"

	"devrelay/internal/aliases"
)

// Notification is one formatted event: the full variant goes to a
// project's rooms, the simple variant to its simple rooms.
type Notification struct {
	Project string `json:"project"`
	Event   string `json:"event"`
	Full    string `json:"full"`
	Simple  string `json:"simple"`
}

func branchOf(ref string) string {
	return strings.TrimPrefix(ref, "refs/heads/")
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 80 {
		s = s[:77] + "..."
	}
	return s
}

// FormatPush renders a push event. Commit authors run through the
// alias table so the chat shows canonical names.
func FormatPush(tbl *aliases.Table, ev *PushEvent) Notification {
	repo := ev.Repository.Name
	branch := branchOf(ev.Ref)
	pusher := tbl.Get(ev.Pusher.Name)

	var full, simple string
	switch {
	case ev.Created:
		full = fmt.Sprintf("[%s] %s created branch %s", repo, pusher, branch)
		simple = full
	case ev.Deleted:
		full = fmt.Sprintf("[%s] %s deleted branch %s", repo, pusher, branch)
		simple = full
	default:
		verb := "pushed"
		if ev.Forced {
			verb = "force-pushed"
		}
		n := len(ev.Commits)
		plural := "s"
		if n == 1 {
			plural = ""
		}
		var b strings.Builder
		fmt.Fprintf(&b, "[%s] %s %s %d commit%s to %s (%s)", repo, pusher, verb, n, plural, branch, ev.Compare)
		for _, commit := range ev.Commits {
			author := commit.Author.Username
			if author == "" {
				author = commit.Author.Name
			}
			fmt.Fprintf(&b, "\n%s %s: %s", shortSHA(commit.ID), tbl.Get(author), firstLine(commit.Message))
		}
		full = b.String()
		simple = fmt.Sprintf("[%s] %s %s %d commit%s to %s", repo, pusher, verb, n, plural, branch)
	}

	return Notification{Project: repo, Event: "push", Full: full, Simple: simple}
}

// FormatPullRequest renders a pull_request event. A closed PR that was
// merged reads as merged; other actions pass through as-is.
func FormatPullRequest(tbl *aliases.Table, ev *PullRequestEvent) Notification {
	repo := ev.Repository.Name
	action := ev.Action
	if action == "closed" && ev.PullRequest.Merged {
		action = "merged"
	}
	user := tbl.Get(ev.PullRequest.User.Login)
	full := fmt.Sprintf("[%s] %s %s pull request #%d: %s (%s)",
		repo, user, action, ev.Number, firstLine(ev.PullRequest.Title), ev.PullRequest.HTMLURL)
	simple := fmt.Sprintf("[%s] %s %s pull request #%d", repo, user, action, ev.Number)
	return Notification{Project: repo, Event: "pull_request", Full: full, Simple: simple}
}

func FormatIssues(tbl *aliases.Table, ev *IssuesEvent) Notification {
	repo := ev.Repository.Name
	user := tbl.Get(ev.Issue.User.Login)
	full := fmt.Sprintf("[%s] %s %s issue #%d: %s (%s)",
		repo, user, ev.Action, ev.Issue.Number, firstLine(ev.Issue.Title), ev.Issue.HTMLURL)
	simple := fmt.Sprintf("[%s] %s %s issue #%d", repo, user, ev.Action, ev.Issue.Number)
	return Notification{Project: repo, Event: "issues", Full: full, Simple: simple}
}

func FormatIssueComment(tbl *aliases.Table, ev *IssueCommentEvent) Notification {
	repo := ev.Repository.Name
	user := tbl.Get(ev.Comment.User.Login)
	full := fmt.Sprintf("[%s] %s commented on issue #%d: %s (%s)",
		repo, user, ev.Issue.Number, firstLine(ev.Issue.Title), ev.Comment.HTMLURL)
	simple := fmt.Sprintf("[%s] %s commented on issue #%d", repo, user, ev.Issue.Number)
	return Notification{Project: repo, Event: "issue_comment", Full: full, Simple: simple}
}
