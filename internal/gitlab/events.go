// Package gitlab decodes GitLab webhook payloads and renders them into
// Telegram Markdown notifications.
//
// Each object_kind is a variant with its own payload type and renderer,
// registered in a Registry. Adding a kind means registering a renderer, not
// editing a dispatch function.
package gitlab

// Kind is the value of a payload's object_kind field.
type Kind string

// Known webhook kinds.
const (
	KindPush         Kind = "push"
	KindTagPush      Kind = "tag_push"
	KindIssue        Kind = "issue"
	KindNote         Kind = "note"
	KindMergeRequest Kind = "merge_request"
	KindWikiPage     Kind = "wiki_page"
	KindPipeline     Kind = "pipeline"
	KindBuild        Kind = "build"
)

// envelope is the minimal shape every payload shares.
type envelope struct {
	ObjectKind string `json:"object_kind"`
}

// Project is the "project" object embedded in most payloads.
type Project struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	WebURL            string `json:"web_url"`
	Namespace         string `json:"namespace"`
	PathWithNamespace string `json:"path_with_namespace"`
	DefaultBranch     string `json:"default_branch"`
}

// User is the acting user ("user", "assignee").
type User struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Author is a commit author.
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Commit is one entry of a push, or the commit a note is attached to.
type Commit struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	URL     string `json:"url"`
	Author  Author `json:"author"`
}

// PushEvent covers both push and tag_push.
type PushEvent struct {
	ObjectKind        string   `json:"object_kind"`
	Ref               string   `json:"ref"`
	UserName          string   `json:"user_name"`
	TotalCommitsCount int      `json:"total_commits_count"`
	Project           Project  `json:"project"`
	Commits           []Commit `json:"commits"`
}

// IssueAttributes is object_attributes of an issue event.
type IssueAttributes struct {
	ID     int64  `json:"id"`
	IID    int64  `json:"iid"`
	Title  string `json:"title"`
	State  string `json:"state"`
	Action string `json:"action"`
	URL    string `json:"url"`
}

// IssueEvent is an issue opened/closed/updated.
type IssueEvent struct {
	ObjectKind       string          `json:"object_kind"`
	User             User            `json:"user"`
	Project          Project         `json:"project"`
	ObjectAttributes IssueAttributes `json:"object_attributes"`
	Assignee         *User           `json:"assignee"`
	Assignees        []User          `json:"assignees"`
}

// NoteAttributes is object_attributes of a note (comment) event.
type NoteAttributes struct {
	ID           int64  `json:"id"`
	Note         string `json:"note"`
	NoteableType string `json:"noteable_type"`
	URL          string `json:"url"`
}

// NoteMergeRequest is the merge request a note is attached to.
type NoteMergeRequest struct {
	ID    int64  `json:"id"`
	IID   int64  `json:"iid"`
	Title string `json:"title"`
}

// NoteIssue is the issue a note is attached to.
type NoteIssue struct {
	ID    int64  `json:"id"`
	IID   int64  `json:"iid"`
	Title string `json:"title"`
}

// NoteSnippet is the snippet a note is attached to.
type NoteSnippet struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// NoteEvent is a comment on a commit, merge request, issue or snippet.
type NoteEvent struct {
	ObjectKind       string            `json:"object_kind"`
	User             User              `json:"user"`
	Project          Project           `json:"project"`
	ObjectAttributes NoteAttributes    `json:"object_attributes"`
	Commit           *Commit           `json:"commit"`
	MergeRequest     *NoteMergeRequest `json:"merge_request"`
	Issue            *NoteIssue        `json:"issue"`
	Snippet          *NoteSnippet      `json:"snippet"`
}

// BranchSource is the source/target project of a merge request.
type BranchSource struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
}

// MergeRequestAttributes is object_attributes of a merge_request event.
type MergeRequestAttributes struct {
	ID           int64        `json:"id"`
	IID          int64        `json:"iid"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	State        string       `json:"state"`
	Action       string       `json:"action"`
	URL          string       `json:"url"`
	SourceBranch string       `json:"source_branch"`
	TargetBranch string       `json:"target_branch"`
	Source       BranchSource `json:"source"`
	Target       BranchSource `json:"target"`
}

// MergeRequestEvent is a merge request lifecycle event.
type MergeRequestEvent struct {
	ObjectKind       string                 `json:"object_kind"`
	User             User                   `json:"user"`
	Project          Project                `json:"project"`
	ObjectAttributes MergeRequestAttributes `json:"object_attributes"`
}

// BuildCommit is the commit block of a (legacy) build event.
type BuildCommit struct {
	ID          int64  `json:"id"`
	SHA         string `json:"sha"`
	Message     string `json:"message"`
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
}

// BuildEvent is a CI job state change.
type BuildEvent struct {
	ObjectKind  string      `json:"object_kind"`
	Ref         string      `json:"ref"`
	BuildID     int64       `json:"build_id"`
	BuildName   string      `json:"build_name"`
	BuildStage  string      `json:"build_stage"`
	BuildStatus string      `json:"build_status"`
	ProjectName string      `json:"project_name"`
	Commit      BuildCommit `json:"commit"`
}
