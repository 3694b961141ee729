package gitlab

import (
	"fmt"
	"strings"
)

// Separator delimits commit and note blocks.
const Separator = "----------------------------------------------------------------"

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`)

// Escape neutralises Telegram Markdown emphasis markers in untrusted text.
func Escape(s string) string { return markdownEscaper.Replace(s) }

func renderPush(ev *PushEvent) (string, bool) {
	var msg strings.Builder
	fmt.Fprintf(&msg, "*%s (%s) - %d new commits*\n",
		Escape(ev.Project.Name), Escape(ev.Project.DefaultBranch), ev.TotalCommitsCount)
	for _, c := range ev.Commits {
		msg.WriteString(Separator + "\n")
		msg.WriteString(Escape(strings.TrimRight(c.Message, " \t\r\n")))
		msg.WriteString("\n" + Escape(c.URL) + "\n")
	}
	msg.WriteString(Separator + "\n")
	return msg.String(), true
}

// Issue actions outside open/close are suppressed until real payloads show
// what a useful message would be.
func renderIssue(ev *IssueEvent) (string, bool) {
	var msg strings.Builder
	project := Escape(ev.Project.Name)
	switch ev.ObjectAttributes.Action {
	case "open":
		fmt.Fprintf(&msg, "*%s new Issue for %s*\n", project, Escape(issueAssignee(ev)))
	case "close":
		fmt.Fprintf(&msg, "*%s Issue closed by %s*\n", project, Escape(ev.User.Name))
	default:
		return "", false
	}
	fmt.Fprintf(&msg, "*%s*\n", Escape(ev.ObjectAttributes.Title))
	fmt.Fprintf(&msg, "see %s for further details", Escape(ev.ObjectAttributes.URL))
	return msg.String(), true
}

func issueAssignee(ev *IssueEvent) string {
	if ev.Assignee != nil && ev.Assignee.Name != "" {
		return ev.Assignee.Name
	}
	if len(ev.Assignees) > 0 && ev.Assignees[0].Name != "" {
		return ev.Assignees[0].Name
	}
	return "nobody"
}

func renderNote(ev *NoteEvent) (string, bool) {
	project := Escape(ev.Project.Name)
	user := Escape(ev.User.Name)

	var header string
	switch ev.ObjectAttributes.NoteableType {
	case "Commit":
		id := ""
		if ev.Commit != nil {
			id = shortSHA(ev.Commit.ID)
		}
		header = fmt.Sprintf("*%s: %s commented on commit %s*", project, user, id)
	case "MergeRequest":
		var iid int64
		if ev.MergeRequest != nil {
			iid = ev.MergeRequest.IID
		}
		header = fmt.Sprintf("*%s: %s commented on merge request !%d*", project, user, iid)
	case "Issue":
		var iid int64
		if ev.Issue != nil {
			iid = ev.Issue.IID
		}
		header = fmt.Sprintf("*%s: %s commented on issue #%d*", project, user, iid)
	case "Snippet":
		var id int64
		if ev.Snippet != nil {
			id = ev.Snippet.ID
		}
		header = fmt.Sprintf("*%s: %s commented on snippet %d*", project, user, id)
	default:
		return "", false
	}

	var msg strings.Builder
	msg.WriteString(header + "\n")
	msg.WriteString(Separator + "\n")
	msg.WriteString(Escape(strings.TrimRight(ev.ObjectAttributes.Note, " \t\r\n")) + "\n")
	msg.WriteString(Escape(ev.ObjectAttributes.URL))
	return msg.String(), true
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

func renderMergeRequest(ev *MergeRequestEvent) (string, bool) {
	attrs := ev.ObjectAttributes
	switch attrs.Action {
	case "open", "close":
	default:
		return "", false
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "*%s merge request !%d %s*\n", Escape(ev.Project.Name), attrs.IID, Escape(attrs.State))
	fmt.Fprintf(&msg, "%s → %s\n",
		Escape(attrs.Source.Namespace+":"+attrs.SourceBranch),
		Escape(attrs.Target.Namespace+":"+attrs.TargetBranch))
	fmt.Fprintf(&msg, "*%s*\n", Escape(attrs.Title))
	if d := strings.TrimSpace(attrs.Description); d != "" {
		msg.WriteString(Escape(d) + "\n")
	}
	msg.WriteString(Escape(attrs.URL))
	return msg.String(), true
}

func renderBuild(ev *BuildEvent) (string, bool) {
	var msg strings.Builder
	fmt.Fprintf(&msg, "*%s: %s / %s %s*\n",
		Escape(ev.ProjectName), Escape(ev.BuildStage), Escape(ev.BuildName), Escape(ev.BuildStatus))
	msg.WriteString(Escape(strings.TrimRight(ev.Commit.Message, " \t\r\n")) + "\n")
	fmt.Fprintf(&msg, "%s <%s>", Escape(ev.Commit.AuthorName), Escape(ev.Commit.AuthorEmail))
	return msg.String(), true
}
