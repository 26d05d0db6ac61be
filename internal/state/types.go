package state

// RepositoryStatus tracks how far a repository restore has progressed.
type RepositoryStatus string

// Repository status progression recorded in the ledger. Completed and failed
// are terminal; every other status moves strictly forward.
const (
	RepositoryStatusPending                 RepositoryStatus = "pending"
	RepositoryStatusRepositoryCreated       RepositoryStatus = "repo_created"
	RepositoryStatusIssuesReplaying         RepositoryStatus = "issues_replaying"
	RepositoryStatusIssuesDone              RepositoryStatus = "issues_done"
	RepositoryStatusPullRequestsDocumenting RepositoryStatus = "prs_documenting"
	RepositoryStatusCompleted               RepositoryStatus = "completed"
	RepositoryStatusFailed                  RepositoryStatus = "failed"
)

// repositoryStatusRanks orders the forward-only progression. Failed is absent
// because it is reachable only through EventRepositoryFailed.
var repositoryStatusRanks = map[RepositoryStatus]int{
	RepositoryStatusPending:                 0,
	RepositoryStatusRepositoryCreated:       1,
	RepositoryStatusIssuesReplaying:         2,
	RepositoryStatusIssuesDone:              3,
	RepositoryStatusPullRequestsDocumenting: 4,
	RepositoryStatusCompleted:               5,
}

// IssueStatus tracks how far a single issue replay has progressed.
type IssueStatus string

// Issue status progression recorded in the ledger.
const (
	IssueStatusPending   IssueStatus = "pending"
	IssueStatusCreated   IssueStatus = "created"
	IssueStatusCommented IssueStatus = "commented"
	IssueStatusClosed    IssueStatus = "closed"
)

// EventKind names a durable progress notch recorded against the ledger.
type EventKind string

// Event kinds accepted by Tracker.Record.
const (
	EventRepositoryCreated        EventKind = "repository_created"
	EventRepositoryStatusAdvanced EventKind = "repository_status_advanced"
	EventRepositoryFailed         EventKind = "repository_failed"
	EventIssueCreated             EventKind = "issue_created"
	EventIssueCommentPosted       EventKind = "issue_comment_posted"
	EventIssueCommentsCompleted   EventKind = "issue_comments_completed"
	EventIssueClosed              EventKind = "issue_closed"
	EventPullRequestIssueCreated  EventKind = "pull_request_issue_created"
	EventPullRequestIssueClosed   EventKind = "pull_request_issue_closed"
)

// Event describes one progress notch to record. Only the fields relevant to
// the event kind need to be populated.
type Event struct {
	Kind              EventKind
	Repository        string
	IssueNumber       int
	TargetIssueNumber int
	PullRequestNumber int
	RepositoryStatus  RepositoryStatus
	Reason            string
}

// Ledger is the durable restore state persisted after every recorded operation.
type Ledger struct {
	SourceOrganization string             `json:"source_organization"`
	TargetOrganization string             `json:"target_organization"`
	Repositories       []RepositoryRecord `json:"repositories"`
}

// RepositoryState returns the named repository record when the ledger tracks it.
func (ledger Ledger) RepositoryState(repositoryName string) (RepositoryRecord, bool) {
	for _, repositoryRecord := range ledger.Repositories {
		if repositoryRecord.Name == repositoryName {
			return repositoryRecord, true
		}
	}
	return RepositoryRecord{}, false
}

// RepositoryRecord tracks the restore progress of a single repository.
type RepositoryRecord struct {
	Name          string              `json:"name"`
	Status        RepositoryStatus    `json:"status"`
	FailureReason string              `json:"failure_reason,omitempty"`
	Issues        []IssueRecord       `json:"issues,omitempty"`
	PullRequests  []PullRequestRecord `json:"pull_requests,omitempty"`
}

// IssueRecord tracks the replay progress of a single issue.
type IssueRecord struct {
	SourceNumber   int         `json:"source_number"`
	TargetNumber   int         `json:"target_number"`
	Status         IssueStatus `json:"status"`
	CommentsPosted int         `json:"comments_posted"`
}

// PullRequestRecord tracks the progress of one pull request documentation issue.
type PullRequestRecord struct {
	Number            int  `json:"number"`
	TargetIssueNumber int  `json:"target_issue_number"`
	Documented        bool `json:"documented"`
}
