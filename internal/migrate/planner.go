package migrate

import (
	"sort"

	"github.com/rdmolony/backup-and-restore-a-github-org/internal/backup"
	"github.com/rdmolony/backup-and-restore-a-github-org/internal/state"
)

// ResumePoint identifies the next unreplayed position inside one repository.
type ResumePoint struct {
	NextIssueIndex       int `yaml:"next_issue"`
	NextCommentIndex     int `yaml:"next_comment"`
	NextPullRequestIndex int `yaml:"next_pull_request"`
}

// RepositoryPlan summarizes the pending work for one repository.
type RepositoryPlan struct {
	Name             string                 `yaml:"name"`
	IssueCount       int                    `yaml:"issues"`
	PullRequestCount int                    `yaml:"pull_requests"`
	ItemCount        int                    `yaml:"items"`
	Status           state.RepositoryStatus `yaml:"status"`
	Resume           ResumePoint            `yaml:"resume"`
	LoadFailure      string                 `yaml:"load_failure,omitempty"`
}

// PlanTotals aggregates counts across every repository in the plan.
type PlanTotals struct {
	Repositories int `yaml:"repositories"`
	Issues       int `yaml:"issues"`
	PullRequests int `yaml:"pull_requests"`
	Items        int `yaml:"items"`
	Completed    int `yaml:"completed"`
	Failed       int `yaml:"failed"`
}

// RunPlan is the read-only preview of an organization restore.
type RunPlan struct {
	SourceOrganization string           `yaml:"source_organization"`
	TargetOrganization string           `yaml:"target_organization"`
	Repositories       []RepositoryPlan `yaml:"repositories"`
	Totals             PlanTotals       `yaml:"totals"`
}

// LedgerView exposes the read side of the ledger needed for planning.
type LedgerView interface {
	RepositoryState(repositoryName string) (state.RepositoryRecord, bool)
}

// OrderRepositoriesByComplexity returns the repositories sorted by ascending
// item count with name ties broken alphabetically. Repositories whose backup
// data failed to load carry zero items and therefore surface first.
func OrderRepositoriesByComplexity(repositories []backup.Repository) []backup.Repository {
	orderedRepositories := append([]backup.Repository(nil), repositories...)
	sort.SliceStable(orderedRepositories, func(firstIndex int, secondIndex int) bool {
		firstCount := orderedRepositories[firstIndex].ItemCount()
		secondCount := orderedRepositories[secondIndex].ItemCount()
		if firstCount == secondCount {
			return orderedRepositories[firstIndex].Name < orderedRepositories[secondIndex].Name
		}
		return firstCount < secondCount
	})
	return orderedRepositories
}

// ComputeResumePoint locates the next unreplayed issue, comment, and pull
// request for a repository by matching ledger records against the backup.
func ComputeResumePoint(repository backup.Repository, repositoryRecord state.RepositoryRecord, recordKnown bool) ResumePoint {
	if !recordKnown {
		return ResumePoint{}
	}

	resumePoint := ResumePoint{
		NextIssueIndex:       len(repository.Issues),
		NextPullRequestIndex: len(repository.PullRequests),
	}

	for issueIndex, issue := range repository.Issues {
		issueRecord, issueTracked := findIssueRecord(repositoryRecord, issue.Number)
		if !issueTracked {
			resumePoint.NextIssueIndex = issueIndex
			break
		}
		if issueReplayComplete(issue, issueRecord) {
			continue
		}
		resumePoint.NextIssueIndex = issueIndex
		resumePoint.NextCommentIndex = issueRecord.CommentsPosted
		break
	}

	for pullRequestIndex, pullRequest := range repository.PullRequests {
		pullRequestRecord, pullRequestTracked := findPullRequestRecord(repositoryRecord, pullRequest.Number)
		if !pullRequestTracked || !pullRequestRecord.Documented {
			resumePoint.NextPullRequestIndex = pullRequestIndex
			break
		}
	}

	return resumePoint
}

// BuildRunPlan assembles the preview for an organization restore without
// touching the network or mutating the ledger.
func BuildRunPlan(organization backup.Organization, targetOrganization string, ledger LedgerView) RunPlan {
	runPlan := RunPlan{
		SourceOrganization: organization.Name,
		TargetOrganization: targetOrganization,
	}

	for _, repository := range OrderRepositoriesByComplexity(organization.Repositories) {
		repositoryRecord, recordKnown := ledger.RepositoryState(repository.Name)
		repositoryStatus := state.RepositoryStatusPending
		if recordKnown {
			repositoryStatus = repositoryRecord.Status
		}

		repositoryPlan := RepositoryPlan{
			Name:             repository.Name,
			IssueCount:       len(repository.Issues),
			PullRequestCount: len(repository.PullRequests),
			ItemCount:        repository.ItemCount(),
			Status:           repositoryStatus,
			Resume:           ComputeResumePoint(repository, repositoryRecord, recordKnown),
		}
		if repository.LoadFailure != nil {
			repositoryPlan.LoadFailure = repository.LoadFailure.Error()
		}

		runPlan.Repositories = append(runPlan.Repositories, repositoryPlan)
		runPlan.Totals.Repositories++
		runPlan.Totals.Issues += repositoryPlan.IssueCount
		runPlan.Totals.PullRequests += repositoryPlan.PullRequestCount
		runPlan.Totals.Items += repositoryPlan.ItemCount
		switch repositoryStatus {
		case state.RepositoryStatusCompleted:
			runPlan.Totals.Completed++
		case state.RepositoryStatusFailed:
			runPlan.Totals.Failed++
		}
	}

	return runPlan
}

func issueReplayComplete(issue backup.Issue, issueRecord state.IssueRecord) bool {
	switch issueRecord.Status {
	case state.IssueStatusClosed:
		return true
	case state.IssueStatusCommented:
		return issue.State != backup.IssueStateClosed
	default:
		return false
	}
}

func findIssueRecord(repositoryRecord state.RepositoryRecord, sourceNumber int) (state.IssueRecord, bool) {
	for _, issueRecord := range repositoryRecord.Issues {
		if issueRecord.SourceNumber == sourceNumber {
			return issueRecord, true
		}
	}
	return state.IssueRecord{}, false
}

func findPullRequestRecord(repositoryRecord state.RepositoryRecord, pullRequestNumber int) (state.PullRequestRecord, bool) {
	for _, pullRequestRecord := range repositoryRecord.PullRequests {
		if pullRequestRecord.Number == pullRequestNumber {
			return pullRequestRecord, true
		}
	}
	return state.PullRequestRecord{}, false
}
