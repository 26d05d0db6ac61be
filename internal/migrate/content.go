package migrate

import (
	"fmt"
	"strings"
	"time"

	"github.com/rdmolony/backup-and-restore-a-github-org/internal/backup"
)

const (
	noDescriptionPlaceholderConstant       = "*No description provided*"
	noCommentTextPlaceholderConstant       = "*No comment text*"
	unknownValueLabelConstant              = "unknown"
	footerSeparatorConstant                = "\n\n---\n"
	footerLineSeparatorConstant            = "\n"
	issueAttributionTemplateConstant       = "*Originally created by @%s on %s*"
	commentAttributionTemplateConstant     = "*Originally posted by @%s on %s*"
	provenanceTemplateConstant             = "*Migrated from %s/%s*"
	pullRequestTitleTemplateConstant       = "[PR] %s"
	pullRequestSummaryTemplateConstant     = "*Documents pull request #%d (%s)*"
	pullRequestBranchesTemplateConstant    = "*Branches: %s -> %s*"
	pullRequestReviewCountTemplateConstant = "*Reviews: %d*"
	repositoryDescriptionTemplateConstant  = "Migrated from %s/%s"
)

// BodyComposer renders the text posted to the target organization. Every body
// carries an attribution footer naming the original author and a provenance
// line naming the source repository.
type BodyComposer struct {
	SourceOrganization string
}

// IssueBody renders a replayed issue body.
func (composer BodyComposer) IssueBody(repositoryName string, issue backup.Issue) string {
	footerLines := []string{
		fmt.Sprintf(issueAttributionTemplateConstant, authorLabel(issue.Author), timestampLabel(issue.CreatedAt)),
		fmt.Sprintf(provenanceTemplateConstant, composer.SourceOrganization, repositoryName),
	}
	return composeBody(issue.Body, noDescriptionPlaceholderConstant, footerLines)
}

// CommentBody renders a replayed comment body.
func (composer BodyComposer) CommentBody(repositoryName string, comment backup.Comment) string {
	footerLines := []string{
		fmt.Sprintf(commentAttributionTemplateConstant, authorLabel(comment.Author), timestampLabel(comment.CreatedAt)),
		fmt.Sprintf(provenanceTemplateConstant, composer.SourceOrganization, repositoryName),
	}
	return composeBody(comment.Body, noCommentTextPlaceholderConstant, footerLines)
}

// PullRequestTitle renders the documentation issue title for a pull request.
func (composer BodyComposer) PullRequestTitle(pullRequest backup.PullRequest) string {
	return fmt.Sprintf(pullRequestTitleTemplateConstant, pullRequest.Title)
}

// PullRequestBody renders the documentation issue body describing a pull
// request. The footer names the original number and state, the branch pair,
// and the review count when reviews were recorded.
func (composer BodyComposer) PullRequestBody(repositoryName string, pullRequest backup.PullRequest) string {
	footerLines := []string{
		fmt.Sprintf(pullRequestSummaryTemplateConstant, pullRequest.Number, strings.ToLower(string(pullRequest.State))),
		fmt.Sprintf(pullRequestBranchesTemplateConstant, pullRequest.HeadRefName, pullRequest.BaseRefName),
	}
	if len(pullRequest.Reviews) > 0 {
		footerLines = append(footerLines, fmt.Sprintf(pullRequestReviewCountTemplateConstant, len(pullRequest.Reviews)))
	}
	footerLines = append(footerLines,
		fmt.Sprintf(issueAttributionTemplateConstant, authorLabel(pullRequest.Author), timestampLabel(pullRequest.CreatedAt)),
		fmt.Sprintf(provenanceTemplateConstant, composer.SourceOrganization, repositoryName),
	)
	return composeBody(pullRequest.Body, noDescriptionPlaceholderConstant, footerLines)
}

// RepositoryDescription renders the description recorded on created repositories.
func (composer BodyComposer) RepositoryDescription(repositoryName string) string {
	return fmt.Sprintf(repositoryDescriptionTemplateConstant, composer.SourceOrganization, repositoryName)
}

func composeBody(originalBody string, emptyPlaceholder string, footerLines []string) string {
	bodyText := originalBody
	if len(strings.TrimSpace(bodyText)) == 0 {
		bodyText = emptyPlaceholder
	}
	return bodyText + footerSeparatorConstant + strings.Join(footerLines, footerLineSeparatorConstant)
}

func authorLabel(author backup.Author) string {
	trimmedLogin := strings.TrimSpace(author.Login)
	if len(trimmedLogin) == 0 {
		return unknownValueLabelConstant
	}
	return trimmedLogin
}

func timestampLabel(createdAt time.Time) string {
	if createdAt.IsZero() {
		return unknownValueLabelConstant
	}
	return createdAt.UTC().Format(time.RFC3339)
}
