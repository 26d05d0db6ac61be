package migrate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rdmolony/backup-and-restore-a-github-org/internal/backup"
	"github.com/rdmolony/backup-and-restore-a-github-org/internal/githubapi"
	"github.com/rdmolony/backup-and-restore-a-github-org/internal/gitmirror"
	"github.com/rdmolony/backup-and-restore-a-github-org/internal/ratelimit"
	"github.com/rdmolony/backup-and-restore-a-github-org/internal/state"
)

const (
	sourceOrganizationFieldNameConstant     = "source_organization"
	targetOrganizationFieldNameConstant     = "target_organization"
	accessTokenFieldNameConstant            = "access_token"
	repositoryFieldNameConstant             = "repository"
	failureReasonFieldNameConstant          = "reason"
	sourceIssueFieldNameConstant            = "source_issue"
	targetIssueFieldNameConstant            = "target_issue"
	commentIndexFieldNameConstant           = "comment_index"
	pullRequestFieldNameConstant            = "pull_request"
	repositoryCountFieldNameConstant        = "repository_count"
	completedCountFieldNameConstant         = "completed"
	failedCountFieldNameConstant            = "failed"
	skippedCountFieldNameConstant           = "skipped"
	issuesCreatedFieldNameConstant          = "issues_created"
	commentsPostedFieldNameConstant         = "comments_posted"
	pullRequestsDocumentedFieldNameConstant = "pull_requests_documented"

	githubClientMissingMessageConstant     = "GitHub client not configured"
	callLimiterMissingMessageConstant      = "rate limiter not configured"
	progressTrackerMissingMessageConstant  = "progress tracker not configured"
	contentPublisherMissingMessageConstant = "content publisher not configured"
	requiredValueMessageConstant           = "value is required"

	runStartedLogMessageConstant                 = "restore run started"
	runFinishedLogMessageConstant                = "restore run finished"
	repositoryAlreadyCompletedLogMessageConstant = "repository already completed"
	repositoryPreviouslyFailedLogMessageConstant = "repository previously failed, skipping"
	repositoryAlreadyPresentLogMessageConstant   = "repository already present on target"
	repositoryCreatedLogMessageConstant          = "repository created"
	contentPublicationDisabledLogMessageConstant = "git content publication disabled"
	checkoutMissingLogMessageConstant            = "backup has no checkout, skipping content publication"
	contentPublicationFailedLogMessageConstant   = "content publication failed, continuing without git content"
	issueCreatedLogMessageConstant               = "issue created"
	commentPostedLogMessageConstant              = "comment posted"
	issueClosedLogMessageConstant                = "issue closed"
	pullRequestDocumentedLogMessageConstant      = "pull request documented"
	repositoryRestoredLogMessageConstant         = "repository restored"
	repositoryFailedLogMessageConstant           = "repository failed"

	runAbortedMessageTemplateConstant         = "run aborted: %s (re-run the same command to resume)"
	runAbortedWithGuidanceTemplateConstant    = "run aborted: %s; %s (re-run the same command to resume)"
	authorizationGuidanceMessageConstant      = "verify the credential grants the repo scope"
	repositoriesFailedMessageTemplateConstant = "%d of %d repositories did not complete: %s"
	failedRepositoriesJoinSeparatorConstant   = ", "
)

// InvalidInputError describes restore option validation failures.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf("%s: %s", inputError.FieldName, inputError.Message)
}

// RunAbortedError wraps a failure that stopped the run before every repository
// was attempted. The ledger already reflects all work completed before the
// abort, so re-running the same command resumes where the run stopped.
type RunAbortedError struct {
	Cause error
}

// Error describes the abort and how to resume.
func (abortError RunAbortedError) Error() string {
	var callError githubapi.CallError
	if errors.As(abortError.Cause, &callError) && callError.Kind == githubapi.FailureKindAuthorization {
		return fmt.Sprintf(runAbortedWithGuidanceTemplateConstant, abortError.Cause, authorizationGuidanceMessageConstant)
	}
	return fmt.Sprintf(runAbortedMessageTemplateConstant, abortError.Cause)
}

// Unwrap exposes the abort cause.
func (abortError RunAbortedError) Unwrap() error {
	return abortError.Cause
}

// RepositoriesFailedError reports repositories that did not reach completion.
type RepositoriesFailedError struct {
	FailedRepositories []string
	RepositoryCount    int
}

// Error names the repositories that remain incomplete.
func (failureError RepositoriesFailedError) Error() string {
	return fmt.Sprintf(
		repositoriesFailedMessageTemplateConstant,
		len(failureError.FailedRepositories),
		failureError.RepositoryCount,
		strings.Join(failureError.FailedRepositories, failedRepositoriesJoinSeparatorConstant),
	)
}

// GitHubOperations captures the remote calls the restore engine performs.
type GitHubOperations interface {
	ResolveOrganization(executionContext context.Context, organizationName string) error
	RepositoryExists(executionContext context.Context, organizationName string, repositoryName string) (bool, error)
	CreateRepository(executionContext context.Context, organizationName string, repositoryOptions githubapi.RepositoryOptions) error
	CreateIssue(executionContext context.Context, organizationName string, repositoryName string, issueTitle string, issueBody string) (int, error)
	CreateIssueComment(executionContext context.Context, organizationName string, repositoryName string, issueNumber int, commentBody string) error
	CloseIssue(executionContext context.Context, organizationName string, repositoryName string, issueNumber int) error
}

// CallAdmitter gates remote write calls by resource class.
type CallAdmitter interface {
	Admit(executionContext context.Context, resourceClass ratelimit.ResourceClass) error
}

// ProgressRecorder persists restore progress and reports recorded state.
type ProgressRecorder interface {
	Record(event state.Event) error
	RepositoryState(repositoryName string) (state.RepositoryRecord, bool)
}

// ContentPublisher mirrors backed-up git content into the target organization.
type ContentPublisher interface {
	Publish(executionContext context.Context, request gitmirror.PublishRequest) error
}

// ServiceDependencies describes required collaborators for the restore engine.
type ServiceDependencies struct {
	Logger           *zap.Logger
	GitHubClient     GitHubOperations
	CallLimiter      CallAdmitter
	ProgressTracker  ProgressRecorder
	ContentPublisher ContentPublisher
}

// RestoreOptions configures one restore run.
type RestoreOptions struct {
	Organization       backup.Organization
	TargetOrganization string
	AccessToken        string
	SkipContent        bool
}

func (options RestoreOptions) composer() BodyComposer {
	return BodyComposer{SourceOrganization: options.Organization.Name}
}

// RunResult captures the observable outcome of a restore run. Counters tally
// the remote work performed by this run; repositories completed in earlier
// runs count as completed without contributing to the call tallies.
type RunResult struct {
	CompletedRepositories  int
	FailedRepositories     []string
	SkippedRepositories    []string
	IssuesCreated          int
	CommentsPosted         int
	PullRequestsDocumented int
}

// Service replays a backed-up organization into a target organization,
// strictly sequentially, resuming from the recorded ledger position.
type Service struct {
	logger           *zap.Logger
	gitHubClient     GitHubOperations
	callLimiter      CallAdmitter
	progressTracker  ProgressRecorder
	contentPublisher ContentPublisher
}

var (
	errGitHubClientMissing     = errors.New(githubClientMissingMessageConstant)
	errCallLimiterMissing      = errors.New(callLimiterMissingMessageConstant)
	errProgressTrackerMissing  = errors.New(progressTrackerMissingMessageConstant)
	errContentPublisherMissing = errors.New(contentPublisherMissingMessageConstant)
)

// NewService constructs a Service with the provided dependencies.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.GitHubClient == nil {
		return nil, errGitHubClientMissing
	}
	if dependencies.CallLimiter == nil {
		return nil, errCallLimiterMissing
	}
	if dependencies.ProgressTracker == nil {
		return nil, errProgressTrackerMissing
	}
	if dependencies.ContentPublisher == nil {
		return nil, errContentPublisherMissing
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	service := &Service{
		logger:           logger,
		gitHubClient:     dependencies.GitHubClient,
		callLimiter:      dependencies.CallLimiter,
		progressTracker:  dependencies.ProgressTracker,
		contentPublisher: dependencies.ContentPublisher,
	}

	return service, nil
}

// Execute restores the organization described by options. Abort-class
// failures stop the run immediately; repository-local failures mark the
// repository failed and the run continues with the next one.
func (service *Service) Execute(executionContext context.Context, options RestoreOptions) (RunResult, error) {
	if validationError := service.validateOptions(options); validationError != nil {
		return RunResult{}, validationError
	}

	if resolveError := service.gitHubClient.ResolveOrganization(executionContext, options.TargetOrganization); resolveError != nil {
		if errors.Is(resolveError, context.Canceled) || errors.Is(resolveError, context.DeadlineExceeded) {
			return RunResult{}, resolveError
		}
		return RunResult{}, RunAbortedError{Cause: resolveError}
	}

	orderedRepositories := OrderRepositoriesByComplexity(options.Organization.Repositories)
	service.logger.Info(
		runStartedLogMessageConstant,
		zap.String(sourceOrganizationFieldNameConstant, options.Organization.Name),
		zap.String(targetOrganizationFieldNameConstant, options.TargetOrganization),
		zap.Int(repositoryCountFieldNameConstant, len(orderedRepositories)),
	)

	runResult := RunResult{}
	incompleteRepositories := []string{}

	for _, repository := range orderedRepositories {
		repositoryRecord, recordKnown := service.progressTracker.RepositoryState(repository.Name)
		if recordKnown && repositoryRecord.Status == state.RepositoryStatusCompleted {
			runResult.CompletedRepositories++
			service.logger.Debug(repositoryAlreadyCompletedLogMessageConstant, zap.String(repositoryFieldNameConstant, repository.Name))
			continue
		}
		if recordKnown && repositoryRecord.Status == state.RepositoryStatusFailed {
			runResult.SkippedRepositories = append(runResult.SkippedRepositories, repository.Name)
			incompleteRepositories = append(incompleteRepositories, repository.Name)
			service.logger.Info(
				repositoryPreviouslyFailedLogMessageConstant,
				zap.String(repositoryFieldNameConstant, repository.Name),
				zap.String(failureReasonFieldNameConstant, repositoryRecord.FailureReason),
			)
			continue
		}

		repositoryError := service.restoreRepository(executionContext, options, repository, &runResult)
		if repositoryError == nil {
			runResult.CompletedRepositories++
			service.logger.Info(repositoryRestoredLogMessageConstant, zap.String(repositoryFieldNameConstant, repository.Name))
			continue
		}
		if errors.Is(repositoryError, context.Canceled) || errors.Is(repositoryError, context.DeadlineExceeded) {
			return runResult, repositoryError
		}
		if !isRepositoryLocalFailure(repositoryError) {
			return runResult, RunAbortedError{Cause: repositoryError}
		}

		if recordError := service.progressTracker.Record(state.Event{
			Kind:       state.EventRepositoryFailed,
			Repository: repository.Name,
			Reason:     repositoryError.Error(),
		}); recordError != nil {
			return runResult, RunAbortedError{Cause: recordError}
		}
		runResult.FailedRepositories = append(runResult.FailedRepositories, repository.Name)
		incompleteRepositories = append(incompleteRepositories, repository.Name)
		service.logger.Warn(
			repositoryFailedLogMessageConstant,
			zap.String(repositoryFieldNameConstant, repository.Name),
			zap.Error(repositoryError),
		)
	}

	service.logger.Info(
		runFinishedLogMessageConstant,
		zap.Int(completedCountFieldNameConstant, runResult.CompletedRepositories),
		zap.Int(failedCountFieldNameConstant, len(runResult.FailedRepositories)),
		zap.Int(skippedCountFieldNameConstant, len(runResult.SkippedRepositories)),
		zap.Int(issuesCreatedFieldNameConstant, runResult.IssuesCreated),
		zap.Int(commentsPostedFieldNameConstant, runResult.CommentsPosted),
		zap.Int(pullRequestsDocumentedFieldNameConstant, runResult.PullRequestsDocumented),
	)

	if len(incompleteRepositories) > 0 {
		return runResult, RepositoriesFailedError{
			FailedRepositories: incompleteRepositories,
			RepositoryCount:    len(orderedRepositories),
		}
	}

	return runResult, nil
}

func (service *Service) validateOptions(options RestoreOptions) error {
	if len(strings.TrimSpace(options.Organization.Name)) == 0 {
		return InvalidInputError{FieldName: sourceOrganizationFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(options.TargetOrganization)) == 0 {
		return InvalidInputError{FieldName: targetOrganizationFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(options.AccessToken)) == 0 {
		return InvalidInputError{FieldName: accessTokenFieldNameConstant, Message: requiredValueMessageConstant}
	}
	return nil
}

func (service *Service) restoreRepository(executionContext context.Context, options RestoreOptions, repository backup.Repository, runResult *RunResult) error {
	if repository.LoadFailure != nil {
		return repository.LoadFailure
	}

	repositoryRecord, recordKnown := service.progressTracker.RepositoryState(repository.Name)
	currentStatus := state.RepositoryStatusPending
	if recordKnown {
		currentStatus = repositoryRecord.Status
	}

	if currentStatus == state.RepositoryStatusPending {
		if creationError := service.ensureRepositoryCreated(executionContext, options, repository, recordKnown); creationError != nil {
			return creationError
		}
		currentStatus = state.RepositoryStatusRepositoryCreated
	}

	if currentStatus == state.RepositoryStatusRepositoryCreated {
		if publishError := service.publishRepositoryContent(executionContext, options, repository); publishError != nil {
			return publishError
		}
		nextStatus := state.RepositoryStatusIssuesReplaying
		if len(repository.Issues) == 0 {
			nextStatus = state.RepositoryStatusIssuesDone
		}
		if advanceError := service.advanceRepositoryStatus(repository.Name, nextStatus); advanceError != nil {
			return advanceError
		}
		currentStatus = nextStatus
	}

	if currentStatus == state.RepositoryStatusIssuesReplaying {
		if replayError := service.replayIssues(executionContext, options, repository, runResult); replayError != nil {
			return replayError
		}
		if advanceError := service.advanceRepositoryStatus(repository.Name, state.RepositoryStatusIssuesDone); advanceError != nil {
			return advanceError
		}
		currentStatus = state.RepositoryStatusIssuesDone
	}

	if currentStatus == state.RepositoryStatusIssuesDone {
		nextStatus := state.RepositoryStatusPullRequestsDocumenting
		if len(repository.PullRequests) == 0 {
			nextStatus = state.RepositoryStatusCompleted
		}
		if advanceError := service.advanceRepositoryStatus(repository.Name, nextStatus); advanceError != nil {
			return advanceError
		}
		currentStatus = nextStatus
	}

	if currentStatus == state.RepositoryStatusPullRequestsDocumenting {
		if documentError := service.documentPullRequests(executionContext, options, repository, runResult); documentError != nil {
			return documentError
		}
		if advanceError := service.advanceRepositoryStatus(repository.Name, state.RepositoryStatusCompleted); advanceError != nil {
			return advanceError
		}
	}

	return nil
}

// ensureRepositoryCreated brings a pending repository to repo_created.
// The existence pre-check runs only when the ledger has never seen the
// repository, so resumed runs do not spend a remote call on it.
func (service *Service) ensureRepositoryCreated(executionContext context.Context, options RestoreOptions, repository backup.Repository, recordKnown bool) error {
	if !recordKnown {
		repositoryPresent, existenceError := service.gitHubClient.RepositoryExists(executionContext, options.TargetOrganization, repository.Name)
		if existenceError != nil {
			return existenceError
		}
		if repositoryPresent {
			service.logger.Info(repositoryAlreadyPresentLogMessageConstant, zap.String(repositoryFieldNameConstant, repository.Name))
			return service.progressTracker.Record(state.Event{Kind: state.EventRepositoryCreated, Repository: repository.Name})
		}
	}

	creationError := service.gitHubClient.CreateRepository(executionContext, options.TargetOrganization, githubapi.RepositoryOptions{
		Name:        repository.Name,
		Description: options.composer().RepositoryDescription(repository.Name),
		Private:     true,
	})
	if creationError != nil {
		var callError githubapi.CallError
		if !errors.As(creationError, &callError) || callError.Kind != githubapi.FailureKindAlreadyExists {
			return creationError
		}
		service.logger.Info(repositoryAlreadyPresentLogMessageConstant, zap.String(repositoryFieldNameConstant, repository.Name))
	} else {
		service.logger.Info(repositoryCreatedLogMessageConstant, zap.String(repositoryFieldNameConstant, repository.Name))
	}

	return service.progressTracker.Record(state.Event{Kind: state.EventRepositoryCreated, Repository: repository.Name})
}

// publishRepositoryContent mirrors the backed-up checkout. Publication
// failures do not fail the repository; metadata replay proceeds without
// git content.
func (service *Service) publishRepositoryContent(executionContext context.Context, options RestoreOptions, repository backup.Repository) error {
	if options.SkipContent {
		service.logger.Debug(contentPublicationDisabledLogMessageConstant, zap.String(repositoryFieldNameConstant, repository.Name))
		return nil
	}
	if len(repository.CheckoutPath) == 0 {
		service.logger.Debug(checkoutMissingLogMessageConstant, zap.String(repositoryFieldNameConstant, repository.Name))
		return nil
	}

	publishError := service.contentPublisher.Publish(executionContext, gitmirror.PublishRequest{
		RepositoryName:     repository.Name,
		CheckoutPath:       repository.CheckoutPath,
		TargetOrganization: options.TargetOrganization,
		AccessToken:        options.AccessToken,
	})
	if publishError == nil {
		return nil
	}
	if errors.Is(publishError, context.Canceled) || errors.Is(publishError, context.DeadlineExceeded) {
		return publishError
	}

	service.logger.Warn(
		contentPublicationFailedLogMessageConstant,
		zap.String(repositoryFieldNameConstant, repository.Name),
		zap.Error(publishError),
	)
	return nil
}

func (service *Service) replayIssues(executionContext context.Context, options RestoreOptions, repository backup.Repository, runResult *RunResult) error {
	for _, issue := range repository.Issues {
		if replayError := service.replayIssue(executionContext, options, repository, issue, runResult); replayError != nil {
			return replayError
		}
	}
	return nil
}

func (service *Service) replayIssue(executionContext context.Context, options RestoreOptions, repository backup.Repository, issue backup.Issue, runResult *RunResult) error {
	repositoryRecord, _ := service.progressTracker.RepositoryState(repository.Name)
	issueRecord, issueTracked := findIssueRecord(repositoryRecord, issue.Number)

	if !issueTracked || issueRecord.Status == state.IssueStatusPending {
		if admissionError := service.callLimiter.Admit(executionContext, ratelimit.ResourceClassIssueCalls); admissionError != nil {
			return admissionError
		}
		targetIssueNumber, creationError := service.gitHubClient.CreateIssue(
			executionContext,
			options.TargetOrganization,
			repository.Name,
			issue.Title,
			options.composer().IssueBody(repository.Name, issue),
		)
		if creationError != nil {
			return creationError
		}
		if recordError := service.progressTracker.Record(state.Event{
			Kind:              state.EventIssueCreated,
			Repository:        repository.Name,
			IssueNumber:       issue.Number,
			TargetIssueNumber: targetIssueNumber,
		}); recordError != nil {
			return recordError
		}
		runResult.IssuesCreated++
		service.logger.Info(
			issueCreatedLogMessageConstant,
			zap.String(repositoryFieldNameConstant, repository.Name),
			zap.Int(sourceIssueFieldNameConstant, issue.Number),
			zap.Int(targetIssueFieldNameConstant, targetIssueNumber),
		)
		issueRecord = state.IssueRecord{SourceNumber: issue.Number, TargetNumber: targetIssueNumber, Status: state.IssueStatusCreated}
	}

	if issueRecord.Status == state.IssueStatusCreated {
		for commentIndex := issueRecord.CommentsPosted; commentIndex < len(issue.Comments); commentIndex++ {
			if admissionError := service.callLimiter.Admit(executionContext, ratelimit.ResourceClassCommentCalls); admissionError != nil {
				return admissionError
			}
			commentBody := options.composer().CommentBody(repository.Name, issue.Comments[commentIndex])
			if postError := service.gitHubClient.CreateIssueComment(executionContext, options.TargetOrganization, repository.Name, issueRecord.TargetNumber, commentBody); postError != nil {
				return postError
			}
			if recordError := service.progressTracker.Record(state.Event{
				Kind:        state.EventIssueCommentPosted,
				Repository:  repository.Name,
				IssueNumber: issue.Number,
			}); recordError != nil {
				return recordError
			}
			runResult.CommentsPosted++
			service.logger.Debug(
				commentPostedLogMessageConstant,
				zap.String(repositoryFieldNameConstant, repository.Name),
				zap.Int(targetIssueFieldNameConstant, issueRecord.TargetNumber),
				zap.Int(commentIndexFieldNameConstant, commentIndex),
			)
		}
		if recordError := service.progressTracker.Record(state.Event{
			Kind:        state.EventIssueCommentsCompleted,
			Repository:  repository.Name,
			IssueNumber: issue.Number,
		}); recordError != nil {
			return recordError
		}
		issueRecord.Status = state.IssueStatusCommented
	}

	if issueRecord.Status == state.IssueStatusCommented && issue.State == backup.IssueStateClosed {
		if admissionError := service.callLimiter.Admit(executionContext, ratelimit.ResourceClassIssueCalls); admissionError != nil {
			return admissionError
		}
		if closeError := service.gitHubClient.CloseIssue(executionContext, options.TargetOrganization, repository.Name, issueRecord.TargetNumber); closeError != nil {
			return closeError
		}
		if recordError := service.progressTracker.Record(state.Event{
			Kind:        state.EventIssueClosed,
			Repository:  repository.Name,
			IssueNumber: issue.Number,
		}); recordError != nil {
			return recordError
		}
		service.logger.Info(
			issueClosedLogMessageConstant,
			zap.String(repositoryFieldNameConstant, repository.Name),
			zap.Int(targetIssueFieldNameConstant, issueRecord.TargetNumber),
		)
	}

	return nil
}

func (service *Service) documentPullRequests(executionContext context.Context, options RestoreOptions, repository backup.Repository, runResult *RunResult) error {
	for _, pullRequest := range repository.PullRequests {
		if documentError := service.documentPullRequest(executionContext, options, repository, pullRequest, runResult); documentError != nil {
			return documentError
		}
	}
	return nil
}

func (service *Service) documentPullRequest(executionContext context.Context, options RestoreOptions, repository backup.Repository, pullRequest backup.PullRequest, runResult *RunResult) error {
	repositoryRecord, _ := service.progressTracker.RepositoryState(repository.Name)
	pullRequestRecord, pullRequestTracked := findPullRequestRecord(repositoryRecord, pullRequest.Number)
	if pullRequestTracked && pullRequestRecord.Documented {
		return nil
	}

	if !pullRequestTracked {
		if admissionError := service.callLimiter.Admit(executionContext, ratelimit.ResourceClassIssueCalls); admissionError != nil {
			return admissionError
		}
		targetIssueNumber, creationError := service.gitHubClient.CreateIssue(
			executionContext,
			options.TargetOrganization,
			repository.Name,
			options.composer().PullRequestTitle(pullRequest),
			options.composer().PullRequestBody(repository.Name, pullRequest),
		)
		if creationError != nil {
			return creationError
		}
		if recordError := service.progressTracker.Record(state.Event{
			Kind:              state.EventPullRequestIssueCreated,
			Repository:        repository.Name,
			PullRequestNumber: pullRequest.Number,
			TargetIssueNumber: targetIssueNumber,
		}); recordError != nil {
			return recordError
		}
		pullRequestRecord = state.PullRequestRecord{Number: pullRequest.Number, TargetIssueNumber: targetIssueNumber}
	}

	if admissionError := service.callLimiter.Admit(executionContext, ratelimit.ResourceClassIssueCalls); admissionError != nil {
		return admissionError
	}
	if closeError := service.gitHubClient.CloseIssue(executionContext, options.TargetOrganization, repository.Name, pullRequestRecord.TargetIssueNumber); closeError != nil {
		return closeError
	}
	if recordError := service.progressTracker.Record(state.Event{
		Kind:              state.EventPullRequestIssueClosed,
		Repository:        repository.Name,
		PullRequestNumber: pullRequest.Number,
	}); recordError != nil {
		return recordError
	}
	runResult.PullRequestsDocumented++
	service.logger.Info(
		pullRequestDocumentedLogMessageConstant,
		zap.String(repositoryFieldNameConstant, repository.Name),
		zap.Int(pullRequestFieldNameConstant, pullRequest.Number),
		zap.Int(targetIssueFieldNameConstant, pullRequestRecord.TargetIssueNumber),
	)

	return nil
}

func (service *Service) advanceRepositoryStatus(repositoryName string, nextStatus state.RepositoryStatus) error {
	return service.progressTracker.Record(state.Event{
		Kind:             state.EventRepositoryStatusAdvanced,
		Repository:       repositoryName,
		RepositoryStatus: nextStatus,
	})
}

// isRepositoryLocalFailure reports whether the failure condemns only the
// current repository. Authorization and transient failures abort the whole
// run, as do ledger and limiter failures.
func isRepositoryLocalFailure(failure error) bool {
	var dataError backup.RepositoryDataError
	if errors.As(failure, &dataError) {
		return true
	}

	var callError githubapi.CallError
	if errors.As(failure, &callError) {
		switch callError.Kind {
		case githubapi.FailureKindAuthorization, githubapi.FailureKindTransient:
			return false
		default:
			return true
		}
	}

	return false
}
