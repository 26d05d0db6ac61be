package gitmirror

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"go.uber.org/zap"

	"github.com/rdmolony/backup-and-restore-a-github-org/internal/execshell"
	"github.com/rdmolony/backup-and-restore-a-github-org/internal/gitrepo"
)

const (
	loggerNotConfiguredMessageConstant   = "logger not configured"
	executorNotConfiguredMessageConstant = "git executor not configured"
	checkoutErrorTemplateConstant        = "checkout %s unreadable: %s"
	originMismatchTemplateConstant       = "checkout %s origin points at %s, expected %s"
	originRemoteNameConstant             = "origin"
	gitPushSubcommandConstant            = "push"
	gitMirrorFlagConstant                = "--mirror"
	terminalPromptVariableNameConstant   = "GIT_TERMINAL_PROMPT"
	terminalPromptDisabledValueConstant  = "0"
	emptyCheckoutLogMessageConstant      = "checkout holds no references, skipping mirror push"
	unknownOriginLogMessageConstant      = "origin remote not recognized, skipping origin verification"
	mirrorCompletedLogMessageConstant    = "mirrored repository content"
	repositoryFieldNameConstant          = "repository"
	checkoutPathFieldNameConstant        = "checkout_path"
	originRemoteFieldNameConstant        = "origin_remote"
)

// Sentinel construction errors.
var (
	ErrLoggerNotConfigured   = errors.New(loggerNotConfiguredMessageConstant)
	ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)
)

// CheckoutError describes a backed-up checkout that could not be inspected.
type CheckoutError struct {
	Path  string
	Cause error
}

// Error describes the inspection failure.
func (checkoutError CheckoutError) Error() string {
	return fmt.Sprintf(checkoutErrorTemplateConstant, checkoutError.Path, checkoutError.Cause)
}

// Unwrap exposes the underlying cause.
func (checkoutError CheckoutError) Unwrap() error {
	return checkoutError.Cause
}

// OriginMismatchError reports a checkout whose recorded origin names a
// different repository than the one about to receive its content.
type OriginMismatchError struct {
	CheckoutPath       string
	OriginRepository   string
	ExpectedRepository string
}

// Error describes the mismatch.
func (mismatchError OriginMismatchError) Error() string {
	return fmt.Sprintf(
		originMismatchTemplateConstant,
		mismatchError.CheckoutPath,
		mismatchError.OriginRepository,
		mismatchError.ExpectedRepository,
	)
}

// GitCommandExecutor runs git commands for mirror pushes.
type GitCommandExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// PublishRequest identifies a checkout and the repository receiving its content.
type PublishRequest struct {
	RepositoryName     string
	CheckoutPath       string
	TargetOrganization string
	AccessToken        string
}

// Publisher mirrors backed-up checkouts into restored repositories.
type Publisher struct {
	logger      *zap.Logger
	gitExecutor GitCommandExecutor
}

// NewPublisher validates dependencies and constructs a Publisher.
func NewPublisher(logger *zap.Logger, gitExecutor GitCommandExecutor) (*Publisher, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if gitExecutor == nil {
		return nil, ErrExecutorNotConfigured
	}
	return &Publisher{logger: logger, gitExecutor: gitExecutor}, nil
}

// Publish mirrors the checkout onto the repository's authenticated push
// remote. The checkout's recorded origin, when present and parseable, must
// name the repository being restored. Checkouts without references are
// skipped with a log entry so a repository that was empty at backup time
// restores cleanly.
func (publisher *Publisher) Publish(executionContext context.Context, request PublishRequest) error {
	repository, openError := git.PlainOpen(request.CheckoutPath)
	if openError != nil {
		return CheckoutError{Path: request.CheckoutPath, Cause: openError}
	}

	if verificationError := publisher.verifyCheckoutOrigin(repository, request); verificationError != nil {
		return verificationError
	}

	hasReferences, inspectionError := checkoutHasReferences(repository, request.CheckoutPath)
	if inspectionError != nil {
		return inspectionError
	}
	if !hasReferences {
		publisher.logger.Info(
			emptyCheckoutLogMessageConstant,
			zap.String(repositoryFieldNameConstant, request.RepositoryName),
			zap.String(checkoutPathFieldNameConstant, request.CheckoutPath),
		)
		return nil
	}

	pushTarget := gitrepo.PushTarget{
		Host:       gitrepo.DefaultGitHubHost,
		Owner:      request.TargetOrganization,
		Repository: request.RepositoryName,
	}
	remoteURL, remoteURLError := gitrepo.AuthenticatedPushURL(pushTarget, request.AccessToken)
	if remoteURLError != nil {
		return remoteURLError
	}
	commandDetails := execshell.CommandDetails{
		Arguments:            []string{gitPushSubcommandConstant, gitMirrorFlagConstant, remoteURL},
		WorkingDirectory:     request.CheckoutPath,
		EnvironmentVariables: map[string]string{terminalPromptVariableNameConstant: terminalPromptDisabledValueConstant},
	}
	if _, executionError := publisher.gitExecutor.ExecuteGit(executionContext, commandDetails); executionError != nil {
		return executionError
	}

	publisher.logger.Info(
		mirrorCompletedLogMessageConstant,
		zap.String(repositoryFieldNameConstant, request.RepositoryName),
		zap.String(checkoutPathFieldNameConstant, request.CheckoutPath),
	)
	return nil
}

// verifyCheckoutOrigin compares the checkout's recorded origin remote with the
// repository name about to be restored. Checkouts without an origin, or with
// an origin the parser does not recognize, pass unverified.
func (publisher *Publisher) verifyCheckoutOrigin(repository *git.Repository, request PublishRequest) error {
	originRemote, remoteError := repository.Remote(originRemoteNameConstant)
	if errors.Is(remoteError, git.ErrRemoteNotFound) {
		return nil
	}
	if remoteError != nil {
		return CheckoutError{Path: request.CheckoutPath, Cause: remoteError}
	}

	remoteURLs := originRemote.Config().URLs
	if len(remoteURLs) == 0 {
		return nil
	}
	parsedOrigin, parseError := gitrepo.ParseRemoteURL(remoteURLs[0])
	if parseError != nil {
		publisher.logger.Debug(
			unknownOriginLogMessageConstant,
			zap.String(repositoryFieldNameConstant, request.RepositoryName),
			zap.String(checkoutPathFieldNameConstant, request.CheckoutPath),
			zap.String(originRemoteFieldNameConstant, remoteURLs[0]),
		)
		return nil
	}

	if !strings.EqualFold(parsedOrigin.Repository, request.RepositoryName) {
		return OriginMismatchError{
			CheckoutPath:       request.CheckoutPath,
			OriginRepository:   parsedOrigin.Repository,
			ExpectedRepository: request.RepositoryName,
		}
	}
	return nil
}

// checkoutHasReferences reports whether the checkout holds at least one hash
// reference. A fresh bare repository carries only the symbolic HEAD pointing
// at an unborn branch.
func checkoutHasReferences(repository *git.Repository, checkoutPath string) (bool, error) {
	referenceIterator, referencesError := repository.References()
	if referencesError != nil {
		return false, CheckoutError{Path: checkoutPath, Cause: referencesError}
	}
	defer referenceIterator.Close()

	hasReferences := false
	iterationError := referenceIterator.ForEach(func(reference *plumbing.Reference) error {
		if reference.Type() == plumbing.SymbolicReference {
			return nil
		}
		hasReferences = true
		return storer.ErrStop
	})
	if iterationError != nil {
		return false, CheckoutError{Path: checkoutPath, Cause: iterationError}
	}
	return hasReferences, nil
}
