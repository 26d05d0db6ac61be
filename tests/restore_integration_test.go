package tests

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rdmolony/backup-and-restore-a-github-org/internal/backup"
	"github.com/rdmolony/backup-and-restore-a-github-org/internal/execshell"
	"github.com/rdmolony/backup-and-restore-a-github-org/internal/githubapi"
	"github.com/rdmolony/backup-and-restore-a-github-org/internal/gitmirror"
	"github.com/rdmolony/backup-and-restore-a-github-org/internal/migrate"
	"github.com/rdmolony/backup-and-restore-a-github-org/internal/state"
)

const (
	integrationRepositoryNameConstant        = "alpha"
	integrationContentRepositoryNameConstant = "gamma"
	integrationExpectedMutationCountConstant = 7

	integrationIssuesPayloadConstant = `[
  {
    "number": 1,
    "title": "Broken build",
    "body": "Original report text",
    "state": "OPEN",
    "createdAt": "2023-05-01T10:00:00Z",
    "author": {"login": "casey"},
    "comments": [
      {"author": {"login": "drew"}, "body": "Follow-up details", "createdAt": "2023-05-01T12:00:00Z"}
    ]
  },
  {
    "number": 2,
    "title": "Flaky test",
    "body": "",
    "state": "closed",
    "createdAt": "2023-06-01T10:00:00Z",
    "author": {"login": "casey"},
    "comments": {"nodes": []}
  }
]`

	integrationPullsPayloadConstant = `{
  "nodes": [
    {
      "number": 3,
      "title": "Add retry logic",
      "body": "Retries transient failures",
      "state": "MERGED",
      "createdAt": "2023-06-02T09:00:00Z",
      "author": {"login": "casey"},
      "baseRefName": "main",
      "headRefName": "feature/retry",
      "reviews": [
        {"author": {"login": "drew"}, "state": "APPROVED", "body": "LGTM", "submittedAt": "2023-06-02T10:00:00Z"}
      ]
    }
  ]
}`

	integrationEmptyCollectionPayloadConstant = `[]`
)

var integrationExpectedMutationOrder = []string{
	"POST /api/v3/orgs/acme-archive/repos",
	"POST /api/v3/repos/acme-archive/alpha/issues",
	"POST /api/v3/repos/acme-archive/alpha/issues/1/comments",
	"POST /api/v3/repos/acme-archive/alpha/issues",
	"PATCH /api/v3/repos/acme-archive/alpha/issues/2",
	"POST /api/v3/repos/acme-archive/alpha/issues",
	"PATCH /api/v3/repos/acme-archive/alpha/issues/3",
}

type recordingShellExecutor struct {
	executedCommands []execshell.CommandDetails
}

func (executor *recordingShellExecutor) ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.executedCommands = append(executor.executedCommands, details)
	return execshell.ExecutionResult{ExitCode: 0}, nil
}

func loadBackupOrganization(testInstance *testing.T, backupRoot string) backup.Organization {
	testInstance.Helper()
	organization, loadError := backup.NewReader().LoadOrganization(backupRoot, integrationSourceOrganizationConstant)
	require.NoError(testInstance, loadError)
	return organization
}

func newRestoreService(testInstance *testing.T, fakeServer *fakeOrganizationServer, progressTracker *state.Tracker, sleeper *recordingSleeper, gitExecutor gitmirror.GitCommandExecutor) *migrate.Service {
	testInstance.Helper()

	gitHubClient, clientError := githubapi.NewClientWithEndpoint(context.Background(), integrationAccessTokenConstant, fakeServer.endpointURL())
	require.NoError(testInstance, clientError)

	contentPublisher, publisherError := gitmirror.NewPublisher(zap.NewNop(), gitExecutor)
	require.NoError(testInstance, publisherError)

	service, serviceError := migrate.NewService(migrate.ServiceDependencies{
		Logger:           zap.NewNop(),
		GitHubClient:     gitHubClient,
		CallLimiter:      newIntegrationLimiter(testInstance, sleeper),
		ProgressTracker:  progressTracker,
		ContentPublisher: contentPublisher,
	})
	require.NoError(testInstance, serviceError)
	return service
}

func TestRestoreIntegrationReplaysBackup(testInstance *testing.T) {
	backupRoot := testInstance.TempDir()
	statePath := filepath.Join(testInstance.TempDir(), integrationStateFileNameConstant)
	writeRepositoryBackup(testInstance, backupRoot, integrationSourceOrganizationConstant, integrationRepositoryNameConstant, integrationIssuesPayloadConstant, integrationPullsPayloadConstant)

	fakeServer := newFakeOrganizationServer(testInstance)
	sleeper := &recordingSleeper{}
	progressTracker, trackerError := state.LoadTracker(statePath, integrationSourceOrganizationConstant, integrationTargetOrganizationConstant)
	require.NoError(testInstance, trackerError)

	service := newRestoreService(testInstance, fakeServer, progressTracker, sleeper, &recordingShellExecutor{})
	runResult, runError := service.Execute(context.Background(), migrate.RestoreOptions{
		Organization:       loadBackupOrganization(testInstance, backupRoot),
		TargetOrganization: integrationTargetOrganizationConstant,
		AccessToken:        integrationAccessTokenConstant,
	})

	require.NoError(testInstance, runError)
	require.Equal(testInstance, 1, runResult.CompletedRepositories)
	require.Empty(testInstance, runResult.FailedRepositories)
	require.Equal(testInstance, 2, runResult.IssuesCreated)
	require.Equal(testInstance, 1, runResult.CommentsPosted)
	require.Equal(testInstance, 1, runResult.PullRequestsDocumented)

	require.Equal(testInstance, integrationExpectedMutationOrder, fakeServer.mutationPaths())
	require.Equal(testInstance, []string{
		"GET /api/v3/orgs/acme-archive",
		"GET /api/v3/repos/acme-archive/alpha",
	}, fakeServer.readPaths())

	firstIssueBody := fakeServer.mutations[1].body
	require.Contains(testInstance, firstIssueBody, `"title":"Broken build"`)
	require.Contains(testInstance, firstIssueBody, "Original report text")
	require.Contains(testInstance, firstIssueBody, "*Originally created by @casey on 2023-05-01T10:00:00Z*")
	require.Contains(testInstance, firstIssueBody, "*Migrated from legacy-org/alpha*")

	commentBody := fakeServer.mutations[2].body
	require.Contains(testInstance, commentBody, "Follow-up details")
	require.Contains(testInstance, commentBody, "*Originally posted by @drew on 2023-05-01T12:00:00Z*")

	secondIssueBody := fakeServer.mutations[3].body
	require.Contains(testInstance, secondIssueBody, `"title":"Flaky test"`)
	require.Contains(testInstance, secondIssueBody, "*No description provided*")

	require.Contains(testInstance, fakeServer.mutations[4].body, `"state":"closed"`)

	pullRequestBody := fakeServer.mutations[5].body
	require.Contains(testInstance, pullRequestBody, `"title":"[PR] Add retry logic"`)
	require.Contains(testInstance, pullRequestBody, "*Documents pull request #3 (merged)*")
	require.Contains(testInstance, pullRequestBody, "*Branches: feature/retry -> main*")
	require.Contains(testInstance, pullRequestBody, "*Reviews: 1*")

	// Six calls pass through the limiter (repository creation is exempt) and
	// the first needs no spacing, leaving five paced waits.
	require.Len(testInstance, sleeper.recordedSleeps, 5)
	for _, recordedSleep := range sleeper.recordedSleeps {
		require.Equal(testInstance, 3500*time.Millisecond, recordedSleep)
	}

	ledger, ledgerError := state.ReadLedger(statePath, integrationSourceOrganizationConstant, integrationTargetOrganizationConstant)
	require.NoError(testInstance, ledgerError)
	repositoryRecord, recordKnown := ledger.RepositoryState(integrationRepositoryNameConstant)
	require.True(testInstance, recordKnown)
	require.Equal(testInstance, state.RepositoryStatusCompleted, repositoryRecord.Status)
	require.Equal(testInstance, []state.IssueRecord{
		{SourceNumber: 1, TargetNumber: 1, Status: state.IssueStatusCommented, CommentsPosted: 1},
		{SourceNumber: 2, TargetNumber: 2, Status: state.IssueStatusClosed},
	}, repositoryRecord.Issues)
	require.Equal(testInstance, []state.PullRequestRecord{
		{Number: 3, TargetIssueNumber: 3, Documented: true},
	}, repositoryRecord.PullRequests)

	resumedTracker, resumeTrackerError := state.LoadTracker(statePath, integrationSourceOrganizationConstant, integrationTargetOrganizationConstant)
	require.NoError(testInstance, resumeTrackerError)
	resumedService := newRestoreService(testInstance, fakeServer, resumedTracker, &recordingSleeper{}, &recordingShellExecutor{})
	resumedResult, resumedError := resumedService.Execute(context.Background(), migrate.RestoreOptions{
		Organization:       loadBackupOrganization(testInstance, backupRoot),
		TargetOrganization: integrationTargetOrganizationConstant,
		AccessToken:        integrationAccessTokenConstant,
	})

	require.NoError(testInstance, resumedError)
	require.Equal(testInstance, 1, resumedResult.CompletedRepositories)
	require.Zero(testInstance, resumedResult.IssuesCreated)
	require.Zero(testInstance, resumedResult.CommentsPosted)
	require.Zero(testInstance, resumedResult.PullRequestsDocumented)
	require.Len(testInstance, fakeServer.mutations, integrationExpectedMutationCountConstant)
	require.Equal(testInstance, []string{
		"GET /api/v3/orgs/acme-archive",
		"GET /api/v3/repos/acme-archive/alpha",
		"GET /api/v3/orgs/acme-archive",
	}, fakeServer.readPaths())
}

func TestRestoreIntegrationResumesAfterFailureAtEveryCall(testInstance *testing.T) {
	for failureIndex := 1; failureIndex <= integrationExpectedMutationCountConstant; failureIndex++ {
		currentFailureIndex := failureIndex
		testInstance.Run(fmt.Sprintf("fails_call_%d", currentFailureIndex), func(subTest *testing.T) {
			backupRoot := subTest.TempDir()
			statePath := filepath.Join(subTest.TempDir(), integrationStateFileNameConstant)
			writeRepositoryBackup(subTest, backupRoot, integrationSourceOrganizationConstant, integrationRepositoryNameConstant, integrationIssuesPayloadConstant, integrationPullsPayloadConstant)

			fakeServer := newFakeOrganizationServer(subTest)
			fakeServer.failMutationOnce(currentFailureIndex)

			restoreOptions := migrate.RestoreOptions{
				Organization:       loadBackupOrganization(subTest, backupRoot),
				TargetOrganization: integrationTargetOrganizationConstant,
				AccessToken:        integrationAccessTokenConstant,
			}

			interruptedTracker, interruptedTrackerError := state.LoadTracker(statePath, integrationSourceOrganizationConstant, integrationTargetOrganizationConstant)
			require.NoError(subTest, interruptedTrackerError)
			interruptedService := newRestoreService(subTest, fakeServer, interruptedTracker, &recordingSleeper{}, &recordingShellExecutor{})

			_, interruptedError := interruptedService.Execute(context.Background(), restoreOptions)
			require.Error(subTest, interruptedError)
			var abortError migrate.RunAbortedError
			require.ErrorAs(subTest, interruptedError, &abortError)
			var callError githubapi.CallError
			require.ErrorAs(subTest, interruptedError, &callError)
			require.Equal(subTest, githubapi.FailureKindTransient, callError.Kind)

			resumedTracker, resumedTrackerError := state.LoadTracker(statePath, integrationSourceOrganizationConstant, integrationTargetOrganizationConstant)
			require.NoError(subTest, resumedTrackerError)
			resumedService := newRestoreService(subTest, fakeServer, resumedTracker, &recordingSleeper{}, &recordingShellExecutor{})

			resumedResult, resumedError := resumedService.Execute(context.Background(), restoreOptions)
			require.NoError(subTest, resumedError)
			require.Equal(subTest, 1, resumedResult.CompletedRepositories)

			mutationSignatures := fakeServer.mutationSignatures()
			require.Len(subTest, mutationSignatures, integrationExpectedMutationCountConstant)
			seenSignatures := make(map[string]int, len(mutationSignatures))
			for _, signature := range mutationSignatures {
				seenSignatures[signature]++
			}
			for signature, signatureCount := range seenSignatures {
				require.Equalf(subTest, 1, signatureCount, "mutation repeated across resume: %s", signature)
			}

			ledger, ledgerError := state.ReadLedger(statePath, integrationSourceOrganizationConstant, integrationTargetOrganizationConstant)
			require.NoError(subTest, ledgerError)
			repositoryRecord, recordKnown := ledger.RepositoryState(integrationRepositoryNameConstant)
			require.True(subTest, recordKnown)
			require.Equal(subTest, state.RepositoryStatusCompleted, repositoryRecord.Status)
		})
	}
}

func TestRestoreIntegrationPublishesCheckout(testInstance *testing.T) {
	backupRoot := testInstance.TempDir()
	statePath := filepath.Join(testInstance.TempDir(), integrationStateFileNameConstant)
	repositoryPath := writeRepositoryBackup(testInstance, backupRoot, integrationSourceOrganizationConstant, integrationContentRepositoryNameConstant, integrationEmptyCollectionPayloadConstant, integrationEmptyCollectionPayloadConstant)

	checkoutPath := filepath.Join(repositoryPath, "repository.git")
	checkoutRepository, initializationError := git.PlainInit(checkoutPath, true)
	require.NoError(testInstance, initializationError)
	branchReference := plumbing.NewHashReference(
		plumbing.ReferenceName("refs/heads/main"),
		plumbing.NewHash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
	)
	require.NoError(testInstance, checkoutRepository.Storer.SetReference(branchReference))
	_, remoteError := checkoutRepository.CreateRemote(&gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{"git@github.com:legacy-org/gamma.git"},
	})
	require.NoError(testInstance, remoteError)

	fakeServer := newFakeOrganizationServer(testInstance)
	gitExecutor := &recordingShellExecutor{}
	progressTracker, trackerError := state.LoadTracker(statePath, integrationSourceOrganizationConstant, integrationTargetOrganizationConstant)
	require.NoError(testInstance, trackerError)

	service := newRestoreService(testInstance, fakeServer, progressTracker, &recordingSleeper{}, gitExecutor)
	runResult, runError := service.Execute(context.Background(), migrate.RestoreOptions{
		Organization:       loadBackupOrganization(testInstance, backupRoot),
		TargetOrganization: integrationTargetOrganizationConstant,
		AccessToken:        integrationAccessTokenConstant,
	})

	require.NoError(testInstance, runError)
	require.Equal(testInstance, 1, runResult.CompletedRepositories)
	require.Zero(testInstance, runResult.IssuesCreated)

	require.Equal(testInstance, []string{"POST /api/v3/orgs/acme-archive/repos"}, fakeServer.mutationPaths())

	require.Len(testInstance, gitExecutor.executedCommands, 1)
	pushDetails := gitExecutor.executedCommands[0]
	require.Equal(testInstance, []string{
		"push",
		"--mirror",
		"https://integration-test-token@github.com/acme-archive/gamma.git",
	}, pushDetails.Arguments)
	require.Equal(testInstance, checkoutPath, pushDetails.WorkingDirectory)
	require.Equal(testInstance, "0", pushDetails.EnvironmentVariables["GIT_TERMINAL_PROMPT"])

	ledger, ledgerError := state.ReadLedger(statePath, integrationSourceOrganizationConstant, integrationTargetOrganizationConstant)
	require.NoError(testInstance, ledgerError)
	repositoryRecord, recordKnown := ledger.RepositoryState(integrationContentRepositoryNameConstant)
	require.True(testInstance, recordKnown)
	require.Equal(testInstance, state.RepositoryStatusCompleted, repositoryRecord.Status)
	require.Empty(testInstance, repositoryRecord.Issues)
	require.Empty(testInstance, repositoryRecord.PullRequests)
}
