package tests

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rdmolony/backup-and-restore-a-github-org/internal/githubapi"
	"github.com/rdmolony/backup-and-restore-a-github-org/internal/migrate"
	"github.com/rdmolony/backup-and-restore-a-github-org/internal/state"
)

const (
	integrationRepositoryRestoredMessageConstant = "repository restored"
	integrationRepositoryFieldNameConstant       = "repository"
	integrationBackupDirectoryFlagConstant       = "--backup-dir"
	integrationStateFileFlagConstant             = "--state-file"
)

func newRestoreCommandBuilder(testInstance *testing.T, fakeServer *fakeOrganizationServer, logger *zap.Logger) *migrate.CommandBuilder {
	testInstance.Helper()
	return &migrate.CommandBuilder{
		LoggerProvider: func() *zap.Logger { return logger },
		GitExecutor:    &recordingShellExecutor{},
		GitHubClientProvider: func(executionContext context.Context, accessToken string) (migrate.GitHubOperations, error) {
			return githubapi.NewClientWithEndpoint(executionContext, accessToken, fakeServer.endpointURL())
		},
		ServiceProvider: func(dependencies migrate.ServiceDependencies) (migrate.RestoreExecutor, error) {
			dependencies.CallLimiter = newIntegrationLimiter(testInstance, &recordingSleeper{})
			return migrate.NewService(dependencies)
		},
	}
}

func executeRestoreCommand(testInstance *testing.T, builder *migrate.CommandBuilder, backupRoot string, statePath string) error {
	testInstance.Helper()
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)
	command.SetContext(context.Background())
	command.SetArgs([]string{
		integrationSourceOrganizationConstant,
		integrationTargetOrganizationConstant,
		integrationAccessTokenConstant,
		integrationBackupDirectoryFlagConstant, backupRoot,
		integrationStateFileFlagConstant, statePath,
	})
	return command.Execute()
}

func TestRestoreCommandIntegrationRestoresOrganization(testInstance *testing.T) {
	backupRoot := testInstance.TempDir()
	statePath := filepath.Join(testInstance.TempDir(), integrationStateFileNameConstant)
	writeRepositoryBackup(testInstance, backupRoot, integrationSourceOrganizationConstant, integrationRepositoryNameConstant, integrationIssuesPayloadConstant, integrationPullsPayloadConstant)

	fakeServer := newFakeOrganizationServer(testInstance)
	logCore, observedLogs := observer.New(zap.DebugLevel)
	builder := newRestoreCommandBuilder(testInstance, fakeServer, zap.New(logCore))

	require.NoError(testInstance, executeRestoreCommand(testInstance, builder, backupRoot, statePath))
	require.Equal(testInstance, integrationExpectedMutationOrder, fakeServer.mutationPaths())

	ledger, ledgerError := state.ReadLedger(statePath, integrationSourceOrganizationConstant, integrationTargetOrganizationConstant)
	require.NoError(testInstance, ledgerError)
	repositoryRecord, recordKnown := ledger.RepositoryState(integrationRepositoryNameConstant)
	require.True(testInstance, recordKnown)
	require.Equal(testInstance, state.RepositoryStatusCompleted, repositoryRecord.Status)

	restoredEntries := []observer.LoggedEntry{}
	for _, entry := range observedLogs.All() {
		if entry.Level == zapcore.InfoLevel && entry.Message == integrationRepositoryRestoredMessageConstant {
			restoredEntries = append(restoredEntries, entry)
		}
	}
	require.Len(testInstance, restoredEntries, 1)
	require.Equal(testInstance, integrationRepositoryNameConstant, restoredEntries[0].ContextMap()[integrationRepositoryFieldNameConstant])

	require.NoError(testInstance, executeRestoreCommand(testInstance, builder, backupRoot, statePath))
	require.Len(testInstance, fakeServer.mutations, integrationExpectedMutationCountConstant)
}

func TestRestoreCommandIntegrationResumesInterruptedRun(testInstance *testing.T) {
	backupRoot := testInstance.TempDir()
	statePath := filepath.Join(testInstance.TempDir(), integrationStateFileNameConstant)
	writeRepositoryBackup(testInstance, backupRoot, integrationSourceOrganizationConstant, integrationRepositoryNameConstant, integrationIssuesPayloadConstant, integrationPullsPayloadConstant)

	fakeServer := newFakeOrganizationServer(testInstance)
	fakeServer.failMutationOnce(4)
	builder := newRestoreCommandBuilder(testInstance, fakeServer, zap.NewNop())

	interruptedError := executeRestoreCommand(testInstance, builder, backupRoot, statePath)
	require.Error(testInstance, interruptedError)
	var abortError migrate.RunAbortedError
	require.ErrorAs(testInstance, interruptedError, &abortError)

	require.NoError(testInstance, executeRestoreCommand(testInstance, builder, backupRoot, statePath))

	mutationSignatures := fakeServer.mutationSignatures()
	require.Len(testInstance, mutationSignatures, integrationExpectedMutationCountConstant)
	seenSignatures := make(map[string]struct{}, len(mutationSignatures))
	for _, signature := range mutationSignatures {
		_, alreadySeen := seenSignatures[signature]
		require.Falsef(testInstance, alreadySeen, "mutation repeated across resume: %s", signature)
		seenSignatures[signature] = struct{}{}
	}

	ledger, ledgerError := state.ReadLedger(statePath, integrationSourceOrganizationConstant, integrationTargetOrganizationConstant)
	require.NoError(testInstance, ledgerError)
	repositoryRecord, recordKnown := ledger.RepositoryState(integrationRepositoryNameConstant)
	require.True(testInstance, recordKnown)
	require.Equal(testInstance, state.RepositoryStatusCompleted, repositoryRecord.Status)
}
