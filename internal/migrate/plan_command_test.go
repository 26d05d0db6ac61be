package migrate_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rdmolony/backup-and-restore-a-github-org/internal/migrate"
	"github.com/rdmolony/backup-and-restore-a-github-org/internal/state"
)

func TestPlanCommandWritesPlanAsYAML(testInstance *testing.T) {
	testInstance.Parallel()

	backupRoot := writeBackupFixture(testInstance)
	statePath := filepath.Join(testInstance.TempDir(), "state.json")

	tracker, trackerError := state.LoadTracker(statePath, "source-org", "target-org")
	require.NoError(testInstance, trackerError)
	require.NoError(testInstance, tracker.Record(state.Event{Kind: state.EventRepositoryCreated, Repository: "alpha"}))

	builder := &migrate.PlanCommandBuilder{}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	outputBuffer := &bytes.Buffer{}
	command.SetOut(outputBuffer)
	command.SetArgs([]string{"source-org", "target-org", "--backup-dir", backupRoot, "--state-file", statePath})
	require.NoError(testInstance, command.Execute())

	var decodedPlan migrate.RunPlan
	require.NoError(testInstance, yaml.Unmarshal(outputBuffer.Bytes(), &decodedPlan))

	require.Equal(testInstance, "source-org", decodedPlan.SourceOrganization)
	require.Equal(testInstance, "target-org", decodedPlan.TargetOrganization)
	require.Len(testInstance, decodedPlan.Repositories, 1)
	require.Equal(testInstance, "alpha", decodedPlan.Repositories[0].Name)
	require.Equal(testInstance, state.RepositoryStatusRepositoryCreated, decodedPlan.Repositories[0].Status)
	require.Equal(testInstance, 1, decodedPlan.Repositories[0].IssueCount)
	require.Equal(testInstance, 1, decodedPlan.Totals.Repositories)
	require.Equal(testInstance, 1, decodedPlan.Totals.Issues)
	require.Equal(testInstance, 0, decodedPlan.Totals.Completed)
}

func TestPlanCommandDoesNotCreateLedger(testInstance *testing.T) {
	testInstance.Parallel()

	backupRoot := writeBackupFixture(testInstance)
	statePath := filepath.Join(testInstance.TempDir(), "state.json")

	builder := &migrate.PlanCommandBuilder{}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	outputBuffer := &bytes.Buffer{}
	command.SetOut(outputBuffer)
	command.SetArgs([]string{"source-org", "target-org", "--backup-dir", backupRoot, "--state-file", statePath})
	require.NoError(testInstance, command.Execute())

	_, statError := os.Stat(statePath)
	require.True(testInstance, os.IsNotExist(statError))

	var decodedPlan migrate.RunPlan
	require.NoError(testInstance, yaml.Unmarshal(outputBuffer.Bytes(), &decodedPlan))
	require.Equal(testInstance, state.RepositoryStatusPending, decodedPlan.Repositories[0].Status)
}

func TestPlanCommandReportsLedgerMismatch(testInstance *testing.T) {
	testInstance.Parallel()

	backupRoot := writeBackupFixture(testInstance)
	statePath := filepath.Join(testInstance.TempDir(), "state.json")

	_, trackerError := state.LoadTracker(statePath, "source-org", "other-org")
	require.NoError(testInstance, trackerError)

	builder := &migrate.PlanCommandBuilder{}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)
	command.SetArgs([]string{"source-org", "target-org", "--backup-dir", backupRoot, "--state-file", statePath})

	executionError := command.Execute()
	require.Error(testInstance, executionError)
	require.Contains(testInstance, executionError.Error(), "unable to read migration ledger")
}

func TestPlanCommandValidatesArgumentCount(testInstance *testing.T) {
	testInstance.Parallel()

	builder := &migrate.PlanCommandBuilder{}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	command.SetArgs([]string{"source-org"})
	require.Error(testInstance, command.Execute())
}
