package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rdmolony/backup-and-restore-a-github-org/internal/migrate"
	"github.com/rdmolony/backup-and-restore-a-github-org/internal/utils"
)

const (
	internalTestConfigurationFileNameConstant = "config.yaml"
	internalTestConfigurationContentConstant  = "common:\n  log_level: warn\n  log_format: console\ncommands:\n  restore:\n    issues_per_minute: 7\n    comments_per_minute: 9\n"
)

func TestInitializeConfigurationAppliesDefaults(t *testing.T) {
	application := NewApplication()

	initializationError := application.initializeConfiguration(application.rootCommand)
	require.NoError(t, initializationError)

	require.Equal(t, string(utils.LogLevelInfo), application.configuration.Common.LogLevel)
	require.Equal(t, string(utils.LogFormatStructured), application.configuration.Common.LogFormat)
	require.Equal(t, migrate.DefaultCommandsConfiguration(), application.configuration.Commands)
	require.False(t, application.humanReadableLoggingEnabled())
}

func TestInitializeConfigurationAppliesFlagOverrides(t *testing.T) {
	application := NewApplication()
	rootCommand := application.rootCommand

	require.NoError(t, rootCommand.PersistentFlags().Set(logLevelFlagNameConstant, string(utils.LogLevelDebug)))
	require.NoError(t, rootCommand.PersistentFlags().Set(logFormatFlagNameConstant, string(utils.LogFormatConsole)))

	initializationError := application.initializeConfiguration(rootCommand)
	require.NoError(t, initializationError)

	require.Equal(t, string(utils.LogLevelDebug), application.configuration.Common.LogLevel)
	require.Equal(t, string(utils.LogFormatConsole), application.configuration.Common.LogFormat)
	require.True(t, application.humanReadableLoggingEnabled())

	contextLogLevel, logLevelAvailable := application.commandContextAccessor.LogLevel(rootCommand.Context())
	require.True(t, logLevelAvailable)
	require.Equal(t, string(utils.LogLevelDebug), contextLogLevel)
}

func TestInitializeConfigurationLoadsConfigurationFile(t *testing.T) {
	temporaryDirectory := t.TempDir()
	configurationPath := filepath.Join(temporaryDirectory, internalTestConfigurationFileNameConstant)
	require.NoError(t, os.WriteFile(configurationPath, []byte(internalTestConfigurationContentConstant), 0o600))

	application := NewApplication()
	application.configurationFilePath = configurationPath

	initializationError := application.initializeConfiguration(application.rootCommand)
	require.NoError(t, initializationError)

	require.Equal(t, string(utils.LogLevelWarn), application.configuration.Common.LogLevel)
	require.Equal(t, 7, application.configuration.Commands.Restore.IssuesPerMinute)
	require.Equal(t, 9, application.configuration.Commands.Restore.CommentsPerMinute)
	require.Equal(t, configurationPath, application.configurationMetadata.ConfigFileUsed)
	require.True(t, application.humanReadableLoggingEnabled())

	defaults := migrate.DefaultCommandsConfiguration()
	require.Equal(t, defaults.Restore.BackupDirectory, application.configuration.Commands.Restore.BackupDirectory)
	require.Equal(t, defaults.Restore.StateFile, application.configuration.Commands.Restore.StateFile)

	configuredFilePath, filePathAvailable := application.commandContextAccessor.ConfigurationFilePath(application.rootCommand.Context())
	require.True(t, filePathAvailable)
	require.Equal(t, configurationPath, configuredFilePath)
}

func TestHumanReadableLoggingEnabled(t *testing.T) {
	testCases := []struct {
		name           string
		logFormatValue string
		expectedResult bool
	}{
		{name: "ConsoleFormat", logFormatValue: "console", expectedResult: true},
		{name: "ConsoleFormatMixedCase", logFormatValue: "Console", expectedResult: true},
		{name: "ConsoleFormatPadded", logFormatValue: "  console  ", expectedResult: true},
		{name: "StructuredFormat", logFormatValue: "structured", expectedResult: false},
		{name: "EmptyFormat", logFormatValue: "", expectedResult: false},
	}

	for _, testCase := range testCases {
		currentCase := testCase
		t.Run(currentCase.name, func(t *testing.T) {
			application := &Application{}
			application.configuration.Common.LogFormat = currentCase.logFormatValue

			require.Equal(t, currentCase.expectedResult, application.humanReadableLoggingEnabled())
		})
	}
}
