package migrate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rdmolony/backup-and-restore-a-github-org/internal/backup"
	"github.com/rdmolony/backup-and-restore-a-github-org/internal/execshell"
	"github.com/rdmolony/backup-and-restore-a-github-org/internal/githubapi"
	"github.com/rdmolony/backup-and-restore-a-github-org/internal/githubauth"
	"github.com/rdmolony/backup-and-restore-a-github-org/internal/gitmirror"
	"github.com/rdmolony/backup-and-restore-a-github-org/internal/ratelimit"
	"github.com/rdmolony/backup-and-restore-a-github-org/internal/state"
	"github.com/rdmolony/backup-and-restore-a-github-org/internal/utils"
	flagutils "github.com/rdmolony/backup-and-restore-a-github-org/internal/utils/flags"
	pathutils "github.com/rdmolony/backup-and-restore-a-github-org/internal/utils/path"
)

const (
	restoreCommandUseConstant              = "restore SOURCE_ORG TARGET_ORG [TOKEN]"
	restoreCommandShortDescriptionConstant = "Restore a backed-up organization into a target organization"
	restoreCommandLongDescriptionConstant  = "restore replays backed-up repositories, their issues, comments, and pull request documentation into the target organization, resuming from the position recorded in the migration ledger."
	restoreMinimumArgumentsConstant        = 2
	restoreMaximumArgumentsConstant        = 3

	backupDirectoryFlagNameConstant    = "backup-dir"
	backupDirectoryFlagUsageConstant   = "Root directory of the backup archive"
	stateFileFlagNameConstant          = "state-file"
	stateFileFlagUsageConstant         = "Path to the durable migration ledger"
	issuesPerMinuteFlagNameConstant    = "issues-per-minute"
	issuesPerMinuteFlagUsageConstant   = "Per-minute cap for issue creation and closing calls"
	commentsPerMinuteFlagNameConstant  = "comments-per-minute"
	commentsPerMinuteFlagUsageConstant = "Per-minute cap for comment creation calls"
	skipContentFlagNameConstant        = "skip-content"
	skipContentFlagUsageConstant       = "Skip git content publication and replay metadata only"

	backupLoadErrorTemplateConstant           = "unable to load backup: %w"
	ledgerLoadErrorTemplateConstant           = "unable to load migration ledger: %w"
	githubClientCreationErrorTemplateConstant = "unable to construct GitHub client: %w"
	limiterCreationErrorTemplateConstant      = "unable to construct rate limiter: %w"
	publisherCreationErrorTemplateConstant    = "unable to construct content publisher: %w"
	restoreExecutionErrorTemplateConstant     = "restore failed: %w"
	accessTokenMissingMessageConstant         = "no access token provided; pass TOKEN or set GH_TOKEN, GITHUB_TOKEN, or GITHUB_API_TOKEN"

	logMessageRestoreFailedConstant      = "Restore run failed"
	logMessageRestoreInterruptedConstant = "Restore interrupted, re-run the same command to resume"
	stateFileFieldNameConstant           = "state_file"
)

var errAccessTokenMissing = errors.New(accessTokenMissingMessageConstant)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// RestoreExecutor runs a restore and reports its outcome.
type RestoreExecutor interface {
	Execute(executionContext context.Context, options RestoreOptions) (RunResult, error)
}

// RestoreServiceProvider constructs a restore executor from dependencies.
type RestoreServiceProvider func(dependencies ServiceDependencies) (RestoreExecutor, error)

// GitHubClientProvider constructs the GitHub client used for a run.
type GitHubClientProvider func(executionContext context.Context, accessToken string) (GitHubOperations, error)

type restoreCommandOptions struct {
	sourceOrganization  string
	targetOrganization  string
	accessToken         string
	backupDirectory     string
	stateFilePath       string
	issuesPerMinute     int
	commentsPerMinute   int
	skipContent         bool
	debugLoggingEnabled bool
}

// CommandBuilder assembles the restore Cobra command.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	GitExecutor                  gitmirror.GitCommandExecutor
	GitHubClientProvider         GitHubClientProvider
	ServiceProvider              RestoreServiceProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() RestoreConfiguration
	Environment                  map[string]string
}

// Build constructs the restore command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           restoreCommandUseConstant,
		Short:         restoreCommandShortDescriptionConstant,
		Long:          restoreCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.RangeArgs(restoreMinimumArgumentsConstant, restoreMaximumArgumentsConstant),
		RunE:          builder.runRestore,
	}

	defaults := DefaultCommandsConfiguration().Restore
	command.Flags().String(backupDirectoryFlagNameConstant, defaults.BackupDirectory, backupDirectoryFlagUsageConstant)
	command.Flags().String(stateFileFlagNameConstant, defaults.StateFile, stateFileFlagUsageConstant)
	command.Flags().Int(issuesPerMinuteFlagNameConstant, defaults.IssuesPerMinute, issuesPerMinuteFlagUsageConstant)
	command.Flags().Int(commentsPerMinuteFlagNameConstant, defaults.CommentsPerMinute, commentsPerMinuteFlagUsageConstant)

	var skipContentFlagValue bool
	flagutils.AddToggleFlag(command.Flags(), &skipContentFlagValue, skipContentFlagNameConstant, "", defaults.SkipContent, skipContentFlagUsageConstant)

	return command, nil
}

func (builder *CommandBuilder) runRestore(command *cobra.Command, arguments []string) error {
	options, optionsError := builder.parseRestoreOptions(command, arguments)
	if optionsError != nil {
		return optionsError
	}

	logger := builder.resolveLogger(options.debugLoggingEnabled)

	backupReader := backup.NewReader()
	organization, loadError := backupReader.LoadOrganization(options.backupDirectory, options.sourceOrganization)
	if loadError != nil {
		builder.logRestoreFailure(logger, loadError)
		return fmt.Errorf(backupLoadErrorTemplateConstant, loadError)
	}

	progressTracker, trackerError := state.LoadTracker(options.stateFilePath, options.sourceOrganization, options.targetOrganization)
	if trackerError != nil {
		builder.logRestoreFailure(logger, trackerError)
		return fmt.Errorf(ledgerLoadErrorTemplateConstant, trackerError)
	}

	gitHubClient, clientError := builder.resolveGitHubClient(command.Context(), options.accessToken)
	if clientError != nil {
		return fmt.Errorf(githubClientCreationErrorTemplateConstant, clientError)
	}

	callLimiter, limiterError := builder.resolveCallLimiter(logger, options)
	if limiterError != nil {
		return fmt.Errorf(limiterCreationErrorTemplateConstant, limiterError)
	}

	contentPublisher, publisherError := builder.resolveContentPublisher(logger)
	if publisherError != nil {
		return fmt.Errorf(publisherCreationErrorTemplateConstant, publisherError)
	}

	service, serviceError := builder.resolveService(ServiceDependencies{
		Logger:           logger,
		GitHubClient:     gitHubClient,
		CallLimiter:      callLimiter,
		ProgressTracker:  progressTracker,
		ContentPublisher: contentPublisher,
	})
	if serviceError != nil {
		return serviceError
	}

	_, runError := service.Execute(command.Context(), RestoreOptions{
		Organization:       organization,
		TargetOrganization: options.targetOrganization,
		AccessToken:        options.accessToken,
		SkipContent:        options.skipContent,
	})
	if runError != nil {
		if errors.Is(runError, context.Canceled) || errors.Is(runError, context.DeadlineExceeded) {
			builder.logRestoreInterrupted(logger, progressTracker.Path())
			return runError
		}
		builder.logRestoreFailure(logger, runError)
		return fmt.Errorf(restoreExecutionErrorTemplateConstant, runError)
	}

	return nil
}

func (builder *CommandBuilder) parseRestoreOptions(command *cobra.Command, arguments []string) (restoreCommandOptions, error) {
	configuration := builder.resolveConfiguration()

	options := restoreCommandOptions{
		backupDirectory:   configuration.BackupDirectory,
		stateFilePath:     configuration.StateFile,
		issuesPerMinute:   configuration.IssuesPerMinute,
		commentsPerMinute: configuration.CommentsPerMinute,
		skipContent:       configuration.SkipContent,
	}

	if command != nil {
		contextAccessor := utils.NewCommandContextAccessor()
		if logLevel, available := contextAccessor.LogLevel(command.Context()); available {
			if strings.EqualFold(logLevel, string(utils.LogLevelDebug)) {
				options.debugLoggingEnabled = true
			}
		}

		if command.Flags().Changed(backupDirectoryFlagNameConstant) {
			flagValue, _ := command.Flags().GetString(backupDirectoryFlagNameConstant)
			options.backupDirectory = strings.TrimSpace(flagValue)
		}
		if command.Flags().Changed(stateFileFlagNameConstant) {
			flagValue, _ := command.Flags().GetString(stateFileFlagNameConstant)
			options.stateFilePath = strings.TrimSpace(flagValue)
		}
		if command.Flags().Changed(issuesPerMinuteFlagNameConstant) {
			flagValue, _ := command.Flags().GetInt(issuesPerMinuteFlagNameConstant)
			options.issuesPerMinute = flagValue
		}
		if command.Flags().Changed(commentsPerMinuteFlagNameConstant) {
			flagValue, _ := command.Flags().GetInt(commentsPerMinuteFlagNameConstant)
			options.commentsPerMinute = flagValue
		}
		if command.Flags().Changed(skipContentFlagNameConstant) {
			flagValue, _ := command.Flags().GetBool(skipContentFlagNameConstant)
			options.skipContent = flagValue
		}
	}

	pathExpander := pathutils.NewHomeExpander()
	options.backupDirectory = pathExpander.Expand(options.backupDirectory)
	options.stateFilePath = pathExpander.Expand(options.stateFilePath)

	options.sourceOrganization = strings.TrimSpace(arguments[0])
	options.targetOrganization = strings.TrimSpace(arguments[1])

	explicitToken := ""
	if len(arguments) > restoreMinimumArgumentsConstant {
		explicitToken = arguments[restoreMinimumArgumentsConstant]
	}
	resolvedToken, tokenResolved := githubauth.ResolveToken(explicitToken, builder.Environment)
	if !tokenResolved {
		return restoreCommandOptions{}, errAccessTokenMissing
	}
	options.accessToken = resolvedToken

	return options, nil
}

func (builder *CommandBuilder) resolveLogger(enableDebug bool) *zap.Logger {
	var logger *zap.Logger
	if builder.LoggerProvider != nil {
		logger = builder.LoggerProvider()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if enableDebug {
		logger = logger.WithOptions(zap.IncreaseLevel(zapcore.DebugLevel))
	}
	return logger
}

func (builder *CommandBuilder) resolveGitHubClient(executionContext context.Context, accessToken string) (GitHubOperations, error) {
	if builder.GitHubClientProvider != nil {
		return builder.GitHubClientProvider(executionContext, accessToken)
	}
	return githubapi.NewClient(executionContext, accessToken)
}

func (builder *CommandBuilder) resolveCallLimiter(logger *zap.Logger, options restoreCommandOptions) (*ratelimit.Limiter, error) {
	limiterConfiguration := ratelimit.DefaultConfiguration()
	limiterConfiguration.IssueCalls.MinuteWindow.HardLimit = options.issuesPerMinute
	limiterConfiguration.CommentCalls.MinuteWindow.HardLimit = options.commentsPerMinute
	return ratelimit.NewLimiter(logger, limiterConfiguration)
}

func (builder *CommandBuilder) resolveContentPublisher(logger *zap.Logger) (ContentPublisher, error) {
	gitExecutor, executorError := builder.resolveGitExecutor(logger)
	if executorError != nil {
		return nil, executorError
	}
	return gitmirror.NewPublisher(logger, gitExecutor)
}

func (builder *CommandBuilder) resolveGitExecutor(logger *zap.Logger) (gitmirror.GitCommandExecutor, error) {
	if builder.GitExecutor != nil {
		return builder.GitExecutor, nil
	}

	commandRunner := execshell.NewOSCommandRunner()
	humanReadableLogging := false
	if builder.HumanReadableLoggingProvider != nil {
		humanReadableLogging = builder.HumanReadableLoggingProvider()
	}
	return execshell.NewShellExecutor(logger, commandRunner, humanReadableLogging)
}

func (builder *CommandBuilder) resolveService(dependencies ServiceDependencies) (RestoreExecutor, error) {
	if builder.ServiceProvider != nil {
		return builder.ServiceProvider(dependencies)
	}
	return NewService(dependencies)
}

func (builder *CommandBuilder) resolveConfiguration() RestoreConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandsConfiguration().Restore
	}

	provided := builder.ConfigurationProvider()
	return provided.sanitize()
}

func (builder *CommandBuilder) logRestoreFailure(logger *zap.Logger, failure error) {
	if logger == nil {
		return
	}

	logger.Error(logMessageRestoreFailedConstant, zap.Error(failure))
}

func (builder *CommandBuilder) logRestoreInterrupted(logger *zap.Logger, statePath string) {
	if logger == nil {
		return
	}

	logger.Warn(logMessageRestoreInterruptedConstant, zap.String(stateFileFieldNameConstant, statePath))
}
