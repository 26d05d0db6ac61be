package migrate

import "strings"

const (
	restoreConfigurationKeyConstant           = "restore"
	planConfigurationKeyConstant              = "plan"
	configurationBackupDirectoryKeyConstant   = "backup_dir"
	configurationStateFileKeyConstant         = "state_file"
	configurationIssuesPerMinuteKeyConstant   = "issues_per_minute"
	configurationCommentsPerMinuteKeyConstant = "comments_per_minute"
	configurationSkipContentKeyConstant       = "skip_content"

	defaultBackupDirectoryConstant   = "."
	defaultStateFileConstant         = "migration_state.json"
	defaultIssuesPerMinuteConstant   = 20
	defaultCommentsPerMinuteConstant = 20
)

// CommandsConfiguration captures restore and plan command configuration sections.
type CommandsConfiguration struct {
	Restore RestoreConfiguration `mapstructure:"restore"`
	Plan    PlanConfiguration    `mapstructure:"plan"`
}

// RestoreConfiguration describes configuration values for the restore command.
type RestoreConfiguration struct {
	BackupDirectory   string `mapstructure:"backup_dir"`
	StateFile         string `mapstructure:"state_file"`
	IssuesPerMinute   int    `mapstructure:"issues_per_minute"`
	CommentsPerMinute int    `mapstructure:"comments_per_minute"`
	SkipContent       bool   `mapstructure:"skip_content"`
}

// PlanConfiguration describes configuration values for the plan command.
type PlanConfiguration struct {
	BackupDirectory string `mapstructure:"backup_dir"`
	StateFile       string `mapstructure:"state_file"`
}

// DefaultCommandsConfiguration returns baseline configuration values for both commands.
func DefaultCommandsConfiguration() CommandsConfiguration {
	return CommandsConfiguration{
		Restore: RestoreConfiguration{
			BackupDirectory:   defaultBackupDirectoryConstant,
			StateFile:         defaultStateFileConstant,
			IssuesPerMinute:   defaultIssuesPerMinuteConstant,
			CommentsPerMinute: defaultCommentsPerMinuteConstant,
			SkipContent:       false,
		},
		Plan: PlanConfiguration{
			BackupDirectory: defaultBackupDirectoryConstant,
			StateFile:       defaultStateFileConstant,
		},
	}
}

// DefaultConfigurationValues produces Viper defaults for the restore and plan commands.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultCommandsConfiguration()
	return map[string]any{
		rootKey + "." + restoreConfigurationKeyConstant + "." + configurationBackupDirectoryKeyConstant:   defaults.Restore.BackupDirectory,
		rootKey + "." + restoreConfigurationKeyConstant + "." + configurationStateFileKeyConstant:         defaults.Restore.StateFile,
		rootKey + "." + restoreConfigurationKeyConstant + "." + configurationIssuesPerMinuteKeyConstant:   defaults.Restore.IssuesPerMinute,
		rootKey + "." + restoreConfigurationKeyConstant + "." + configurationCommentsPerMinuteKeyConstant: defaults.Restore.CommentsPerMinute,
		rootKey + "." + restoreConfigurationKeyConstant + "." + configurationSkipContentKeyConstant:       defaults.Restore.SkipContent,
		rootKey + "." + planConfigurationKeyConstant + "." + configurationBackupDirectoryKeyConstant:      defaults.Plan.BackupDirectory,
		rootKey + "." + planConfigurationKeyConstant + "." + configurationStateFileKeyConstant:            defaults.Plan.StateFile,
	}
}

// sanitize normalizes restore configuration values.
func (configuration RestoreConfiguration) sanitize() RestoreConfiguration {
	sanitized := configuration
	sanitized.BackupDirectory = strings.TrimSpace(configuration.BackupDirectory)
	if len(sanitized.BackupDirectory) == 0 {
		sanitized.BackupDirectory = defaultBackupDirectoryConstant
	}
	sanitized.StateFile = strings.TrimSpace(configuration.StateFile)
	if len(sanitized.StateFile) == 0 {
		sanitized.StateFile = defaultStateFileConstant
	}
	if sanitized.IssuesPerMinute <= 0 {
		sanitized.IssuesPerMinute = defaultIssuesPerMinuteConstant
	}
	if sanitized.CommentsPerMinute <= 0 {
		sanitized.CommentsPerMinute = defaultCommentsPerMinuteConstant
	}
	return sanitized
}

// sanitize normalizes plan configuration values.
func (configuration PlanConfiguration) sanitize() PlanConfiguration {
	sanitized := configuration
	sanitized.BackupDirectory = strings.TrimSpace(configuration.BackupDirectory)
	if len(sanitized.BackupDirectory) == 0 {
		sanitized.BackupDirectory = defaultBackupDirectoryConstant
	}
	sanitized.StateFile = strings.TrimSpace(configuration.StateFile)
	if len(sanitized.StateFile) == 0 {
		sanitized.StateFile = defaultStateFileConstant
	}
	return sanitized
}
