package migrate

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rdmolony/backup-and-restore-a-github-org/internal/backup"
	"github.com/rdmolony/backup-and-restore-a-github-org/internal/state"
	pathutils "github.com/rdmolony/backup-and-restore-a-github-org/internal/utils/path"
)

const (
	planCommandUseConstant              = "plan SOURCE_ORG TARGET_ORG"
	planCommandShortDescriptionConstant = "Report the work a restore run would perform"
	planCommandLongDescriptionConstant  = "plan reads the backup and the migration ledger, then prints the per-repository restore plan as YAML. It performs no network calls and never modifies the ledger."
	planArgumentCountConstant           = 2

	ledgerReadErrorTemplateConstant   = "unable to read migration ledger: %w"
	planEncodingErrorTemplateConstant = "unable to encode plan: %w"
)

type planCommandOptions struct {
	sourceOrganization string
	targetOrganization string
	backupDirectory    string
	stateFilePath      string
}

// PlanCommandBuilder assembles the plan Cobra command.
type PlanCommandBuilder struct {
	ConfigurationProvider func() PlanConfiguration
}

// Build constructs the plan command.
func (builder *PlanCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           planCommandUseConstant,
		Short:         planCommandShortDescriptionConstant,
		Long:          planCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ExactArgs(planArgumentCountConstant),
		RunE:          builder.runPlan,
	}

	defaults := DefaultCommandsConfiguration().Plan
	command.Flags().String(backupDirectoryFlagNameConstant, defaults.BackupDirectory, backupDirectoryFlagUsageConstant)
	command.Flags().String(stateFileFlagNameConstant, defaults.StateFile, stateFileFlagUsageConstant)

	return command, nil
}

func (builder *PlanCommandBuilder) runPlan(command *cobra.Command, arguments []string) error {
	options := builder.parsePlanOptions(command, arguments)

	backupReader := backup.NewReader()
	organization, loadError := backupReader.LoadOrganization(options.backupDirectory, options.sourceOrganization)
	if loadError != nil {
		return fmt.Errorf(backupLoadErrorTemplateConstant, loadError)
	}

	ledger, ledgerError := state.ReadLedger(options.stateFilePath, options.sourceOrganization, options.targetOrganization)
	if ledgerError != nil {
		return fmt.Errorf(ledgerReadErrorTemplateConstant, ledgerError)
	}

	runPlan := BuildRunPlan(organization, options.targetOrganization, ledger)
	encodedPlan, encodeError := yaml.Marshal(runPlan)
	if encodeError != nil {
		return fmt.Errorf(planEncodingErrorTemplateConstant, encodeError)
	}

	_, writeError := command.OutOrStdout().Write(encodedPlan)
	return writeError
}

func (builder *PlanCommandBuilder) parsePlanOptions(command *cobra.Command, arguments []string) planCommandOptions {
	configuration := builder.resolvePlanConfiguration()

	options := planCommandOptions{
		backupDirectory: configuration.BackupDirectory,
		stateFilePath:   configuration.StateFile,
	}

	if command != nil {
		if command.Flags().Changed(backupDirectoryFlagNameConstant) {
			flagValue, _ := command.Flags().GetString(backupDirectoryFlagNameConstant)
			options.backupDirectory = strings.TrimSpace(flagValue)
		}
		if command.Flags().Changed(stateFileFlagNameConstant) {
			flagValue, _ := command.Flags().GetString(stateFileFlagNameConstant)
			options.stateFilePath = strings.TrimSpace(flagValue)
		}
	}

	pathExpander := pathutils.NewHomeExpander()
	options.backupDirectory = pathExpander.Expand(options.backupDirectory)
	options.stateFilePath = pathExpander.Expand(options.stateFilePath)

	options.sourceOrganization = strings.TrimSpace(arguments[0])
	options.targetOrganization = strings.TrimSpace(arguments[1])

	return options
}

func (builder *PlanCommandBuilder) resolvePlanConfiguration() PlanConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandsConfiguration().Plan
	}

	provided := builder.ConfigurationProvider()
	return provided.sanitize()
}
