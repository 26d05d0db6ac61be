package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	temporaryFileSuffixConstant                 = ".tmp"
	stateFilePermissionsConstant                = 0o600
	stateDirectoryPermissionsConstant           = 0o755
	ledgerIndentConstant                        = "  "
	organizationMismatchMessageTemplateConstant = "state file %s tracks %s -> %s, not %s -> %s"
	ledgerDecodingMessageTemplateConstant       = "state file %s undecodable: %s"
	ledgerPersistenceMessageTemplateConstant    = "state file %s not persistable: %s"
	invalidTransitionMessageTemplateConstant    = "repository %s: invalid status transition %s -> %s"
	issueEventMessageTemplateConstant           = "repository %s issue %d: %s not allowed in status %s"
	unknownRepositoryMessageTemplateConstant    = "repository %s not tracked in state"
	unknownIssueMessageTemplateConstant         = "repository %s issue %d not tracked in state"
	unknownPullRequestMessageTemplateConstant   = "repository %s pull request %d not tracked in state"
	unknownEventMessageTemplateConstant         = "unknown state event kind %s"
)

// OrganizationMismatchError reports a ledger bound to a different organization pair.
type OrganizationMismatchError struct {
	Path            string
	LedgerSource    string
	LedgerTarget    string
	RequestedSource string
	RequestedTarget string
}

// Error describes the mismatch.
func (mismatchError OrganizationMismatchError) Error() string {
	return fmt.Sprintf(organizationMismatchMessageTemplateConstant, mismatchError.Path, mismatchError.LedgerSource, mismatchError.LedgerTarget, mismatchError.RequestedSource, mismatchError.RequestedTarget)
}

// LedgerDecodingError reports a ledger file that could not be parsed.
type LedgerDecodingError struct {
	Path  string
	Cause error
}

// Error describes the decoding failure.
func (decodingError LedgerDecodingError) Error() string {
	return fmt.Sprintf(ledgerDecodingMessageTemplateConstant, decodingError.Path, decodingError.Cause)
}

// Unwrap exposes the underlying JSON error.
func (decodingError LedgerDecodingError) Unwrap() error {
	return decodingError.Cause
}

// LedgerPersistenceError reports a ledger that could not be written to disk.
type LedgerPersistenceError struct {
	Path  string
	Cause error
}

// Error describes the persistence failure.
func (persistenceError LedgerPersistenceError) Error() string {
	return fmt.Sprintf(ledgerPersistenceMessageTemplateConstant, persistenceError.Path, persistenceError.Cause)
}

// Unwrap exposes the underlying filesystem error.
func (persistenceError LedgerPersistenceError) Unwrap() error {
	return persistenceError.Cause
}

// InvalidTransitionError reports a repository status change that would move backwards
// or leave a terminal status.
type InvalidTransitionError struct {
	Repository string
	FromStatus RepositoryStatus
	ToStatus   RepositoryStatus
}

// Error describes the rejected transition.
func (transitionError InvalidTransitionError) Error() string {
	return fmt.Sprintf(invalidTransitionMessageTemplateConstant, transitionError.Repository, transitionError.FromStatus, transitionError.ToStatus)
}

// IssueEventError reports an issue event that is not valid for the issue's current status.
type IssueEventError struct {
	Repository  string
	IssueNumber int
	Kind        EventKind
	Status      IssueStatus
}

// Error describes the rejected issue event.
func (eventError IssueEventError) Error() string {
	return fmt.Sprintf(issueEventMessageTemplateConstant, eventError.Repository, eventError.IssueNumber, eventError.Kind, eventError.Status)
}

// UnknownRepositoryError reports an event against a repository the ledger does not track.
type UnknownRepositoryError struct {
	Repository string
}

// Error describes the missing repository record.
func (unknownError UnknownRepositoryError) Error() string {
	return fmt.Sprintf(unknownRepositoryMessageTemplateConstant, unknownError.Repository)
}

// UnknownIssueError reports an event against an issue the ledger does not track.
type UnknownIssueError struct {
	Repository  string
	IssueNumber int
}

// Error describes the missing issue record.
func (unknownError UnknownIssueError) Error() string {
	return fmt.Sprintf(unknownIssueMessageTemplateConstant, unknownError.Repository, unknownError.IssueNumber)
}

// UnknownPullRequestError reports an event against a pull request the ledger does not track.
type UnknownPullRequestError struct {
	Repository        string
	PullRequestNumber int
}

// Error describes the missing pull request record.
func (unknownError UnknownPullRequestError) Error() string {
	return fmt.Sprintf(unknownPullRequestMessageTemplateConstant, unknownError.Repository, unknownError.PullRequestNumber)
}

// UnknownEventError reports an event kind the tracker does not understand.
type UnknownEventError struct {
	Kind EventKind
}

// Error describes the unrecognized kind.
func (unknownError UnknownEventError) Error() string {
	return fmt.Sprintf(unknownEventMessageTemplateConstant, unknownError.Kind)
}

// Tracker owns the restore ledger and persists it after every recorded event.
type Tracker struct {
	path   string
	ledger Ledger
}

// LoadTracker opens the ledger at statePath, creating a fresh one bound to the
// organization pair when the file does not exist. Creation persists immediately
// so an unwritable location fails before any remote call is made.
func LoadTracker(statePath string, sourceOrganization string, targetOrganization string) (*Tracker, error) {
	payload, readError := os.ReadFile(statePath)
	if readError != nil {
		if !errors.Is(readError, fs.ErrNotExist) {
			return nil, LedgerPersistenceError{Path: statePath, Cause: readError}
		}
		if directoryError := os.MkdirAll(filepath.Dir(statePath), stateDirectoryPermissionsConstant); directoryError != nil {
			return nil, LedgerPersistenceError{Path: statePath, Cause: directoryError}
		}
		tracker := &Tracker{
			path:   statePath,
			ledger: Ledger{SourceOrganization: sourceOrganization, TargetOrganization: targetOrganization},
		}
		if persistError := tracker.persist(); persistError != nil {
			return nil, persistError
		}
		return tracker, nil
	}

	var ledger Ledger
	if unmarshalError := json.Unmarshal(payload, &ledger); unmarshalError != nil {
		return nil, LedgerDecodingError{Path: statePath, Cause: unmarshalError}
	}
	if ledger.SourceOrganization != sourceOrganization || ledger.TargetOrganization != targetOrganization {
		return nil, OrganizationMismatchError{
			Path:            statePath,
			LedgerSource:    ledger.SourceOrganization,
			LedgerTarget:    ledger.TargetOrganization,
			RequestedSource: sourceOrganization,
			RequestedTarget: targetOrganization,
		}
	}
	return &Tracker{path: statePath, ledger: ledger}, nil
}

// ReadLedger loads the ledger at statePath without creating or modifying it.
// A missing file yields an empty ledger bound to the organization pair.
func ReadLedger(statePath string, sourceOrganization string, targetOrganization string) (Ledger, error) {
	payload, readError := os.ReadFile(statePath)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			return Ledger{SourceOrganization: sourceOrganization, TargetOrganization: targetOrganization}, nil
		}
		return Ledger{}, LedgerPersistenceError{Path: statePath, Cause: readError}
	}

	var ledger Ledger
	if unmarshalError := json.Unmarshal(payload, &ledger); unmarshalError != nil {
		return Ledger{}, LedgerDecodingError{Path: statePath, Cause: unmarshalError}
	}
	if ledger.SourceOrganization != sourceOrganization || ledger.TargetOrganization != targetOrganization {
		return Ledger{}, OrganizationMismatchError{
			Path:            statePath,
			LedgerSource:    ledger.SourceOrganization,
			LedgerTarget:    ledger.TargetOrganization,
			RequestedSource: sourceOrganization,
			RequestedTarget: targetOrganization,
		}
	}
	return ledger, nil
}

// Path reports the ledger location on disk.
func (tracker *Tracker) Path() string {
	return tracker.path
}

// Record applies the event to the ledger and persists it before returning.
// The event is durable once Record returns nil.
func (tracker *Tracker) Record(event Event) error {
	if applyError := tracker.apply(event); applyError != nil {
		return applyError
	}
	return tracker.persist()
}

// RepositoryState returns a copy of the named repository record.
func (tracker *Tracker) RepositoryState(repositoryName string) (RepositoryRecord, bool) {
	repositoryRecord := tracker.findRepository(repositoryName)
	if repositoryRecord == nil {
		return RepositoryRecord{}, false
	}
	return copyRepositoryRecord(*repositoryRecord), true
}

// Snapshot returns a deep copy of the ledger for reporting.
func (tracker *Tracker) Snapshot() Ledger {
	snapshot := Ledger{
		SourceOrganization: tracker.ledger.SourceOrganization,
		TargetOrganization: tracker.ledger.TargetOrganization,
	}
	for _, repositoryRecord := range tracker.ledger.Repositories {
		snapshot.Repositories = append(snapshot.Repositories, copyRepositoryRecord(repositoryRecord))
	}
	return snapshot
}

func copyRepositoryRecord(repositoryRecord RepositoryRecord) RepositoryRecord {
	recordCopy := repositoryRecord
	recordCopy.Issues = append([]IssueRecord(nil), repositoryRecord.Issues...)
	recordCopy.PullRequests = append([]PullRequestRecord(nil), repositoryRecord.PullRequests...)
	return recordCopy
}

func (tracker *Tracker) apply(event Event) error {
	switch event.Kind {
	case EventRepositoryCreated:
		return tracker.applyRepositoryCreated(event)
	case EventRepositoryStatusAdvanced:
		return tracker.applyRepositoryStatusAdvanced(event)
	case EventRepositoryFailed:
		return tracker.applyRepositoryFailed(event)
	case EventIssueCreated:
		return tracker.applyIssueCreated(event)
	case EventIssueCommentPosted:
		return tracker.applyIssueCommentPosted(event)
	case EventIssueCommentsCompleted:
		return tracker.applyIssueCommentsCompleted(event)
	case EventIssueClosed:
		return tracker.applyIssueClosed(event)
	case EventPullRequestIssueCreated:
		return tracker.applyPullRequestIssueCreated(event)
	case EventPullRequestIssueClosed:
		return tracker.applyPullRequestIssueClosed(event)
	default:
		return UnknownEventError{Kind: event.Kind}
	}
}

func (tracker *Tracker) applyRepositoryCreated(event Event) error {
	repositoryRecord := tracker.findRepository(event.Repository)
	if repositoryRecord == nil {
		tracker.ledger.Repositories = append(tracker.ledger.Repositories, RepositoryRecord{
			Name:   event.Repository,
			Status: RepositoryStatusRepositoryCreated,
		})
		return nil
	}
	if repositoryRecord.Status != RepositoryStatusPending {
		return InvalidTransitionError{Repository: event.Repository, FromStatus: repositoryRecord.Status, ToStatus: RepositoryStatusRepositoryCreated}
	}
	repositoryRecord.Status = RepositoryStatusRepositoryCreated
	return nil
}

func (tracker *Tracker) applyRepositoryStatusAdvanced(event Event) error {
	repositoryRecord := tracker.findRepository(event.Repository)
	if repositoryRecord == nil {
		return UnknownRepositoryError{Repository: event.Repository}
	}
	currentRank, currentKnown := repositoryStatusRanks[repositoryRecord.Status]
	targetRank, targetKnown := repositoryStatusRanks[event.RepositoryStatus]
	if !currentKnown || !targetKnown || targetRank <= currentRank {
		return InvalidTransitionError{Repository: event.Repository, FromStatus: repositoryRecord.Status, ToStatus: event.RepositoryStatus}
	}
	repositoryRecord.Status = event.RepositoryStatus
	return nil
}

func (tracker *Tracker) applyRepositoryFailed(event Event) error {
	repositoryRecord := tracker.findRepository(event.Repository)
	if repositoryRecord == nil {
		tracker.ledger.Repositories = append(tracker.ledger.Repositories, RepositoryRecord{
			Name:          event.Repository,
			Status:        RepositoryStatusFailed,
			FailureReason: event.Reason,
		})
		return nil
	}
	if repositoryRecord.Status == RepositoryStatusCompleted || repositoryRecord.Status == RepositoryStatusFailed {
		return InvalidTransitionError{Repository: event.Repository, FromStatus: repositoryRecord.Status, ToStatus: RepositoryStatusFailed}
	}
	repositoryRecord.Status = RepositoryStatusFailed
	repositoryRecord.FailureReason = event.Reason
	return nil
}

func (tracker *Tracker) applyIssueCreated(event Event) error {
	repositoryRecord := tracker.findRepository(event.Repository)
	if repositoryRecord == nil {
		return UnknownRepositoryError{Repository: event.Repository}
	}
	issueRecord := findIssueRecord(repositoryRecord, event.IssueNumber)
	if issueRecord == nil {
		repositoryRecord.Issues = append(repositoryRecord.Issues, IssueRecord{
			SourceNumber: event.IssueNumber,
			TargetNumber: event.TargetIssueNumber,
			Status:       IssueStatusCreated,
		})
		return nil
	}
	if issueRecord.Status != IssueStatusPending {
		return IssueEventError{Repository: event.Repository, IssueNumber: event.IssueNumber, Kind: event.Kind, Status: issueRecord.Status}
	}
	issueRecord.TargetNumber = event.TargetIssueNumber
	issueRecord.Status = IssueStatusCreated
	return nil
}

func (tracker *Tracker) applyIssueCommentPosted(event Event) error {
	issueRecord, lookupError := tracker.findTrackedIssue(event)
	if lookupError != nil {
		return lookupError
	}
	if issueRecord.Status != IssueStatusCreated {
		return IssueEventError{Repository: event.Repository, IssueNumber: event.IssueNumber, Kind: event.Kind, Status: issueRecord.Status}
	}
	issueRecord.CommentsPosted++
	return nil
}

func (tracker *Tracker) applyIssueCommentsCompleted(event Event) error {
	issueRecord, lookupError := tracker.findTrackedIssue(event)
	if lookupError != nil {
		return lookupError
	}
	if issueRecord.Status != IssueStatusCreated {
		return IssueEventError{Repository: event.Repository, IssueNumber: event.IssueNumber, Kind: event.Kind, Status: issueRecord.Status}
	}
	issueRecord.Status = IssueStatusCommented
	return nil
}

func (tracker *Tracker) applyIssueClosed(event Event) error {
	issueRecord, lookupError := tracker.findTrackedIssue(event)
	if lookupError != nil {
		return lookupError
	}
	if issueRecord.Status != IssueStatusCommented {
		return IssueEventError{Repository: event.Repository, IssueNumber: event.IssueNumber, Kind: event.Kind, Status: issueRecord.Status}
	}
	issueRecord.Status = IssueStatusClosed
	return nil
}

func (tracker *Tracker) applyPullRequestIssueCreated(event Event) error {
	repositoryRecord := tracker.findRepository(event.Repository)
	if repositoryRecord == nil {
		return UnknownRepositoryError{Repository: event.Repository}
	}
	pullRequestRecord := findPullRequestRecord(repositoryRecord, event.PullRequestNumber)
	if pullRequestRecord == nil {
		repositoryRecord.PullRequests = append(repositoryRecord.PullRequests, PullRequestRecord{
			Number:            event.PullRequestNumber,
			TargetIssueNumber: event.TargetIssueNumber,
		})
		return nil
	}
	pullRequestRecord.TargetIssueNumber = event.TargetIssueNumber
	return nil
}

func (tracker *Tracker) applyPullRequestIssueClosed(event Event) error {
	repositoryRecord := tracker.findRepository(event.Repository)
	if repositoryRecord == nil {
		return UnknownRepositoryError{Repository: event.Repository}
	}
	pullRequestRecord := findPullRequestRecord(repositoryRecord, event.PullRequestNumber)
	if pullRequestRecord == nil {
		return UnknownPullRequestError{Repository: event.Repository, PullRequestNumber: event.PullRequestNumber}
	}
	pullRequestRecord.Documented = true
	return nil
}

func (tracker *Tracker) findTrackedIssue(event Event) (*IssueRecord, error) {
	repositoryRecord := tracker.findRepository(event.Repository)
	if repositoryRecord == nil {
		return nil, UnknownRepositoryError{Repository: event.Repository}
	}
	issueRecord := findIssueRecord(repositoryRecord, event.IssueNumber)
	if issueRecord == nil {
		return nil, UnknownIssueError{Repository: event.Repository, IssueNumber: event.IssueNumber}
	}
	return issueRecord, nil
}

func (tracker *Tracker) findRepository(repositoryName string) *RepositoryRecord {
	for recordIndex := range tracker.ledger.Repositories {
		if tracker.ledger.Repositories[recordIndex].Name == repositoryName {
			return &tracker.ledger.Repositories[recordIndex]
		}
	}
	return nil
}

func findIssueRecord(repositoryRecord *RepositoryRecord, sourceNumber int) *IssueRecord {
	for recordIndex := range repositoryRecord.Issues {
		if repositoryRecord.Issues[recordIndex].SourceNumber == sourceNumber {
			return &repositoryRecord.Issues[recordIndex]
		}
	}
	return nil
}

func findPullRequestRecord(repositoryRecord *RepositoryRecord, pullRequestNumber int) *PullRequestRecord {
	for recordIndex := range repositoryRecord.PullRequests {
		if repositoryRecord.PullRequests[recordIndex].Number == pullRequestNumber {
			return &repositoryRecord.PullRequests[recordIndex]
		}
	}
	return nil
}

func (tracker *Tracker) persist() error {
	ledgerPayload, marshalError := json.MarshalIndent(tracker.ledger, "", ledgerIndentConstant)
	if marshalError != nil {
		return LedgerPersistenceError{Path: tracker.path, Cause: marshalError}
	}

	temporaryPath := tracker.path + temporaryFileSuffixConstant
	if writeError := os.WriteFile(temporaryPath, ledgerPayload, stateFilePermissionsConstant); writeError != nil {
		return LedgerPersistenceError{Path: tracker.path, Cause: writeError}
	}
	if renameError := os.Rename(temporaryPath, tracker.path); renameError != nil {
		_ = os.Remove(temporaryPath)
		return LedgerPersistenceError{Path: tracker.path, Cause: renameError}
	}
	return nil
}
