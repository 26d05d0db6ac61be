package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const (
	issuesFileNameConstant                     = "issues.json"
	pullRequestsFileNameConstant               = "pull_requests.json"
	bareCheckoutDirectoryNameConstant          = "repository.git"
	workingCheckoutDirectoryNameConstant       = "repository"
	organizationDirectoryErrorTemplateConstant = "organization backup directory %s unreadable: %s"
	repositoryDataErrorTemplateConstant        = "repository %s: %s: %s"
)

// OrganizationDirectoryError reports an organization backup directory that could not be enumerated.
type OrganizationDirectoryError struct {
	Path  string
	Cause error
}

// Error describes the enumeration failure.
func (directoryError OrganizationDirectoryError) Error() string {
	return fmt.Sprintf(organizationDirectoryErrorTemplateConstant, directoryError.Path, directoryError.Cause)
}

// Unwrap exposes the underlying filesystem error.
func (directoryError OrganizationDirectoryError) Unwrap() error {
	return directoryError.Cause
}

// RepositoryDataError reports a repository whose backup data could not be loaded.
type RepositoryDataError struct {
	Repository string
	File       string
	Cause      error
}

// Error describes the load failure.
func (dataError RepositoryDataError) Error() string {
	return fmt.Sprintf(repositoryDataErrorTemplateConstant, dataError.Repository, dataError.File, dataError.Cause)
}

// Unwrap exposes the underlying cause.
func (dataError RepositoryDataError) Unwrap() error {
	return dataError.Cause
}

// Reader loads organization backups from disk.
type Reader struct{}

// NewReader constructs a backup reader.
func NewReader() *Reader {
	return &Reader{}
}

// LoadOrganization enumerates every repository directory beneath the
// organization backup and loads its issue and pull request data. Repositories
// whose data files are missing or malformed are returned with LoadFailure
// populated so callers can fail them individually instead of aborting the run.
func (reader *Reader) LoadOrganization(backupRoot string, organizationName string) (Organization, error) {
	organizationPath := filepath.Join(backupRoot, organizationName)
	directoryEntries, readError := os.ReadDir(organizationPath)
	if readError != nil {
		return Organization{}, OrganizationDirectoryError{Path: organizationPath, Cause: readError}
	}

	organization := Organization{Name: organizationName}
	for _, directoryEntry := range directoryEntries {
		if !directoryEntry.IsDir() {
			continue
		}
		organization.Repositories = append(organization.Repositories, reader.loadRepository(organizationPath, directoryEntry.Name()))
	}

	return organization, nil
}

func (reader *Reader) loadRepository(organizationPath string, repositoryName string) Repository {
	repository := Repository{Name: repositoryName}
	repositoryPath := filepath.Join(organizationPath, repositoryName)

	issues, issuesError := loadCollectionFile[Issue](repositoryPath, issuesFileNameConstant)
	if issuesError != nil {
		repository.LoadFailure = RepositoryDataError{Repository: repositoryName, File: issuesFileNameConstant, Cause: issuesError}
		return repository
	}

	pullRequests, pullRequestsError := loadCollectionFile[PullRequest](repositoryPath, pullRequestsFileNameConstant)
	if pullRequestsError != nil {
		repository.LoadFailure = RepositoryDataError{Repository: repositoryName, File: pullRequestsFileNameConstant, Cause: pullRequestsError}
		return repository
	}

	sortIssuesChronologically(issues)
	sortPullRequestsByNumber(pullRequests)

	repository.Issues = issues
	repository.PullRequests = pullRequests
	repository.CheckoutPath = locateCheckout(repositoryPath)
	return repository
}

func loadCollectionFile[T any](repositoryPath string, fileName string) ([]T, error) {
	payload, readError := os.ReadFile(filepath.Join(repositoryPath, fileName))
	if readError != nil {
		return nil, readError
	}
	return decodeCollection[T](payload)
}

func locateCheckout(repositoryPath string) string {
	for _, checkoutDirectoryName := range []string{bareCheckoutDirectoryNameConstant, workingCheckoutDirectoryNameConstant} {
		checkoutPath := filepath.Join(repositoryPath, checkoutDirectoryName)
		checkoutInfo, statError := os.Stat(checkoutPath)
		if statError == nil && checkoutInfo.IsDir() {
			return checkoutPath
		}
	}
	return ""
}

func sortIssuesChronologically(issues []Issue) {
	sort.SliceStable(issues, func(firstIndex int, secondIndex int) bool {
		if issues[firstIndex].CreatedAt.Equal(issues[secondIndex].CreatedAt) {
			return issues[firstIndex].Number < issues[secondIndex].Number
		}
		return issues[firstIndex].CreatedAt.Before(issues[secondIndex].CreatedAt)
	})
}

func sortPullRequestsByNumber(pullRequests []PullRequest) {
	sort.SliceStable(pullRequests, func(firstIndex int, secondIndex int) bool {
		return pullRequests[firstIndex].Number < pullRequests[secondIndex].Number
	})
}
