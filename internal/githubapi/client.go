package githubapi

import (
	"context"
	"errors"
	"strings"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
)

const (
	tokenNotConfiguredMessageConstant = "github api token not configured"
	issueStateClosedValueConstant     = "closed"
)

// OperationName identifies a remote call for failure reporting.
type OperationName string

// Operation names attached to classified call failures.
const (
	OperationResolveOrganization OperationName = "resolve_organization"
	OperationRepositoryExists    OperationName = "repository_exists"
	OperationCreateRepository    OperationName = "create_repository"
	OperationCreateIssue         OperationName = "create_issue"
	OperationCreateIssueComment  OperationName = "create_issue_comment"
	OperationCloseIssue          OperationName = "close_issue"
)

// ErrTokenNotConfigured indicates client construction without an access token.
var ErrTokenNotConfigured = errors.New(tokenNotConfiguredMessageConstant)

// RepositoryOptions carries the attributes applied when creating a repository.
type RepositoryOptions struct {
	Name        string
	Description string
	Private     bool
}

// Client performs authenticated GitHub REST calls for restore runs.
type Client struct {
	restClient *github.Client
}

// NewClient constructs a Client authenticated with a static token transport.
func NewClient(executionContext context.Context, accessToken string) (*Client, error) {
	restClient, clientError := newRESTClient(executionContext, accessToken)
	if clientError != nil {
		return nil, clientError
	}
	return &Client{restClient: restClient}, nil
}

// NewClientWithEndpoint constructs a Client against a GitHub Enterprise or
// test endpoint instead of github.com.
func NewClientWithEndpoint(executionContext context.Context, accessToken string, endpointURL string) (*Client, error) {
	restClient, clientError := newRESTClient(executionContext, accessToken)
	if clientError != nil {
		return nil, clientError
	}
	endpointClient, endpointError := restClient.WithEnterpriseURLs(endpointURL, endpointURL)
	if endpointError != nil {
		return nil, endpointError
	}
	return &Client{restClient: endpointClient}, nil
}

func newRESTClient(executionContext context.Context, accessToken string) (*github.Client, error) {
	trimmedToken := strings.TrimSpace(accessToken)
	if len(trimmedToken) == 0 {
		return nil, ErrTokenNotConfigured
	}
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: trimmedToken})
	authenticatedClient := oauth2.NewClient(executionContext, tokenSource)
	return github.NewClient(authenticatedClient), nil
}

// ResolveOrganization confirms the organization exists and the token can see it.
func (client *Client) ResolveOrganization(executionContext context.Context, organizationName string) error {
	_, _, callFailure := client.restClient.Organizations.Get(executionContext, organizationName)
	if callFailure != nil {
		return classifyFailure(OperationResolveOrganization, callFailure)
	}
	return nil
}

// RepositoryExists reports whether the repository is already present in the
// organization. A missing repository is a regular answer, not an error.
func (client *Client) RepositoryExists(executionContext context.Context, organizationName string, repositoryName string) (bool, error) {
	_, _, callFailure := client.restClient.Repositories.Get(executionContext, organizationName, repositoryName)
	if callFailure == nil {
		return true, nil
	}
	classifiedFailure := classifyFailure(OperationRepositoryExists, callFailure)
	var callError CallError
	if errors.As(classifiedFailure, &callError) && callError.Kind == FailureKindNotFound {
		return false, nil
	}
	return false, classifiedFailure
}

// CreateRepository creates the repository in the organization.
func (client *Client) CreateRepository(executionContext context.Context, organizationName string, repositoryOptions RepositoryOptions) error {
	repositoryPayload := &github.Repository{
		Name:        github.String(repositoryOptions.Name),
		Description: github.String(repositoryOptions.Description),
		Private:     github.Bool(repositoryOptions.Private),
	}
	_, _, callFailure := client.restClient.Repositories.Create(executionContext, organizationName, repositoryPayload)
	if callFailure != nil {
		return classifyFailure(OperationCreateRepository, callFailure)
	}
	return nil
}

// CreateIssue opens an issue and returns the number assigned by the remote.
func (client *Client) CreateIssue(executionContext context.Context, organizationName string, repositoryName string, issueTitle string, issueBody string) (int, error) {
	issuePayload := &github.IssueRequest{
		Title: github.String(issueTitle),
		Body:  github.String(issueBody),
	}
	createdIssue, _, callFailure := client.restClient.Issues.Create(executionContext, organizationName, repositoryName, issuePayload)
	if callFailure != nil {
		return 0, classifyFailure(OperationCreateIssue, callFailure)
	}
	return createdIssue.GetNumber(), nil
}

// CreateIssueComment posts a comment on the numbered issue.
func (client *Client) CreateIssueComment(executionContext context.Context, organizationName string, repositoryName string, issueNumber int, commentBody string) error {
	commentPayload := &github.IssueComment{Body: github.String(commentBody)}
	_, _, callFailure := client.restClient.Issues.CreateComment(executionContext, organizationName, repositoryName, issueNumber, commentPayload)
	if callFailure != nil {
		return classifyFailure(OperationCreateIssueComment, callFailure)
	}
	return nil
}

// CloseIssue transitions the numbered issue to the closed state.
func (client *Client) CloseIssue(executionContext context.Context, organizationName string, repositoryName string, issueNumber int) error {
	statePayload := &github.IssueRequest{State: github.String(issueStateClosedValueConstant)}
	_, _, callFailure := client.restClient.Issues.Edit(executionContext, organizationName, repositoryName, issueNumber, statePayload)
	if callFailure != nil {
		return classifyFailure(OperationCloseIssue, callFailure)
	}
	return nil
}
