package gitrepo

import (
	"fmt"
	"strings"
)

const (
	sshProtocolPrefixConstant              = "ssh://"
	sshUserDelimiterConstant               = "@"
	sshPathDelimiterConstant               = ":"
	httpsProtocolPrefixConstant            = "https://"
	gitUserPrefixConstant                  = "git@"
	pathSeparatorConstant                  = "/"
	gitSuffixConstant                      = ".git"
	remoteURLParseErrorTemplateConstant    = "%s: %s"
	invalidRemoteURLMessageConstant        = "invalid remote url"
	requiredValueMessageConstant           = "value required"
	pushTargetFieldMissingTemplateConstant = "push target %s missing"
	authenticatedPushURLTemplateConstant   = "https://%s@%s/%s/%s.git"
	pushTargetHostFieldConstant            = "host"
	pushTargetOwnerFieldConstant           = "owner"
	pushTargetRepositoryFieldConstant      = "repository"
	pushTargetAccessTokenFieldConstant     = "access token"
)

// DefaultGitHubHost is the host restored repositories are pushed to.
const DefaultGitHubHost = "github.com"

// RemoteProtocol enumerates supported git remote protocols.
type RemoteProtocol string

// Supported remote protocols.
const (
	RemoteProtocolSSH   RemoteProtocol = RemoteProtocol("ssh")
	RemoteProtocolHTTPS RemoteProtocol = RemoteProtocol("https")
)

// RemoteURL represents a structured git remote URL, such as the origin remote
// recorded in a backed-up checkout.
type RemoteURL struct {
	Protocol   RemoteProtocol
	Host       string
	Owner      string
	Repository string
}

// RemoteURLParseError indicates a remote string could not be parsed.
type RemoteURLParseError struct {
	Input   string
	Message string
}

// Error describes the parse failure.
func (parseError RemoteURLParseError) Error() string {
	return fmt.Sprintf(remoteURLParseErrorTemplateConstant, parseError.Input, parseError.Message)
}

// ParseRemoteURL converts a textual remote URL into a structured representation.
// Both scp-style and ssh:// remotes are recognized alongside https remotes, so
// checkouts cloned over either protocol can be inspected.
func ParseRemoteURL(remote string) (RemoteURL, error) {
	trimmedRemote := strings.TrimSpace(remote)
	if len(trimmedRemote) == 0 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: requiredValueMessageConstant}
	}

	if strings.HasPrefix(trimmedRemote, sshProtocolPrefixConstant) {
		return parseSSHRemote(strings.TrimPrefix(trimmedRemote, sshProtocolPrefixConstant))
	}
	if strings.HasPrefix(trimmedRemote, gitUserPrefixConstant) {
		return parseSSHRemote(trimmedRemote)
	}
	if strings.HasPrefix(trimmedRemote, httpsProtocolPrefixConstant) {
		return parseHTTPSRemote(strings.TrimPrefix(trimmedRemote, httpsProtocolPrefixConstant))
	}

	return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
}

func parseSSHRemote(remote string) (RemoteURL, error) {
	userSplitIndex := strings.Index(remote, sshUserDelimiterConstant)
	if userSplitIndex == -1 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}
	hostAndPath := remote[userSplitIndex+1:]
	pathSplitIndex := strings.Index(hostAndPath, sshPathDelimiterConstant)
	var host string
	var path string
	if pathSplitIndex == -1 {
		slashIndex := strings.Index(hostAndPath, pathSeparatorConstant)
		if slashIndex == -1 {
			return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
		}
		host = hostAndPath[:slashIndex]
		path = hostAndPath[slashIndex+1:]
	} else {
		host = hostAndPath[:pathSplitIndex]
		path = hostAndPath[pathSplitIndex+1:]
	}
	owner, repository, parseError := splitOwnerAndRepository(path)
	if parseError != nil {
		return RemoteURL{}, parseError
	}
	return RemoteURL{Protocol: RemoteProtocolSSH, Host: host, Owner: owner, Repository: repository}, nil
}

func parseHTTPSRemote(remote string) (RemoteURL, error) {
	pathComponents := strings.Split(remote, pathSeparatorConstant)
	if len(pathComponents) < 3 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}
	host := pathComponents[0]
	owner := pathComponents[1]
	repository, parseError := normalizeRepositoryName(strings.Join(pathComponents[2:], pathSeparatorConstant))
	if parseError != nil {
		return RemoteURL{}, parseError
	}
	return RemoteURL{Protocol: RemoteProtocolHTTPS, Host: host, Owner: owner, Repository: repository}, nil
}

func splitOwnerAndRepository(path string) (string, string, error) {
	segments := strings.Split(path, pathSeparatorConstant)
	if len(segments) != 2 {
		return "", "", RemoteURLParseError{Input: path, Message: invalidRemoteURLMessageConstant}
	}
	repository, parseError := normalizeRepositoryName(segments[1])
	if parseError != nil {
		return "", "", parseError
	}
	return segments[0], repository, nil
}

func normalizeRepositoryName(repository string) (string, error) {
	trimmed := strings.TrimSuffix(repository, gitSuffixConstant)
	if len(trimmed) == 0 {
		return "", RemoteURLParseError{Input: repository, Message: invalidRemoteURLMessageConstant}
	}
	return trimmed, nil
}

// PushTarget identifies the repository receiving a mirror push.
type PushTarget struct {
	Host       string
	Owner      string
	Repository string
}

// PushTargetError reports a push target missing a required component.
type PushTargetError struct {
	Field string
}

// Error names the missing component.
func (targetError PushTargetError) Error() string {
	return fmt.Sprintf(pushTargetFieldMissingTemplateConstant, targetError.Field)
}

// AuthenticatedPushURL builds the https remote URL a mirror push authenticates
// through. The access token travels in the URL userinfo, so the result must
// never be logged unredacted.
func AuthenticatedPushURL(target PushTarget, accessToken string) (string, error) {
	trimmedHost := strings.TrimSpace(target.Host)
	if len(trimmedHost) == 0 {
		return "", PushTargetError{Field: pushTargetHostFieldConstant}
	}
	trimmedOwner := strings.TrimSpace(target.Owner)
	if len(trimmedOwner) == 0 {
		return "", PushTargetError{Field: pushTargetOwnerFieldConstant}
	}
	trimmedRepository := strings.TrimSpace(target.Repository)
	if len(trimmedRepository) == 0 {
		return "", PushTargetError{Field: pushTargetRepositoryFieldConstant}
	}
	trimmedAccessToken := strings.TrimSpace(accessToken)
	if len(trimmedAccessToken) == 0 {
		return "", PushTargetError{Field: pushTargetAccessTokenFieldConstant}
	}

	return fmt.Sprintf(authenticatedPushURLTemplateConstant, trimmedAccessToken, trimmedHost, trimmedOwner, trimmedRepository), nil
}
