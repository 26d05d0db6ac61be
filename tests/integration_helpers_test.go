package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rdmolony/backup-and-restore-a-github-org/internal/ratelimit"
)

const (
	integrationSourceOrganizationConstant = "legacy-org"
	integrationTargetOrganizationConstant = "acme-archive"
	integrationAccessTokenConstant        = "integration-test-token"
	integrationStateFileNameConstant      = "migration_state.json"
	integrationIssuesFileNameConstant     = "issues.json"
	integrationPullsFileNameConstant      = "pull_requests.json"
)

var integrationBaseTime = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

type githubCall struct {
	method string
	path   string
	body   string
}

// fakeOrganizationServer emulates the slice of the GitHub REST surface the
// restore engine touches. Mutating calls are recorded in order; reads are
// recorded separately so resume runs can be checked for skipped pre-checks.
type fakeOrganizationServer struct {
	httpServer           *httptest.Server
	existingRepositories map[string]bool
	nextIssueNumber      int
	mutationAttempts     int
	failMutationIndex    int
	failureConsumed      bool
	mutations            []githubCall
	reads                []githubCall
}

func newFakeOrganizationServer(testInstance *testing.T) *fakeOrganizationServer {
	testInstance.Helper()

	fakeServer := &fakeOrganizationServer{existingRepositories: map[string]bool{}}
	routeMux := http.NewServeMux()

	routeMux.HandleFunc("GET /api/v3/orgs/{organization}", func(responseWriter http.ResponseWriter, request *http.Request) {
		fakeServer.recordRead(request)
		writeJSONResponse(responseWriter, http.StatusOK, fmt.Sprintf(`{"login":%q}`, request.PathValue("organization")))
	})

	routeMux.HandleFunc("GET /api/v3/repos/{organization}/{repository}", func(responseWriter http.ResponseWriter, request *http.Request) {
		fakeServer.recordRead(request)
		repositoryName := request.PathValue("repository")
		if fakeServer.existingRepositories[repositoryName] {
			writeJSONResponse(responseWriter, http.StatusOK, fmt.Sprintf(`{"name":%q}`, repositoryName))
			return
		}
		writeJSONResponse(responseWriter, http.StatusNotFound, `{"message":"Not Found"}`)
	})

	routeMux.HandleFunc("POST /api/v3/orgs/{organization}/repos", func(responseWriter http.ResponseWriter, request *http.Request) {
		recordedCall, admitted := fakeServer.admitMutation(responseWriter, request)
		if !admitted {
			return
		}
		var repositoryPayload struct {
			Name string `json:"name"`
		}
		_ = json.Unmarshal([]byte(recordedCall.body), &repositoryPayload)
		fakeServer.existingRepositories[repositoryPayload.Name] = true
		writeJSONResponse(responseWriter, http.StatusCreated, fmt.Sprintf(`{"name":%q}`, repositoryPayload.Name))
	})

	routeMux.HandleFunc("POST /api/v3/repos/{organization}/{repository}/issues", func(responseWriter http.ResponseWriter, request *http.Request) {
		_, admitted := fakeServer.admitMutation(responseWriter, request)
		if !admitted {
			return
		}
		fakeServer.nextIssueNumber++
		writeJSONResponse(responseWriter, http.StatusCreated, fmt.Sprintf(`{"number":%d}`, fakeServer.nextIssueNumber))
	})

	routeMux.HandleFunc("POST /api/v3/repos/{organization}/{repository}/issues/{number}/comments", func(responseWriter http.ResponseWriter, request *http.Request) {
		_, admitted := fakeServer.admitMutation(responseWriter, request)
		if !admitted {
			return
		}
		writeJSONResponse(responseWriter, http.StatusCreated, `{"id":1}`)
	})

	routeMux.HandleFunc("PATCH /api/v3/repos/{organization}/{repository}/issues/{number}", func(responseWriter http.ResponseWriter, request *http.Request) {
		_, admitted := fakeServer.admitMutation(responseWriter, request)
		if !admitted {
			return
		}
		writeJSONResponse(responseWriter, http.StatusOK, `{"state":"closed"}`)
	})

	fakeServer.httpServer = httptest.NewServer(routeMux)
	testInstance.Cleanup(fakeServer.httpServer.Close)
	return fakeServer
}

func (fakeServer *fakeOrganizationServer) endpointURL() string {
	return fakeServer.httpServer.URL
}

// failMutationOnce arranges for the numbered mutation attempt to fail with an
// internal server error. The failure fires once; later attempts succeed.
func (fakeServer *fakeOrganizationServer) failMutationOnce(mutationIndex int) {
	fakeServer.failMutationIndex = mutationIndex
	fakeServer.failureConsumed = false
}

func (fakeServer *fakeOrganizationServer) admitMutation(responseWriter http.ResponseWriter, request *http.Request) (githubCall, bool) {
	bodyBytes, _ := io.ReadAll(request.Body)
	recordedCall := githubCall{method: request.Method, path: request.URL.Path, body: string(bodyBytes)}

	fakeServer.mutationAttempts++
	if fakeServer.failMutationIndex > 0 && !fakeServer.failureConsumed && fakeServer.mutationAttempts == fakeServer.failMutationIndex {
		fakeServer.failureConsumed = true
		writeJSONResponse(responseWriter, http.StatusInternalServerError, `{"message":"Server Error"}`)
		return githubCall{}, false
	}

	fakeServer.mutations = append(fakeServer.mutations, recordedCall)
	return recordedCall, true
}

func (fakeServer *fakeOrganizationServer) recordRead(request *http.Request) {
	fakeServer.reads = append(fakeServer.reads, githubCall{method: request.Method, path: request.URL.Path})
}

func (fakeServer *fakeOrganizationServer) mutationPaths() []string {
	paths := make([]string, 0, len(fakeServer.mutations))
	for _, recordedCall := range fakeServer.mutations {
		paths = append(paths, recordedCall.method+" "+recordedCall.path)
	}
	return paths
}

func (fakeServer *fakeOrganizationServer) mutationSignatures() []string {
	signatures := make([]string, 0, len(fakeServer.mutations))
	for _, recordedCall := range fakeServer.mutations {
		signatures = append(signatures, recordedCall.method+" "+recordedCall.path+" "+recordedCall.body)
	}
	return signatures
}

func (fakeServer *fakeOrganizationServer) readPaths() []string {
	paths := make([]string, 0, len(fakeServer.reads))
	for _, recordedCall := range fakeServer.reads {
		paths = append(paths, recordedCall.method+" "+recordedCall.path)
	}
	return paths
}

func writeJSONResponse(responseWriter http.ResponseWriter, statusCode int, payload string) {
	responseWriter.Header().Set("Content-Type", "application/json")
	responseWriter.WriteHeader(statusCode)
	_, _ = responseWriter.Write([]byte(payload))
}

// fixedClock keeps window accounting stable so integration runs never wait on
// real time.
type fixedClock struct {
	currentTime time.Time
}

func (clock fixedClock) Now() time.Time {
	return clock.currentTime
}

// recordingSleeper satisfies pacing waits instantly while keeping the
// requested durations for assertions.
type recordingSleeper struct {
	recordedSleeps []time.Duration
}

func (sleeper *recordingSleeper) Sleep(executionContext context.Context, duration time.Duration) error {
	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}
	sleeper.recordedSleeps = append(sleeper.recordedSleeps, duration)
	return nil
}

func newIntegrationLimiter(testInstance *testing.T, sleeper *recordingSleeper) *ratelimit.Limiter {
	testInstance.Helper()
	limiter, creationError := ratelimit.NewLimiterWithDependencies(
		zap.NewNop(),
		ratelimit.DefaultConfiguration(),
		ratelimit.Dependencies{Clock: fixedClock{currentTime: integrationBaseTime}, Sleeper: sleeper},
	)
	require.NoError(testInstance, creationError)
	return limiter
}

func writeRepositoryBackup(testInstance *testing.T, backupRoot string, organizationName string, repositoryName string, issuesPayload string, pullRequestsPayload string) string {
	testInstance.Helper()
	repositoryPath := filepath.Join(backupRoot, organizationName, repositoryName)
	require.NoError(testInstance, os.MkdirAll(repositoryPath, 0o755))
	require.NoError(testInstance, os.WriteFile(filepath.Join(repositoryPath, integrationIssuesFileNameConstant), []byte(issuesPayload), 0o644))
	require.NoError(testInstance, os.WriteFile(filepath.Join(repositoryPath, integrationPullsFileNameConstant), []byte(pullRequestsPayload), 0o644))
	return repositoryPath
}
