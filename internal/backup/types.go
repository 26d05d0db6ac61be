package backup

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	nullLiteralConstant                       = "null"
	nodesFieldNameConstant                    = "nodes"
	unsupportedCollectionShapeMessageConstant = "unsupported collection shape"
)

// ErrUnsupportedCollectionShape indicates a collection payload that is neither
// a bare array nor a nodes wrapper object.
var ErrUnsupportedCollectionShape = errors.New(unsupportedCollectionShapeMessageConstant)

// IssueState describes the lifecycle state recorded for a backed-up issue.
type IssueState string

// Issue state enumerations in their canonical uppercase form.
const (
	IssueStateOpen   IssueState = "OPEN"
	IssueStateClosed IssueState = "CLOSED"
)

// UnmarshalJSON normalizes issue states by trimming whitespace and uppercasing.
func (state *IssueState) UnmarshalJSON(payload []byte) error {
	normalizedState, normalizationError := normalizeStateValue(payload)
	if normalizationError != nil {
		return normalizationError
	}
	*state = IssueState(normalizedState)
	return nil
}

// PullRequestState describes the lifecycle state recorded for a backed-up pull request.
type PullRequestState string

// Pull request state enumerations in their canonical uppercase form.
const (
	PullRequestStateOpen   PullRequestState = "OPEN"
	PullRequestStateClosed PullRequestState = "CLOSED"
	PullRequestStateMerged PullRequestState = "MERGED"
)

// UnmarshalJSON normalizes pull request states by trimming whitespace and uppercasing.
func (state *PullRequestState) UnmarshalJSON(payload []byte) error {
	normalizedState, normalizationError := normalizeStateValue(payload)
	if normalizationError != nil {
		return normalizationError
	}
	*state = PullRequestState(normalizedState)
	return nil
}

// ReviewState describes the verdict recorded for a backed-up pull request review.
type ReviewState string

// UnmarshalJSON normalizes review states by trimming whitespace and uppercasing.
func (state *ReviewState) UnmarshalJSON(payload []byte) error {
	normalizedState, normalizationError := normalizeStateValue(payload)
	if normalizationError != nil {
		return normalizationError
	}
	*state = ReviewState(normalizedState)
	return nil
}

func normalizeStateValue(payload []byte) (string, error) {
	var rawState string
	if unmarshalError := json.Unmarshal(payload, &rawState); unmarshalError != nil {
		return "", unmarshalError
	}
	return strings.ToUpper(strings.TrimSpace(rawState)), nil
}

// Author identifies the login recorded for a backed-up item.
type Author struct {
	Login string `json:"login"`
}

// Comment captures one issue comment preserved in a backup.
type Comment struct {
	Author    Author    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// CommentCollection decodes comment payloads in any supported collection shape.
type CommentCollection []Comment

// UnmarshalJSON accepts bare arrays, nodes wrappers, null payloads, and empty objects.
func (collection *CommentCollection) UnmarshalJSON(payload []byte) error {
	comments, decodeError := decodeCollection[Comment](payload)
	if decodeError != nil {
		return decodeError
	}
	*collection = comments
	return nil
}

// Issue captures one backed-up issue together with its discussion thread.
type Issue struct {
	Number    int               `json:"number"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	State     IssueState        `json:"state"`
	CreatedAt time.Time         `json:"createdAt"`
	Author    Author            `json:"author"`
	Comments  CommentCollection `json:"comments"`
}

// Review captures one pull request review preserved in a backup.
type Review struct {
	Author      Author      `json:"author"`
	State       ReviewState `json:"state"`
	Body        string      `json:"body"`
	SubmittedAt time.Time   `json:"submittedAt"`
}

// ReviewCollection decodes review payloads in any supported collection shape.
type ReviewCollection []Review

// UnmarshalJSON accepts bare arrays, nodes wrappers, null payloads, and empty objects.
func (collection *ReviewCollection) UnmarshalJSON(payload []byte) error {
	reviews, decodeError := decodeCollection[Review](payload)
	if decodeError != nil {
		return decodeError
	}
	*collection = reviews
	return nil
}

// PullRequest captures one backed-up pull request and its review history.
type PullRequest struct {
	Number      int              `json:"number"`
	Title       string           `json:"title"`
	Body        string           `json:"body"`
	State       PullRequestState `json:"state"`
	CreatedAt   time.Time        `json:"createdAt"`
	Author      Author           `json:"author"`
	BaseRefName string           `json:"baseRefName"`
	HeadRefName string           `json:"headRefName"`
	Reviews     ReviewCollection `json:"reviews"`
}

// Repository aggregates every artifact backed up for a single repository.
type Repository struct {
	Name         string
	Issues       []Issue
	PullRequests []PullRequest
	CheckoutPath string
	LoadFailure  error
}

// ItemCount reports the number of issues and pull requests awaiting replay.
func (repository Repository) ItemCount() int {
	return len(repository.Issues) + len(repository.PullRequests)
}

// Organization aggregates the repositories discovered in one organization backup.
type Organization struct {
	Name         string
	Repositories []Repository
}

func collectionItems(payload []byte) ([]json.RawMessage, error) {
	trimmedPayload := bytes.TrimSpace(payload)
	if len(trimmedPayload) == 0 || bytes.Equal(trimmedPayload, []byte(nullLiteralConstant)) {
		return nil, nil
	}

	switch trimmedPayload[0] {
	case '[':
		var arrayItems []json.RawMessage
		if unmarshalError := json.Unmarshal(trimmedPayload, &arrayItems); unmarshalError != nil {
			return nil, unmarshalError
		}
		return arrayItems, nil
	case '{':
		var wrapperFields map[string]json.RawMessage
		if unmarshalError := json.Unmarshal(trimmedPayload, &wrapperFields); unmarshalError != nil {
			return nil, unmarshalError
		}
		if len(wrapperFields) == 0 {
			return nil, nil
		}
		nodesPayload, nodesPresent := wrapperFields[nodesFieldNameConstant]
		if !nodesPresent {
			return nil, ErrUnsupportedCollectionShape
		}
		var nodeItems []json.RawMessage
		if unmarshalError := json.Unmarshal(nodesPayload, &nodeItems); unmarshalError != nil {
			return nil, unmarshalError
		}
		return nodeItems, nil
	default:
		return nil, ErrUnsupportedCollectionShape
	}
}

func decodeCollection[T any](payload []byte) ([]T, error) {
	rawItems, itemsError := collectionItems(payload)
	if itemsError != nil {
		return nil, itemsError
	}

	decodedItems := make([]T, 0, len(rawItems))
	for _, rawItem := range rawItems {
		var decodedItem T
		if unmarshalError := json.Unmarshal(rawItem, &decodedItem); unmarshalError != nil {
			return nil, unmarshalError
		}
		decodedItems = append(decodedItems, decodedItem)
	}
	return decodedItems, nil
}
