package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rdmolony/backup-and-restore-a-github-org/internal/ratelimit"
)

const (
	testCallSpacingConstant        = time.Millisecond
	testHighHardLimitConstant      = 1000
	testNilLoggerCaseNameConstant  = "nil_logger"
	testNilClockCaseNameConstant   = "nil_clock"
	testNilSleeperCaseNameConstant = "nil_sleeper"
)

type fakeClock struct {
	currentTime time.Time
}

func (clock *fakeClock) Now() time.Time {
	return clock.currentTime
}

func (clock *fakeClock) advance(duration time.Duration) {
	clock.currentTime = clock.currentTime.Add(duration)
}

type recordingSleeper struct {
	clock  *fakeClock
	sleeps []time.Duration
}

func (sleeper *recordingSleeper) Sleep(executionContext context.Context, duration time.Duration) error {
	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}
	sleeper.sleeps = append(sleeper.sleeps, duration)
	sleeper.clock.advance(duration)
	return nil
}

func highClassConfiguration() ratelimit.ClassConfiguration {
	return ratelimit.ClassConfiguration{
		MinuteWindow: ratelimit.WindowConfiguration{Length: time.Minute, HardLimit: testHighHardLimitConstant},
		HourWindow:   ratelimit.WindowConfiguration{Length: time.Hour, HardLimit: testHighHardLimitConstant},
	}
}

func newTestLimiter(testInstance *testing.T, configuration ratelimit.Configuration) (*ratelimit.Limiter, *fakeClock, *recordingSleeper) {
	testInstance.Helper()
	clock := &fakeClock{currentTime: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	sleeper := &recordingSleeper{clock: clock}
	limiter, creationError := ratelimit.NewLimiterWithDependencies(zap.NewNop(), configuration, ratelimit.Dependencies{Clock: clock, Sleeper: sleeper})
	require.NoError(testInstance, creationError)
	return limiter, clock, sleeper
}

func TestNewLimiterValidation(testInstance *testing.T) {
	testCases := []struct {
		name          string
		logger        *zap.Logger
		dependencies  ratelimit.Dependencies
		expectedError error
	}{
		{
			name:          testNilLoggerCaseNameConstant,
			logger:        nil,
			dependencies:  ratelimit.Dependencies{Clock: &fakeClock{}, Sleeper: &recordingSleeper{}},
			expectedError: ratelimit.ErrLoggerNotConfigured,
		},
		{
			name:          testNilClockCaseNameConstant,
			logger:        zap.NewNop(),
			dependencies:  ratelimit.Dependencies{Sleeper: &recordingSleeper{}},
			expectedError: ratelimit.ErrClockNotConfigured,
		},
		{
			name:          testNilSleeperCaseNameConstant,
			logger:        zap.NewNop(),
			dependencies:  ratelimit.Dependencies{Clock: &fakeClock{}},
			expectedError: ratelimit.ErrSleeperNotConfigured,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			limiter, creationError := ratelimit.NewLimiterWithDependencies(testCase.logger, ratelimit.DefaultConfiguration(), testCase.dependencies)
			require.Error(testInstance, creationError)
			require.ErrorIs(testInstance, creationError, testCase.expectedError)
			require.Nil(testInstance, limiter)
		})
	}
}

func TestLimiterCallSpacing(testInstance *testing.T) {
	configuration := ratelimit.Configuration{
		CallSpacing:  2 * time.Second,
		IssueCalls:   highClassConfiguration(),
		CommentCalls: highClassConfiguration(),
	}
	limiter, clock, sleeper := newTestLimiter(testInstance, configuration)

	require.NoError(testInstance, limiter.Admit(context.Background(), ratelimit.ResourceClassIssueCalls))
	require.Empty(testInstance, sleeper.sleeps)

	require.NoError(testInstance, limiter.Admit(context.Background(), ratelimit.ResourceClassIssueCalls))
	require.Equal(testInstance, []time.Duration{2 * time.Second}, sleeper.sleeps)

	clock.advance(3 * time.Second)
	require.NoError(testInstance, limiter.Admit(context.Background(), ratelimit.ResourceClassIssueCalls))
	require.Len(testInstance, sleeper.sleeps, 1)
}

func TestLimiterMinuteWindowBoundary(testInstance *testing.T) {
	configuration := ratelimit.Configuration{
		CallSpacing: testCallSpacingConstant,
		IssueCalls: ratelimit.ClassConfiguration{
			MinuteWindow: ratelimit.WindowConfiguration{Length: time.Minute, HardLimit: 5},
			HourWindow:   ratelimit.WindowConfiguration{Length: time.Hour, HardLimit: testHighHardLimitConstant},
		},
		CommentCalls: highClassConfiguration(),
	}
	limiter, _, sleeper := newTestLimiter(testInstance, configuration)

	// Hard limit 5 with the stock margin of 2 leaves 3 admitted calls per window.
	for callIndex := 0; callIndex < 3; callIndex++ {
		require.NoError(testInstance, limiter.Admit(context.Background(), ratelimit.ResourceClassIssueCalls))
	}
	require.Len(testInstance, sleeper.sleeps, 2)

	require.NoError(testInstance, limiter.Admit(context.Background(), ratelimit.ResourceClassIssueCalls))
	require.Len(testInstance, sleeper.sleeps, 4)
	require.Equal(testInstance, time.Minute-3*time.Millisecond, sleeper.sleeps[3])
}

func TestLimiterWindowExpiryResetsCounts(testInstance *testing.T) {
	configuration := ratelimit.Configuration{
		CallSpacing: testCallSpacingConstant,
		IssueCalls: ratelimit.ClassConfiguration{
			MinuteWindow: ratelimit.WindowConfiguration{Length: time.Minute, HardLimit: 5},
			HourWindow:   ratelimit.WindowConfiguration{Length: time.Hour, HardLimit: testHighHardLimitConstant},
		},
		CommentCalls: highClassConfiguration(),
	}
	limiter, clock, sleeper := newTestLimiter(testInstance, configuration)

	for callIndex := 0; callIndex < 3; callIndex++ {
		require.NoError(testInstance, limiter.Admit(context.Background(), ratelimit.ResourceClassIssueCalls))
	}
	require.Len(testInstance, sleeper.sleeps, 2)

	clock.advance(61 * time.Second)
	require.NoError(testInstance, limiter.Admit(context.Background(), ratelimit.ResourceClassIssueCalls))
	require.Len(testInstance, sleeper.sleeps, 2)
}

func TestLimiterSoftLimitClampedToOne(testInstance *testing.T) {
	configuration := ratelimit.Configuration{
		CallSpacing: testCallSpacingConstant,
		IssueCalls: ratelimit.ClassConfiguration{
			MinuteWindow: ratelimit.WindowConfiguration{Length: time.Minute, HardLimit: 1},
			HourWindow:   ratelimit.WindowConfiguration{Length: time.Hour, HardLimit: testHighHardLimitConstant},
		},
		CommentCalls: highClassConfiguration(),
	}
	limiter, _, sleeper := newTestLimiter(testInstance, configuration)

	require.NoError(testInstance, limiter.Admit(context.Background(), ratelimit.ResourceClassIssueCalls))
	require.Empty(testInstance, sleeper.sleeps)

	require.NoError(testInstance, limiter.Admit(context.Background(), ratelimit.ResourceClassIssueCalls))
	require.Equal(testInstance, []time.Duration{testCallSpacingConstant, time.Minute - time.Millisecond}, sleeper.sleeps)
}

func TestLimiterHourWindowBoundary(testInstance *testing.T) {
	configuration := ratelimit.Configuration{
		CallSpacing: testCallSpacingConstant,
		IssueCalls: ratelimit.ClassConfiguration{
			MinuteWindow: ratelimit.WindowConfiguration{Length: time.Minute, HardLimit: testHighHardLimitConstant},
			HourWindow:   ratelimit.WindowConfiguration{Length: time.Hour, HardLimit: 3},
		},
		CommentCalls: highClassConfiguration(),
	}
	limiter, _, sleeper := newTestLimiter(testInstance, configuration)

	require.NoError(testInstance, limiter.Admit(context.Background(), ratelimit.ResourceClassIssueCalls))
	require.NoError(testInstance, limiter.Admit(context.Background(), ratelimit.ResourceClassIssueCalls))
	require.Equal(testInstance, []time.Duration{testCallSpacingConstant, time.Hour - time.Millisecond}, sleeper.sleeps)
}

func TestLimiterClassIsolation(testInstance *testing.T) {
	configuration := ratelimit.Configuration{
		CallSpacing: testCallSpacingConstant,
		IssueCalls: ratelimit.ClassConfiguration{
			MinuteWindow: ratelimit.WindowConfiguration{Length: time.Minute, HardLimit: 3},
			HourWindow:   ratelimit.WindowConfiguration{Length: time.Hour, HardLimit: testHighHardLimitConstant},
		},
		CommentCalls: highClassConfiguration(),
	}
	limiter, _, sleeper := newTestLimiter(testInstance, configuration)

	require.NoError(testInstance, limiter.Admit(context.Background(), ratelimit.ResourceClassIssueCalls))
	require.Empty(testInstance, sleeper.sleeps)

	require.NoError(testInstance, limiter.Admit(context.Background(), ratelimit.ResourceClassCommentCalls))
	require.Len(testInstance, sleeper.sleeps, 1)

	require.NoError(testInstance, limiter.Admit(context.Background(), ratelimit.ResourceClassIssueCalls))
	require.Len(testInstance, sleeper.sleeps, 3)
	require.Equal(testInstance, time.Minute-2*time.Millisecond, sleeper.sleeps[2])
}

func TestLimiterContextCancellation(testInstance *testing.T) {
	configuration := ratelimit.Configuration{
		CallSpacing:  time.Second,
		IssueCalls:   highClassConfiguration(),
		CommentCalls: highClassConfiguration(),
	}
	limiter, _, _ := newTestLimiter(testInstance, configuration)

	require.NoError(testInstance, limiter.Admit(context.Background(), ratelimit.ResourceClassIssueCalls))

	cancelledContext, cancelFunction := context.WithCancel(context.Background())
	cancelFunction()

	admissionError := limiter.Admit(cancelledContext, ratelimit.ResourceClassIssueCalls)
	require.ErrorIs(testInstance, admissionError, context.Canceled)
}

func TestLimiterUnknownResourceClass(testInstance *testing.T) {
	limiter, _, _ := newTestLimiter(testInstance, ratelimit.DefaultConfiguration())

	admissionError := limiter.Admit(context.Background(), ratelimit.ResourceClass("merge_calls"))
	require.Error(testInstance, admissionError)
	require.IsType(testInstance, ratelimit.UnknownResourceClassError{}, admissionError)
}
