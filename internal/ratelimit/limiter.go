package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	callSpacingDefaultConstant                  = 3500 * time.Millisecond
	minuteWindowLengthConstant                  = time.Minute
	hourWindowLengthConstant                    = time.Hour
	minuteHardLimitDefaultConstant              = 20
	hourHardLimitDefaultConstant                = 150
	minuteSafetyMarginConstant                  = 2
	hourSafetyMarginConstant                    = 10
	minimumSoftLimitConstant                    = 1
	loggerNotConfiguredMessageConstant          = "rate limiter logger not configured"
	clockNotConfiguredMessageConstant           = "rate limiter clock not configured"
	sleeperNotConfiguredMessageConstant         = "rate limiter sleeper not configured"
	unknownResourceClassMessageTemplateConstant = "unknown resource class %s"
	windowWaitMessageConstant                   = "Waiting for rate limit window to reset"
	callSpacingMessageConstant                  = "Pacing between calls"
	resourceClassFieldNameConstant              = "resource_class"
	windowLengthFieldNameConstant               = "window_length"
	callsMadeFieldNameConstant                  = "calls_made"
	waitDurationFieldNameConstant               = "wait_duration"
)

// Validation errors returned by limiter constructors.
var (
	ErrLoggerNotConfigured  = errors.New(loggerNotConfiguredMessageConstant)
	ErrClockNotConfigured   = errors.New(clockNotConfiguredMessageConstant)
	ErrSleeperNotConfigured = errors.New(sleeperNotConfiguredMessageConstant)
)

// UnknownResourceClassError reports an admission request for a class the limiter does not track.
type UnknownResourceClassError struct {
	Class ResourceClass
}

// Error describes the unrecognized class.
func (unknownError UnknownResourceClassError) Error() string {
	return fmt.Sprintf(unknownResourceClassMessageTemplateConstant, unknownError.Class)
}

// ResourceClass partitions remote calls into independently budgeted groups.
type ResourceClass string

// Resource classes tracked by the limiter.
const (
	ResourceClassIssueCalls   ResourceClass = "issue_calls"
	ResourceClassCommentCalls ResourceClass = "comment_calls"
)

// WindowConfiguration bounds one fixed-length window.
type WindowConfiguration struct {
	Length    time.Duration
	HardLimit int
}

// ClassConfiguration bounds one resource class across both fixed windows.
type ClassConfiguration struct {
	MinuteWindow WindowConfiguration
	HourWindow   WindowConfiguration
}

// Configuration controls pacing and the per-class window budgets.
type Configuration struct {
	CallSpacing  time.Duration
	IssueCalls   ClassConfiguration
	CommentCalls ClassConfiguration
}

// DefaultConfiguration returns the stock pacing and window budgets.
func DefaultConfiguration() Configuration {
	defaultClassConfiguration := ClassConfiguration{
		MinuteWindow: WindowConfiguration{Length: minuteWindowLengthConstant, HardLimit: minuteHardLimitDefaultConstant},
		HourWindow:   WindowConfiguration{Length: hourWindowLengthConstant, HardLimit: hourHardLimitDefaultConstant},
	}
	return Configuration{
		CallSpacing:  callSpacingDefaultConstant,
		IssueCalls:   defaultClassConfiguration,
		CommentCalls: defaultClassConfiguration,
	}
}

func (configuration Configuration) sanitized() Configuration {
	result := configuration
	if result.CallSpacing <= 0 {
		result.CallSpacing = callSpacingDefaultConstant
	}
	result.IssueCalls = result.IssueCalls.sanitized()
	result.CommentCalls = result.CommentCalls.sanitized()
	return result
}

func (classConfiguration ClassConfiguration) sanitized() ClassConfiguration {
	result := classConfiguration
	if result.MinuteWindow.Length <= 0 {
		result.MinuteWindow.Length = minuteWindowLengthConstant
	}
	if result.MinuteWindow.HardLimit <= 0 {
		result.MinuteWindow.HardLimit = minuteHardLimitDefaultConstant
	}
	if result.HourWindow.Length <= 0 {
		result.HourWindow.Length = hourWindowLengthConstant
	}
	if result.HourWindow.HardLimit <= 0 {
		result.HourWindow.HardLimit = hourHardLimitDefaultConstant
	}
	return result
}

// Clock supplies the current time for window accounting.
type Clock interface {
	Now() time.Time
}

// Sleeper blocks for a duration while honoring context cancellation.
type Sleeper interface {
	Sleep(executionContext context.Context, duration time.Duration) error
}

// Dependencies bundles the clock and sleeper used for pacing.
type Dependencies struct {
	Clock   Clock
	Sleeper Sleeper
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

type systemSleeper struct{}

func (systemSleeper) Sleep(executionContext context.Context, duration time.Duration) error {
	sleepTimer := time.NewTimer(duration)
	defer sleepTimer.Stop()
	select {
	case <-executionContext.Done():
		return executionContext.Err()
	case <-sleepTimer.C:
		return nil
	}
}

type window struct {
	length    time.Duration
	softLimit int
	startTime time.Time
	callCount int
}

func buildWindow(configuration WindowConfiguration, safetyMargin int) window {
	softLimit := configuration.HardLimit - safetyMargin
	if softLimit < minimumSoftLimitConstant {
		softLimit = minimumSoftLimitConstant
	}
	return window{length: configuration.Length, softLimit: softLimit}
}

func (trackedWindow *window) refresh(currentTime time.Time) {
	if trackedWindow.startTime.IsZero() {
		trackedWindow.startTime = currentTime
		return
	}
	if currentTime.Sub(trackedWindow.startTime) >= trackedWindow.length {
		trackedWindow.reset(currentTime)
	}
}

func (trackedWindow *window) reset(currentTime time.Time) {
	trackedWindow.startTime = currentTime
	trackedWindow.callCount = 0
}

type classWindows struct {
	minute window
	hour   window
}

func newClassWindows(configuration ClassConfiguration) *classWindows {
	return &classWindows{
		minute: buildWindow(configuration.MinuteWindow, minuteSafetyMarginConstant),
		hour:   buildWindow(configuration.HourWindow, hourSafetyMarginConstant),
	}
}

func (windows *classWindows) exhausted() *window {
	if windows.minute.callCount >= windows.minute.softLimit {
		return &windows.minute
	}
	if windows.hour.callCount >= windows.hour.softLimit {
		return &windows.hour
	}
	return nil
}

// Limiter admits remote calls while keeping every resource class inside its
// minute and hour budgets and spacing consecutive calls apart. Window counts
// live in process memory only. Limiter is not safe for concurrent use; the
// restore issues its calls sequentially.
type Limiter struct {
	logger        *zap.Logger
	configuration Configuration
	clock         Clock
	sleeper       Sleeper
	lastCallTime  time.Time
	classWindows  map[ResourceClass]*classWindows
}

// NewLimiter constructs a limiter backed by the system clock.
func NewLimiter(logger *zap.Logger, configuration Configuration) (*Limiter, error) {
	return NewLimiterWithDependencies(logger, configuration, Dependencies{Clock: systemClock{}, Sleeper: systemSleeper{}})
}

// NewLimiterWithDependencies constructs a limiter with an explicit clock and sleeper.
func NewLimiterWithDependencies(logger *zap.Logger, configuration Configuration, dependencies Dependencies) (*Limiter, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if dependencies.Clock == nil {
		return nil, ErrClockNotConfigured
	}
	if dependencies.Sleeper == nil {
		return nil, ErrSleeperNotConfigured
	}

	sanitizedConfiguration := configuration.sanitized()
	return &Limiter{
		logger:        logger,
		configuration: sanitizedConfiguration,
		clock:         dependencies.Clock,
		sleeper:       dependencies.Sleeper,
		classWindows: map[ResourceClass]*classWindows{
			ResourceClassIssueCalls:   newClassWindows(sanitizedConfiguration.IssueCalls),
			ResourceClassCommentCalls: newClassWindows(sanitizedConfiguration.CommentCalls),
		},
	}, nil
}

// Admit blocks until the next call in the resource class may proceed, then
// counts it against both of the class windows. Waits end early only when the
// context is cancelled, in which case the context error is returned and the
// call is not counted.
func (limiter *Limiter) Admit(executionContext context.Context, resourceClass ResourceClass) error {
	classState, classKnown := limiter.classWindows[resourceClass]
	if !classKnown {
		return UnknownResourceClassError{Class: resourceClass}
	}

	if pacingError := limiter.applyCallSpacing(executionContext); pacingError != nil {
		return pacingError
	}

	for {
		currentTime := limiter.clock.Now()
		classState.minute.refresh(currentTime)
		classState.hour.refresh(currentTime)

		exhaustedWindow := classState.exhausted()
		if exhaustedWindow == nil {
			break
		}

		waitDuration := exhaustedWindow.startTime.Add(exhaustedWindow.length).Sub(currentTime)
		if waitDuration > 0 {
			limiter.logger.Debug(windowWaitMessageConstant,
				zap.String(resourceClassFieldNameConstant, string(resourceClass)),
				zap.Duration(windowLengthFieldNameConstant, exhaustedWindow.length),
				zap.Int(callsMadeFieldNameConstant, exhaustedWindow.callCount),
				zap.Duration(waitDurationFieldNameConstant, waitDuration),
			)
			if sleepError := limiter.sleeper.Sleep(executionContext, waitDuration); sleepError != nil {
				return sleepError
			}
		}
		exhaustedWindow.reset(limiter.clock.Now())
	}

	classState.minute.callCount++
	classState.hour.callCount++
	limiter.lastCallTime = limiter.clock.Now()
	return nil
}

func (limiter *Limiter) applyCallSpacing(executionContext context.Context) error {
	if limiter.lastCallTime.IsZero() {
		return nil
	}
	waitDuration := limiter.configuration.CallSpacing - limiter.clock.Now().Sub(limiter.lastCallTime)
	if waitDuration <= 0 {
		return nil
	}
	limiter.logger.Debug(callSpacingMessageConstant, zap.Duration(waitDurationFieldNameConstant, waitDuration))
	return limiter.sleeper.Sleep(executionContext, waitDuration)
}
