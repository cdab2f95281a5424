package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to RunStatus
		want     bool
	}{
		{StatusPending, StatusCollecting, true},
		{StatusCollecting, StatusAggregating, true},
		{StatusAggregating, StatusInsightsPending, true},
		{StatusAggregating, StatusCompleted, true},
		{StatusInsightsPending, StatusCompleted, true},
		{StatusInsightsPending, StatusPartial, true},
		{StatusPending, StatusFailed, true},
		{StatusCollecting, StatusFailed, true},
		{StatusInsightsPending, StatusFailed, true},
		{StatusPending, StatusAggregating, false},
		{StatusCollecting, StatusCompleted, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusCollecting, false},
		{StatusPartial, StatusCompleted, false},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s->%s", tc.from, tc.to), func(t *testing.T) {
			if got := CanTransition(tc.from, tc.to); got != tc.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []RunStatus{StatusCompleted, StatusPartial, StatusFailed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []RunStatus{StatusPending, StatusCollecting, StatusAggregating, StatusInsightsPending} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(fmt.Errorf("search: %w", ErrProviderTransient)) {
		t.Error("wrapped transient error should be retryable")
	}
	if Retryable(fmt.Errorf("search: %w", ErrProviderPermanent)) {
		t.Error("permanent error must not be retryable")
	}
	if Retryable(errors.New("plain")) {
		t.Error("unclassified error must not be retryable")
	}
}

func TestOptionsNormalize(t *testing.T) {
	o := RunOptions{}.Normalize()
	if o.DaysBack != DefaultDaysBack || o.MaxDocs != DefaultMaxDocs || o.TopTopics != DefaultTopTopics || o.BucketHours != DefaultBucketHours {
		t.Errorf("unexpected defaults: %+v", o)
	}
	o = RunOptions{DaysBack: 7, MaxDocs: 5}.Normalize()
	if o.DaysBack != 7 || o.MaxDocs != 5 {
		t.Errorf("explicit values overridden: %+v", o)
	}
}
