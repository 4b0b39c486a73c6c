package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/presale-bundle/internal/bundlecore"
)

func emitRun(s *Sink, states ...bundlecore.State) {
	t0 := time.Unix(1_700_000_000, 0)
	from := bundlecore.StateInit
	for i, to := range states {
		ev := bundlecore.Event{RunID: "run-1", From: from, To: to, Time: t0.Add(time.Duration(i) * time.Second)}
		if to == bundlecore.StateSubmitted {
			ev.Fields = map[string]any{"target_block": uint64(101)}
		}
		s.Emit(ev)
		from = to
	}
}

func TestSink_IncludedRun(t *testing.T) {
	s := NewSink(logrus.New())
	emitRun(s,
		bundlecore.StateStatusChecked,
		bundlecore.StateBuilt,
		bundlecore.StateSubmitted,
		bundlecore.StateIncluded,
		bundlecore.StateReported,
		bundlecore.StateDone,
	)

	assert.Equal(t, float64(1), testutil.ToFloat64(s.transitions.WithLabelValues("submitted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.included))
	assert.Equal(t, float64(101), testutil.ToFloat64(s.targetBlock))
	assert.Equal(t, float64(5), testutil.ToFloat64(s.duration))
	assert.Equal(t, 0, testutil.CollectAndCount(s.failures))
}

func TestSink_FailureCountsKindAndStep(t *testing.T) {
	s := NewSink(logrus.New())
	s.Emit(bundlecore.Event{
		From: bundlecore.StateStatusChecked,
		To:   bundlecore.StateFailed,
		Time: time.Now(),
		Err: &bundlecore.StepError{
			Step: bundlecore.StateStatusChecked,
			Kind: bundlecore.ErrPrecondition,
			Err:  errors.New("not owner"),
		},
	})

	assert.Equal(t, float64(1), testutil.ToFloat64(s.failures.WithLabelValues("precondition failed", "status_checked")))
	assert.Equal(t, float64(0), testutil.ToFloat64(s.included))
}

func TestSink_Push(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSink(logrus.New())
	emitRun(s, bundlecore.StateStatusChecked)

	require.NoError(t, s.Push(context.Background(), srv.URL, "presale_bundle", "abc"))
	assert.Equal(t, "/metrics/job/presale_bundle/run_id/abc", gotPath)
	assert.NotEmpty(t, gotBody)
}

func TestSink_PushError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewSink(logrus.New()).Push(context.Background(), srv.URL, "presale_bundle", "")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), fmt.Sprint(srv.URL)))
}
