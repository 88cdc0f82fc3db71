package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRefresher struct {
	limits []int
	err    error
}

func (f *fakeRefresher) RefreshAll(_ context.Context, limit int) (int, error) {
	f.limits = append(f.limits, limit)
	return 2, f.err
}

func TestScheduleRefresh(t *testing.T) {
	s := New(time.UTC)

	_, err := s.ScheduleRefresh("@every 5m", &fakeRefresher{}, 50)
	require.NoError(t, err)
	_, err = s.ScheduleRefresh("*/10 * * * *", &fakeRefresher{}, 50)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Entries())

	_, err = s.ScheduleRefresh("every now and then", &fakeRefresher{}, 50)
	assert.Error(t, err)
	assert.Equal(t, 2, s.Entries())
}

func TestRefreshJob(t *testing.T) {
	r := &fakeRefresher{}
	job := RefreshJob(r, 25)

	job()
	r.err = errors.New("db down")
	job()

	assert.Equal(t, []int{25, 25}, r.limits)
}

func TestStartStop(t *testing.T) {
	s := New(time.UTC)
	s.Start()
	s.Stop()
}
