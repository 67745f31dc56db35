package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/edvin/authcore/internal/metrics"
)

type MockPurger struct {
	mock.Mock
}

func (m *MockPurger) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type SchedulerTestSuite struct {
	suite.Suite
	purger *MockPurger
	sched  *Scheduler
	now    time.Time
}

func (s *SchedulerTestSuite) SetupTest() {
	s.purger = &MockPurger{}
	s.now = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	sched, err := NewScheduler(s.purger, time.Hour, 24*time.Hour, zerolog.Nop())
	s.Require().NoError(err)
	sched.now = func() time.Time { return s.now }
	sched.Start()
	s.sched = sched
}

func (s *SchedulerTestSuite) TearDownTest() {
	s.Require().NoError(s.sched.Stop())
}

func (s *SchedulerTestSuite) TestPurge_UsesRetentionCutoff() {
	before := testutil.ToFloat64(metrics.CredentialsPurged)
	s.purger.On("PurgeExpired", mock.Anything, s.now.Add(-24*time.Hour)).Return(int64(7), nil)

	s.Require().NoError(s.sched.Purge(context.Background()))

	s.Equal(before+7, testutil.ToFloat64(metrics.CredentialsPurged))
	s.purger.AssertExpectations(s.T())
}

func (s *SchedulerTestSuite) TestPurge_Error() {
	s.purger.On("PurgeExpired", mock.Anything, mock.Anything).Return(int64(0), errors.New("db down"))

	err := s.sched.Purge(context.Background())
	s.Error(err)
}

func TestSchedulerTestSuite(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}

func TestScheduler_RunsJob(t *testing.T) {
	purger := &MockPurger{}
	ran := make(chan struct{}, 1)
	purger.On("PurgeExpired", mock.Anything, mock.Anything).Return(int64(0), nil).Run(func(mock.Arguments) {
		select {
		case ran <- struct{}{}:
		default:
		}
	})

	sched, err := NewScheduler(purger, 50*time.Millisecond, time.Hour, zerolog.Nop())
	require.NoError(t, err)
	sched.Start()
	defer sched.Stop()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("purge job did not run")
	}
	assert.True(t, purger.AssertCalled(t, "PurgeExpired", mock.Anything, mock.Anything))
}
