package job

import (
	"context"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"errandbit/pkg/config"
	"errandbit/pkg/errutil"
	"errandbit/pkg/repository"
	"errandbit/pkg/taskname"
	"errandbit/services/testutil"
	"errandbit/services/user"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return nil, nil
}

func newTestService(t *testing.T) (*Service, *fakeEnqueuer, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &Job{}, &user.User{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Platform.SatsPerUSD = 1000

	enq := &fakeEnqueuer{}
	svc := NewService(ServiceParams{
		DB:     db,
		Node:   node,
		Asynq:  enq,
		Config: cfg,
	})

	return svc, enq, db
}

func seedUser(t *testing.T, db *gorm.DB, id, email string) {
	t.Helper()
	users := repository.ProvideStore[user.User](db)
	require.NoError(t, users.Create(context.Background(), &user.User{
		ID:          id,
		Email:       email,
		DisplayName: id,
	}))
}

func requireStatusCode(t *testing.T, err error, code errutil.CoreStatus) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, errutil.FromError(err).Code, "unexpected error: %v", err)
}

func TestCreateJobValidation(t *testing.T) {
	svc, _, db := newTestService(t)
	seedUser(t, db, "client-1", "client-1@example.com")

	_, err := svc.Create(context.Background(), "client-1", CreateJobInput{Title: "  ", PriceCents: 500})
	requireStatusCode(t, err, errutil.StatusValidationFailed)

	_, err = svc.Create(context.Background(), "client-1", CreateJobInput{Title: "Walk my dog", PriceCents: 0})
	requireStatusCode(t, err, errutil.StatusValidationFailed)

	_, err = svc.Create(context.Background(), "ghost", CreateJobInput{Title: "Walk my dog", PriceCents: 500})
	requireStatusCode(t, err, errutil.StatusNotFound)
}

func TestCreateJob(t *testing.T) {
	svc, _, db := newTestService(t)
	seedUser(t, db, "client-1", "client-1@example.com")

	j, err := svc.Create(context.Background(), "client-1", CreateJobInput{
		Title:       "Pick up groceries",
		Description: "Two bags from the corner store",
		PriceCents:  1500,
	})
	require.NoError(t, err)
	require.Equal(t, StatusOpen, j.Status)
	require.Equal(t, "client-1", j.ClientID)
	require.Empty(t, j.RunnerID)
	require.Contains(t, j.Slug, "pick-up-groceries")
}

func TestFullLifecycle(t *testing.T) {
	svc, enq, db := newTestService(t)
	seedUser(t, db, "client-1", "client-1@example.com")
	seedUser(t, db, "runner-1", "runner-1@example.com")
	ctx := context.Background()

	j, err := svc.Create(ctx, "client-1", CreateJobInput{Title: "Mail a parcel", PriceCents: 2000})
	require.NoError(t, err)

	j, err = svc.Transition(ctx, j.ID, "runner-1", StatusAccepted, TransitionExtra{})
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, j.Status)
	require.Equal(t, "runner-1", j.RunnerID)
	require.Equal(t, int64(2000), j.AgreedPriceCents)
	require.Equal(t, int64(20000), j.AgreedPriceSats)
	require.NotNil(t, j.AcceptedAt)

	j, err = svc.Transition(ctx, j.ID, "runner-1", StatusInProgress, TransitionExtra{})
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, j.Status)
	require.NotNil(t, j.StartedAt)

	j, err = svc.Transition(ctx, j.ID, "runner-1", StatusCompleted, TransitionExtra{})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, j.Status)
	require.NotNil(t, j.CompletedAt)

	require.Len(t, enq.tasks, 1)
	require.Equal(t, taskname.PayoutProcess, enq.tasks[0].Type())

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.MarkPaid(ctx, tx, j.ID)
	}))
	j, err = svc.Get(ctx, j.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, j.Status)
	require.NotNil(t, j.PaidAt)
}

func TestAcceptWithNegotiatedPrice(t *testing.T) {
	svc, _, db := newTestService(t)
	seedUser(t, db, "client-1", "client-1@example.com")
	seedUser(t, db, "runner-1", "runner-1@example.com")
	ctx := context.Background()

	j, err := svc.Create(ctx, "client-1", CreateJobInput{Title: "Queue for tickets", PriceCents: 3000})
	require.NoError(t, err)

	j, err = svc.Transition(ctx, j.ID, "runner-1", StatusAccepted, TransitionExtra{AgreedPriceCents: 2500})
	require.NoError(t, err)
	require.Equal(t, int64(2500), j.AgreedPriceCents)
	require.Equal(t, int64(25000), j.AgreedPriceSats)
}

func TestCannotAcceptOwnJob(t *testing.T) {
	svc, _, db := newTestService(t)
	seedUser(t, db, "client-1", "client-1@example.com")
	ctx := context.Background()

	j, err := svc.Create(ctx, "client-1", CreateJobInput{Title: "Water my plants", PriceCents: 800})
	require.NoError(t, err)

	_, err = svc.Transition(ctx, j.ID, "client-1", StatusAccepted, TransitionExtra{})
	requireStatusCode(t, err, errutil.StatusForbidden)
}

func TestInvalidTransitions(t *testing.T) {
	svc, _, db := newTestService(t)
	seedUser(t, db, "client-1", "client-1@example.com")
	seedUser(t, db, "runner-1", "runner-1@example.com")
	ctx := context.Background()

	j, err := svc.Create(ctx, "client-1", CreateJobInput{Title: "Return a library book", PriceCents: 600})
	require.NoError(t, err)

	// open -> completed skips two states
	_, err = svc.Transition(ctx, j.ID, "runner-1", StatusCompleted, TransitionExtra{})
	requireStatusCode(t, err, errutil.StatusConflict)

	// open -> in_progress without accepting first
	_, err = svc.Transition(ctx, j.ID, "runner-1", StatusInProgress, TransitionExtra{})
	requireStatusCode(t, err, errutil.StatusConflict)

	// paid is owned by payment confirmation
	_, err = svc.Transition(ctx, j.ID, "client-1", StatusPaid, TransitionExtra{})
	requireStatusCode(t, err, errutil.StatusConflict)
}

func TestTerminalStatesAreTerminal(t *testing.T) {
	svc, _, db := newTestService(t)
	seedUser(t, db, "client-1", "client-1@example.com")
	seedUser(t, db, "runner-1", "runner-1@example.com")
	ctx := context.Background()

	j, err := svc.Create(ctx, "client-1", CreateJobInput{Title: "Drop off dry cleaning", PriceCents: 900})
	require.NoError(t, err)

	_, err = svc.Transition(ctx, j.ID, "client-1", StatusCancelled, TransitionExtra{})
	require.NoError(t, err)

	_, err = svc.Transition(ctx, j.ID, "runner-1", StatusAccepted, TransitionExtra{})
	requireStatusCode(t, err, errutil.StatusConflict)

	_, err = svc.Transition(ctx, j.ID, "client-1", StatusCancelled, TransitionExtra{})
	requireStatusCode(t, err, errutil.StatusConflict)
}

func TestTransitionAuthorization(t *testing.T) {
	svc, _, db := newTestService(t)
	seedUser(t, db, "client-1", "client-1@example.com")
	seedUser(t, db, "runner-1", "runner-1@example.com")
	seedUser(t, db, "stranger", "stranger@example.com")
	ctx := context.Background()

	j, err := svc.Create(ctx, "client-1", CreateJobInput{Title: "Assemble a bookshelf", PriceCents: 4000})
	require.NoError(t, err)

	j, err = svc.Transition(ctx, j.ID, "runner-1", StatusAccepted, TransitionExtra{})
	require.NoError(t, err)

	// only the assigned runner may start or complete
	_, err = svc.Transition(ctx, j.ID, "stranger", StatusInProgress, TransitionExtra{})
	requireStatusCode(t, err, errutil.StatusForbidden)

	// only the client may cancel
	_, err = svc.Transition(ctx, j.ID, "runner-1", StatusCancelled, TransitionExtra{})
	requireStatusCode(t, err, errutil.StatusForbidden)

	j, err = svc.Transition(ctx, j.ID, "runner-1", StatusInProgress, TransitionExtra{})
	require.NoError(t, err)

	_, err = svc.Transition(ctx, j.ID, "client-1", StatusCompleted, TransitionExtra{})
	requireStatusCode(t, err, errutil.StatusForbidden)
}

func TestConcurrentAcceptSingleWinner(t *testing.T) {
	svc, _, db := newTestService(t)
	seedUser(t, db, "client-1", "client-1@example.com")
	ctx := context.Background()

	const runners = 8
	for i := 0; i < runners; i++ {
		seedUser(t, db, string(rune('a'+i))+"-runner", string(rune('a'+i))+"@example.com")
	}

	j, err := svc.Create(ctx, "client-1", CreateJobInput{Title: "Stand in line at the DMV", PriceCents: 5000})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, runners)
	for i := 0; i < runners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Transition(ctx, j.ID, string(rune('a'+i))+"-runner", StatusAccepted, TransitionExtra{})
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			require.Equal(t, errutil.StatusConflict, errutil.FromError(err).Code)
		}
	}
	require.Equal(t, 1, won)

	j, err = svc.Get(ctx, j.ID)
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, j.Status)
	require.NotEmpty(t, j.RunnerID)
}

func TestDeleteRules(t *testing.T) {
	svc, _, db := newTestService(t)
	seedUser(t, db, "client-1", "client-1@example.com")
	seedUser(t, db, "runner-1", "runner-1@example.com")
	ctx := context.Background()

	j, err := svc.Create(ctx, "client-1", CreateJobInput{Title: "Collect a package", PriceCents: 700})
	require.NoError(t, err)

	// only the client can delete
	err = svc.Delete(ctx, j.ID, "runner-1")
	requireStatusCode(t, err, errutil.StatusForbidden)

	// unassigned open jobs are deletable
	require.NoError(t, svc.Delete(ctx, j.ID, "client-1"))
	_, err = svc.Get(ctx, j.ID)
	requireStatusCode(t, err, errutil.StatusNotFound)

	// accepted jobs are not
	j, err = svc.Create(ctx, "client-1", CreateJobInput{Title: "Collect another package", PriceCents: 700})
	require.NoError(t, err)
	_, err = svc.Transition(ctx, j.ID, "runner-1", StatusAccepted, TransitionExtra{})
	require.NoError(t, err)
	err = svc.Delete(ctx, j.ID, "client-1")
	requireStatusCode(t, err, errutil.StatusConflict)
}

func TestListFiltersByStatus(t *testing.T) {
	svc, _, db := newTestService(t)
	seedUser(t, db, "client-1", "client-1@example.com")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, "client-1", CreateJobInput{Title: "Errand", PriceCents: 100})
		require.NoError(t, err)
	}
	j, err := svc.Create(ctx, "client-1", CreateJobInput{Title: "Errand", PriceCents: 100})
	require.NoError(t, err)
	_, err = svc.Transition(ctx, j.ID, "client-1", StatusCancelled, TransitionExtra{})
	require.NoError(t, err)

	open, _, err := svc.List(ctx, ListFilter{Status: StatusOpen})
	require.NoError(t, err)
	require.Len(t, open, 3)

	cancelled, _, err := svc.List(ctx, ListFilter{Status: StatusCancelled})
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
}

func TestListFiltersByPrice(t *testing.T) {
	svc, _, db := newTestService(t)
	seedUser(t, db, "client-1", "client-1@example.com")
	ctx := context.Background()

	for _, cents := range []int64{500, 1500, 3000} {
		_, err := svc.Create(ctx, "client-1", CreateJobInput{Title: "Errand", PriceCents: cents})
		require.NoError(t, err)
	}

	cheap, _, err := svc.List(ctx, ListFilter{MaxPriceCents: 1000})
	require.NoError(t, err)
	require.Len(t, cheap, 1)

	mid, _, err := svc.List(ctx, ListFilter{MinPriceCents: 1000, MaxPriceCents: 2000})
	require.NoError(t, err)
	require.Len(t, mid, 1)
	require.Equal(t, int64(1500), mid[0].PriceCents)
}

func TestTransitionTable(t *testing.T) {
	// every status must either reach a terminal state or have an exit
	terminal := map[Status]bool{StatusPaid: true, StatusCancelled: true}
	for status, targets := range transitions {
		if terminal[status] {
			require.Empty(t, targets, "terminal status %s must have no exits", status)
			continue
		}
		require.NotEmpty(t, targets, "non-terminal status %s must have an exit", status)
	}

	require.True(t, StatusOpen.CanTransitionTo(StatusAccepted))
	require.False(t, StatusOpen.CanTransitionTo(StatusCompleted))
	require.False(t, StatusPaid.CanTransitionTo(StatusOpen))
}
