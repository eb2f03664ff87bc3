package arbiter

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/crewpool/dispatch/internal/store"
)

func TestAdminAssignClosesOutstandingOffers(t *testing.T) {
	ctx := context.Background()
	arb, storeLayer := newTestArbiter(t)

	jobID := createPoolJob(t, storeLayer)
	offeree := uuid.New()
	assignee := uuid.New()

	offer, err := arb.CreateOffer(ctx, jobID, offeree, "", 10*time.Minute, admin())
	require.NoError(t, err)

	result, err := arb.AdminAssign(ctx, jobID, assignee, "offeree unresponsive, assignee nearby", admin())
	require.NoError(t, err)
	require.Equal(t, store.JobAssigned, result.State)

	closed, err := storeLayer.GetRequestByID(ctx, offer.ID)
	require.NoError(t, err)
	require.Equal(t, store.RequestExpired, closed.Status)

	events, err := storeLayer.History(ctx, jobID)
	require.NoError(t, err)

	last := events[len(events)-1]
	require.Equal(t, store.EventJobAssigned, last.Kind)

	var metadata store.AssignMetadata
	require.NoError(t, json.Unmarshal(last.Metadata, &metadata))
	require.Equal(t, store.AssignViaAdmin, metadata.Via)
	require.Equal(t, "offeree unresponsive, assignee nearby", metadata.Justification)
	require.Equal(t, int64(1), metadata.SiblingsClosed)
}

func TestAdminAssignRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	arb, storeLayer := newTestArbiter(t)

	jobID := createPoolJob(t, storeLayer)

	_, err := arb.AdminAssign(ctx, jobID, uuid.New(), "", worker(uuid.New()))
	require.ErrorIs(t, err, ErrForbidden)
}

func TestAdminAssignTakenJobConflicts(t *testing.T) {
	ctx := context.Background()
	arb, storeLayer := newTestArbiter(t)

	jobID := createPoolJob(t, storeLayer)

	_, err := arb.Claim(ctx, jobID, uuid.New())
	require.NoError(t, err)

	_, err = arb.AdminAssign(ctx, jobID, uuid.New(), "", admin())
	require.ErrorIs(t, err, ErrStateConflict)
}

func TestCancelRecordsPreviousState(t *testing.T) {
	ctx := context.Background()
	arb, storeLayer := newTestArbiter(t)

	jobID := createPoolJob(t, storeLayer)
	workerID := uuid.New()

	_, err := arb.Claim(ctx, jobID, workerID)
	require.NoError(t, err)

	result, err := arb.Cancel(ctx, jobID, admin())
	require.NoError(t, err)
	require.Equal(t, store.JobCancelled, result.State)

	events, err := storeLayer.History(ctx, jobID)
	require.NoError(t, err)

	last := events[len(events)-1]
	require.Equal(t, store.EventJobCancelled, last.Kind)

	var metadata store.CancelMetadata
	require.NoError(t, json.Unmarshal(last.Metadata, &metadata))
	require.Equal(t, store.JobAssigned, metadata.PreviousState)

	// Cancelled is terminal.
	_, err = arb.Cancel(ctx, jobID, admin())
	require.ErrorIs(t, err, ErrStateConflict)
}

func TestAddWorkerJoinsCrew(t *testing.T) {
	ctx := context.Background()
	arb, storeLayer := newTestArbiter(t)

	jobID := createPoolJob(t, storeLayer)
	lead := uuid.New()
	helper := uuid.New()

	_, err := arb.Claim(ctx, jobID, lead)
	require.NoError(t, err)

	result, err := arb.AddWorker(ctx, jobID, helper, admin())
	require.NoError(t, err)
	require.Equal(t, store.JobAssigned, result.State)

	// Same worker cannot join twice.
	_, err = arb.AddWorker(ctx, jobID, helper, admin())
	require.ErrorIs(t, err, ErrWorkerOnJob)

	assignment, err := storeLayer.CurrentAssignment(ctx, jobID)
	require.NoError(t, err)
	require.Equal(t, lead, assignment.Lead.WorkerID)
	require.Len(t, assignment.Crew, 1)
	require.Equal(t, helper, assignment.Crew[0].WorkerID)
	require.False(t, assignment.Crew[0].IsLead)
}

func TestAddWorkerToPooledJobConflicts(t *testing.T) {
	ctx := context.Background()
	arb, storeLayer := newTestArbiter(t)

	jobID := createPoolJob(t, storeLayer)

	_, err := arb.AddWorker(ctx, jobID, uuid.New(), admin())
	require.ErrorIs(t, err, ErrStateConflict)
}

func TestRemoveNonLeadKeepsAssignment(t *testing.T) {
	ctx := context.Background()
	arb, storeLayer := newTestArbiter(t)

	jobID := createPoolJob(t, storeLayer)
	lead := uuid.New()
	helper := uuid.New()

	_, err := arb.Claim(ctx, jobID, lead)
	require.NoError(t, err)
	_, err = arb.AddWorker(ctx, jobID, helper, admin())
	require.NoError(t, err)

	result, err := arb.RemoveWorker(ctx, jobID, helper, admin())
	require.NoError(t, err)
	require.Equal(t, store.JobAssigned, result.State)

	job, err := storeLayer.GetJobByID(ctx, jobID)
	require.NoError(t, err)
	require.Equal(t, lead, *job.AssignedWorker)
}

func TestRemoveLeadReturnsJobToPool(t *testing.T) {
	ctx := context.Background()
	arb, storeLayer := newTestArbiter(t)

	jobID := createPoolJob(t, storeLayer)
	lead := uuid.New()

	_, err := arb.Claim(ctx, jobID, lead)
	require.NoError(t, err)

	result, err := arb.RemoveWorker(ctx, jobID, lead, admin())
	require.NoError(t, err)
	require.Equal(t, store.JobPool, result.State)

	job, err := storeLayer.GetJobByID(ctx, jobID)
	require.NoError(t, err)
	require.Nil(t, job.AssignedWorker)

	events, err := storeLayer.History(ctx, jobID)
	require.NoError(t, err)

	last := events[len(events)-1]
	require.Equal(t, store.EventWorkerRemoved, last.Kind)

	var metadata store.CrewMetadata
	require.NoError(t, json.Unmarshal(last.Metadata, &metadata))
	require.True(t, metadata.WasLead)
	require.Equal(t, store.JobPool, metadata.ResultingState)
}

func TestRemoveUnknownWorkerNotFound(t *testing.T) {
	ctx := context.Background()
	arb, storeLayer := newTestArbiter(t)

	jobID := createPoolJob(t, storeLayer)

	_, err := arb.Claim(ctx, jobID, uuid.New())
	require.NoError(t, err)

	_, err = arb.RemoveWorker(ctx, jobID, uuid.New(), admin())
	require.ErrorIs(t, err, ErrNotFound)
}
