package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tejasbhor/civiclens-core/internal/application/port"
	"github.com/tejasbhor/civiclens-core/internal/infrastructure/queue"
	"github.com/tejasbhor/civiclens-core/internal/pipeline"
)

type fakeAcknowledger struct {
	acks    int
	nacks   int
	rejects int
}

func (a *fakeAcknowledger) Ack(_ uint64, _ bool) error          { a.acks++; return nil }
func (a *fakeAcknowledger) Nack(_ uint64, _ bool, _ bool) error { a.nacks++; return nil }
func (a *fakeAcknowledger) Reject(_ uint64, _ bool) error       { a.rejects++; return nil }

type fakeDeliveryQueue struct {
	maxAttempts int

	retried            []int
	deadLetterReasons  []string
	deadLetterAttempts []int

	retryErr      error
	deadLetterErr error
}

func (q *fakeDeliveryQueue) Consume(_ string) (<-chan amqp.Delivery, error) {
	ch := make(chan amqp.Delivery)
	close(ch)
	return ch, nil
}

func (q *fakeDeliveryQueue) Retry(_ context.Context, _ *amqp.Delivery, attempts int) error {
	if q.retryErr != nil {
		return q.retryErr
	}
	q.retried = append(q.retried, attempts)
	return nil
}

func (q *fakeDeliveryQueue) DeadLetter(_ context.Context, _ *amqp.Delivery, attempts int, reason string) error {
	if q.deadLetterErr != nil {
		return q.deadLetterErr
	}
	q.deadLetterReasons = append(q.deadLetterReasons, reason)
	q.deadLetterAttempts = append(q.deadLetterAttempts, attempts)
	return nil
}

func (q *fakeDeliveryQueue) MaxAttempts() int { return q.maxAttempts }

type fakeProcessor struct {
	outcome pipeline.Outcome
	err     error
	calls   int
}

func (p *fakeProcessor) Process(_ context.Context, _ int64, _ bool) (pipeline.Outcome, error) {
	p.calls++
	return p.outcome, p.err
}

// flaggingReportRepo records review flags; no other repository method is
// reachable from delivery handling.
type flaggingReportRepo struct {
	port.ReportRepository
	flagged map[int64]bool
}

func (r *flaggingReportRepo) SetNeedsReview(_ context.Context, id int64, needsReview bool) error {
	r.flagged[id] = needsReview
	return nil
}

func newDeliveryFixture(proc *fakeProcessor, q *fakeDeliveryQueue) (*ReportWorker, *flaggingReportRepo) {
	repo := &flaggingReportRepo{flagged: make(map[int64]bool)}
	w := NewReportWorker(DefaultReportWorkerConfig(), q, proc, repo, zap.NewNop())
	w.ctx = context.Background()
	return w, repo
}

func reportDelivery(t *testing.T, ack amqp.Acknowledger, reportID int64, attempts int) *amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(queue.ReportMessage{ReportID: reportID, EnqueuedAt: time.Now()})
	require.NoError(t, err)
	return &amqp.Delivery{
		Acknowledger: ack,
		Body:         body,
		Headers:      amqp.Table{"x-attempts": int32(attempts)},
	}
}

func TestHandleDeliveryAcksSuccess(t *testing.T) {
	proc := &fakeProcessor{outcome: pipeline.OutcomeAssignedToOfficer}
	q := &fakeDeliveryQueue{maxAttempts: 5}
	w, repo := newDeliveryFixture(proc, q)
	ack := &fakeAcknowledger{}

	w.handleDelivery(reportDelivery(t, ack, 7, 0))

	assert.Equal(t, 1, ack.acks)
	assert.Empty(t, q.retried)
	assert.Empty(t, q.deadLetterReasons)
	assert.Empty(t, repo.flagged)
}

func TestHandleDeliveryMalformedGoesStraightToDeadLetter(t *testing.T) {
	proc := &fakeProcessor{err: &pipeline.MalformedReportError{ReportID: 7, Reason: "no text content"}}
	q := &fakeDeliveryQueue{maxAttempts: 5}
	w, repo := newDeliveryFixture(proc, q)
	ack := &fakeAcknowledger{}

	w.handleDelivery(reportDelivery(t, ack, 7, 0))

	// No retry detour: the payload lands on the dead-letter queue at once
	// and the report is flagged for a human.
	require.Len(t, q.deadLetterReasons, 1)
	assert.Contains(t, q.deadLetterReasons[0], "no text content")
	assert.Empty(t, q.retried)
	assert.Equal(t, 1, ack.acks)
	assert.Equal(t, 0, ack.nacks)
	assert.True(t, repo.flagged[7])
}

func TestHandleDeliveryMalformedNacksWhenDeadLetterFails(t *testing.T) {
	proc := &fakeProcessor{err: &pipeline.MalformedReportError{ReportID: 7, Reason: "no text content"}}
	q := &fakeDeliveryQueue{maxAttempts: 5, deadLetterErr: errors.New("channel closed")}
	w, repo := newDeliveryFixture(proc, q)
	ack := &fakeAcknowledger{}

	w.handleDelivery(reportDelivery(t, ack, 7, 0))

	// The broker keeps the message until it can be parked.
	assert.Equal(t, 1, ack.nacks)
	assert.Equal(t, 0, ack.acks)
	assert.Empty(t, repo.flagged)
}

func TestHandleDeliveryTransientSchedulesRetry(t *testing.T) {
	proc := &fakeProcessor{err: pipeline.Transient("routing", errors.New("database is locked"))}
	q := &fakeDeliveryQueue{maxAttempts: 5}
	w, repo := newDeliveryFixture(proc, q)
	ack := &fakeAcknowledger{}

	w.handleDelivery(reportDelivery(t, ack, 7, 1))

	assert.Equal(t, []int{2}, q.retried)
	assert.Empty(t, q.deadLetterReasons)
	assert.Equal(t, 1, ack.acks)
	assert.Empty(t, repo.flagged)
}

func TestHandleDeliveryExhaustedAttemptsDeadLetters(t *testing.T) {
	proc := &fakeProcessor{err: pipeline.Transient("classification", errors.New("model unavailable"))}
	q := &fakeDeliveryQueue{maxAttempts: 5}
	w, repo := newDeliveryFixture(proc, q)
	ack := &fakeAcknowledger{}

	w.handleDelivery(reportDelivery(t, ack, 7, 4))

	require.Len(t, q.deadLetterAttempts, 1)
	assert.Equal(t, 5, q.deadLetterAttempts[0])
	assert.Empty(t, q.retried)
	assert.Equal(t, 1, ack.acks)
	assert.True(t, repo.flagged[7])
}

func TestHandleDeliveryUnparseablePayloadDeadLetters(t *testing.T) {
	proc := &fakeProcessor{}
	q := &fakeDeliveryQueue{maxAttempts: 5}
	w, repo := newDeliveryFixture(proc, q)
	ack := &fakeAcknowledger{}

	w.handleDelivery(&amqp.Delivery{Acknowledger: ack, Body: []byte("not json")})

	require.Len(t, q.deadLetterReasons, 1)
	assert.Equal(t, 0, proc.calls)
	assert.Equal(t, 1, ack.acks)
	assert.Empty(t, repo.flagged)
}
