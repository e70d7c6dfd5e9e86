package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	deliveryQueueKey = "sendloop:delivery:queue"
	deliveryRetryKey = "sendloop:delivery:retry"
)

// Job references one EmailSend row awaiting delivery. Attempt counts from 1.
type Job struct {
	EmailSendID uint `json:"email_send_id"`
	Attempt     int  `json:"attempt"`
}

// DeliveryQueue is a durable redis-backed job queue. Ready jobs live in a
// list; retries wait in a sorted set scored by the time they become ready.
// Delivery is at-least-once; ordering is not guaranteed under retries.
type DeliveryQueue struct {
	Client *redis.Client
}

func NewDeliveryQueue(client *redis.Client) *DeliveryQueue {
	return &DeliveryQueue{Client: client}
}

// Enqueue pushes a first-attempt job for the given EmailSend.
func (q *DeliveryQueue) Enqueue(ctx context.Context, emailSendID uint) error {
	return q.push(ctx, Job{EmailSendID: emailSendID, Attempt: 1})
}

func (q *DeliveryQueue) push(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal delivery job: %w", err)
	}
	if err := q.Client.LPush(ctx, deliveryQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("push delivery job: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next ready job. Returns nil when the
// queue stayed empty.
func (q *DeliveryQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.Client.BRPop(ctx, timeout, deliveryQueueKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pop delivery job: %w", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("decode delivery job: %w", err)
	}
	return &job, nil
}

// ScheduleRetry parks the job until readyAt.
func (q *DeliveryQueue) ScheduleRetry(ctx context.Context, job Job, readyAt time.Time) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal retry job: %w", err)
	}
	err = q.Client.ZAdd(ctx, deliveryRetryKey, &redis.Z{
		Score:  float64(readyAt.Unix()),
		Member: payload,
	}).Err()
	if err != nil {
		return fmt.Errorf("schedule retry: %w", err)
	}
	return nil
}

// PromoteDue moves retry jobs whose ready time has passed back onto the
// ready queue. Returns how many were promoted.
func (q *DeliveryQueue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	members, err := q.Client.ZRangeByScore(ctx, deliveryRetryKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("read due retries: %w", err)
	}

	promoted := 0
	for _, member := range members {
		if err := q.Client.LPush(ctx, deliveryQueueKey, member).Err(); err != nil {
			return promoted, fmt.Errorf("promote retry: %w", err)
		}
		if err := q.Client.ZRem(ctx, deliveryRetryKey, member).Err(); err != nil {
			return promoted, fmt.Errorf("remove promoted retry: %w", err)
		}
		promoted++
	}
	return promoted, nil
}

// Len returns the number of ready jobs.
func (q *DeliveryQueue) Len(ctx context.Context) (int64, error) {
	return q.Client.LLen(ctx, deliveryQueueKey).Result()
}
