package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pension/internal/report"
	id "pension/pkg/domain"
)

const (
	summaryKey        = "pension:report:validation:latest"
	summaryHistory    = "pension:report:validation:history"
	statementPrefix   = "pension:report:statement:"
	maxSummaryHistory = 100
)

// RedisSink keeps the latest validation summary, a capped history of
// summaries and the latest statement per member. Statements expire after ttl.
type RedisSink struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisSink(client redis.Cmdable, ttl time.Duration) *RedisSink {
	return &RedisSink{client: client, ttl: ttl}
}

// StatementKey is the Redis key of a member's latest statement.
func StatementKey(memberID id.MemberID) string {
	return statementPrefix + memberID.String()
}

func (s *RedisSink) WriteSummary(ctx context.Context, text string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, summaryKey, text, 0)
		pipe.LPush(ctx, summaryHistory, text)
		pipe.LTrim(ctx, summaryHistory, 0, maxSummaryHistory-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

func (s *RedisSink) WriteStatement(ctx context.Context, st report.Statement) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode statement: %w", err)
	}
	if err := s.client.Set(ctx, StatementKey(st.MemberID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("write statement: %w", err)
	}
	return nil
}

// LatestSummary returns the last written summary line, or "" if none.
func (s *RedisSink) LatestSummary(ctx context.Context) (string, error) {
	text, err := s.client.Get(ctx, summaryKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return text, err
}

// Statement returns the member's latest statement.
func (s *RedisSink) Statement(ctx context.Context, memberID id.MemberID) (*report.Statement, error) {
	raw, err := s.client.Get(ctx, StatementKey(memberID)).Bytes()
	if err != nil {
		return nil, err
	}
	var st report.Statement
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode statement: %w", err)
	}
	return &st, nil
}
