package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pagescope/scraper-engine/internal/domain/model"
)

// appendEventScript appends an event to a job's log unless the log already
// ends with a terminal event, resets the log's TTL, and returns the new
// event's 0-based position. Returns -1 when the log is closed.
var appendEventScript = redis.NewScript(`
local key = KEYS[1]
local last = redis.call('LINDEX', key, -1)
if last then
  local decoded = cjson.decode(last)
  if decoded['event'] == 'complete' or decoded['event'] == 'error' then
    return -1
  end
end
local len = redis.call('RPUSH', key, ARGV[1])
redis.call('PEXPIRE', key, ARGV[2])
return len - 1
`)

// RedisEventLogRepo implements the EventLogRepository interface with a Redis
// list per job.
type RedisEventLogRepo struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisEventLogRepo creates a new RedisEventLogRepo. The TTL bounds how
// long a job's log survives after its most recent append.
func NewRedisEventLogRepo(client redis.UniversalClient, ttl time.Duration) *RedisEventLogRepo {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisEventLogRepo{client: client, ttl: ttl}
}

func eventLogKey(jobID string) string {
	return "job:" + jobID + ":events"
}

// storedEvent is the persisted shape. Position is derived from the list index
// on read, so it is never stored.
type storedEvent struct {
	Kind    model.EventKind `json:"event"`
	Message string          `json:"message"`
	URL     string          `json:"url,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Append adds an event to the job's log and returns its 0-based position.
// Appending after a terminal event returns model.ErrLogClosed.
func (r *RedisEventLogRepo) Append(ctx context.Context, jobID string, event *model.Event) (int, error) {
	if jobID == "" {
		return 0, errors.New("job id cannot be empty")
	}
	if event == nil {
		return 0, errors.New("event is required")
	}
	if err := event.Validate(); err != nil {
		return 0, err
	}

	payload, err := json.Marshal(storedEvent{
		Kind:    event.Kind,
		Message: event.Message,
		URL:     event.URL,
		Data:    event.Data,
		Error:   event.Error,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal event: %w", err)
	}

	position, err := appendEventScript.Run(ctx, r.client,
		[]string{eventLogKey(jobID)}, payload, r.ttl.Milliseconds()).Int()
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}
	if position < 0 {
		return 0, model.ErrLogClosed
	}
	return position, nil
}

// ReadRange returns events from position `from` (inclusive) to the end of the
// log, tagged with their positions. An unknown job yields an empty slice.
func (r *RedisEventLogRepo) ReadRange(ctx context.Context, jobID string, from int) ([]*model.Event, error) {
	if jobID == "" {
		return nil, errors.New("job id cannot be empty")
	}
	if from < 0 {
		from = 0
	}

	raw, err := r.client.LRange(ctx, eventLogKey(jobID), int64(from), -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read events: %w", err)
	}

	events := make([]*model.Event, 0, len(raw))
	for i, item := range raw {
		var se storedEvent
		if uerr := json.Unmarshal([]byte(item), &se); uerr != nil {
			return nil, fmt.Errorf("decode event at position %d: %w", from+i, uerr)
		}
		events = append(events, &model.Event{
			Position: from + i,
			Kind:     se.Kind,
			Message:  se.Message,
			URL:      se.URL,
			Data:     se.Data,
			Error:    se.Error,
		})
	}
	return events, nil
}

// Length returns the number of events in the job's log.
func (r *RedisEventLogRepo) Length(ctx context.Context, jobID string) (int, error) {
	if jobID == "" {
		return 0, errors.New("job id cannot be empty")
	}

	n, err := r.client.LLen(ctx, eventLogKey(jobID)).Result()
	if err != nil {
		return 0, fmt.Errorf("event log length: %w", err)
	}
	return int(n), nil
}
