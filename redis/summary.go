package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m-lab/flowstats/stats"
)

const (
	summaryPrefix = "flow_summary:"
	// Channel receives one notification per published flow.
	Channel = "analysis"
)

// FlowSummary is what is stored for one flow of a run.
type FlowSummary struct {
	Run  string `json:"run"`
	Flag int    `json:"flag"`
	stats.FlowSummary
}

func summaryKey(run string, flag int) string {
	return summaryPrefix + run + ":" + strconv.Itoa(flag)
}

// SetFlowSummary stores s, expiring after one hour.
func (c *Client) SetFlowSummary(ctx context.Context, s *FlowSummary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, summaryKey(s.Run, s.Flag), data, time.Hour).Err()
}

// GetFlowSummary returns the summary of flag in run, or nil if there is
// none.
func (c *Client) GetFlowSummary(ctx context.Context, run string, flag int) (*FlowSummary, error) {
	data, err := c.rdb.Get(ctx, summaryKey(run, flag)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s FlowSummary
	err = json.Unmarshal(data, &s)
	return &s, err
}

// Notification formats the message announcing s on Channel.
func Notification(s *FlowSummary) string {
	var tput, rtt float64
	if s.Throughput != nil {
		tput = s.Throughput.Mean
	}
	if s.AvgRTT != nil {
		rtt = s.AvgRTT.Mean
	}
	return fmt.Sprintf("rlcc_flag:%d;throughput:%s;rtt:%s", s.Flag,
		strconv.FormatFloat(tput, 'f', -1, 64), strconv.FormatFloat(rtt, 'f', -1, 64))
}

// PublishSummary stores s and announces it on Channel.
func (c *Client) PublishSummary(ctx context.Context, s *FlowSummary) error {
	if err := c.SetFlowSummary(ctx, s); err != nil {
		return err
	}
	return c.rdb.Publish(ctx, Channel, Notification(s)).Err()
}

// Subscribe returns a subscription to Channel.
func (c *Client) Subscribe(ctx context.Context) *redis.PubSub {
	return c.rdb.Subscribe(ctx, Channel)
}
