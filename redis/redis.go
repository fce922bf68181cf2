// Package redis stores the flow summaries of analysed runs in Redis and
// announces them on a pub/sub channel, where the experiment controller
// picks up the flag, throughput and RTT of each flow.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// dialTimeout bounds the connection to the server.
const dialTimeout = 2 * time.Second

// Client publishes flow summaries.
type Client struct {
	rdb *redis.Client
}

// NewClient returns a Client for the server at addr, e.g. "localhost:6379".
// No connection is made until the first command.
func NewClient(addr string) *Client {
	return &Client{rdb: redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: dialTimeout,
	})}
}

// Ping checks that the server answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the connections of the client.
func (c *Client) Close() error {
	return c.rdb.Close()
}
