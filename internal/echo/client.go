package echo

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/danmuck/packetio/internal/protocol/packet"
	"github.com/danmuck/packetio/internal/transport"
)

// Client runs echo round trips over one connection.
type Client struct {
	conn   *packet.AsyncConn
	closer io.Closer
}

// Dial connects with tcfg and wraps the connection with pcfg.
func Dial(ctx context.Context, tcfg transport.Config, pcfg packet.Config) (*Client, error) {
	conn, err := transport.Dial(ctx, tcfg)
	if err != nil {
		return nil, err
	}
	return NewClient(conn, pcfg), nil
}

func NewClient(rwc io.ReadWriteCloser, cfg packet.Config) *Client {
	return &Client{conn: packet.NewAsyncConn(rwc, cfg), closer: rwc}
}

func (c *Client) Close() error {
	return c.closer.Close()
}

// Stats summarises one Run.
type Stats struct {
	Sent     int
	Received int
	MinRTT   time.Duration
	MaxRTT   time.Duration
	TotalRTT time.Duration
}

func (s Stats) MeanRTT() time.Duration {
	if s.Received == 0 {
		return 0
	}
	return s.TotalRTT / time.Duration(s.Received)
}

func (s *Stats) observe(rtt time.Duration) {
	if s.Received == 0 || rtt < s.MinRTT {
		s.MinRTT = rtt
	}
	if rtt > s.MaxRTT {
		s.MaxRTT = rtt
	}
	s.TotalRTT += rtt
	s.Received++
}

// Run sends count envelopes carrying body while a second goroutine reads
// the echoes. Each echo must match the envelope sent with the same
// sequence number, and echoes must arrive in send order.
func (c *Client) Run(ctx context.Context, count int, body []byte) (Stats, error) {
	var (
		mu     sync.Mutex
		sent   = make([]Envelope, 0, count)
		sentAt = make([]time.Time, 0, count)
		stats  Stats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for i := 0; i < count; i++ {
			env := NewEnvelope(uint64(i), body)
			mu.Lock()
			sent = append(sent, env)
			sentAt = append(sentAt, time.Now())
			mu.Unlock()
			if err := c.conn.Send(gctx, env); err != nil {
				return fmt.Errorf("send seq=%d: %w", i, err)
			}
			mu.Lock()
			stats.Sent++
			mu.Unlock()
		}
		return nil
	})
	g.Go(func() error {
		for i := 0; i < count; i++ {
			got, err := packet.ReceiveContext[Envelope](gctx, c.conn)
			if err != nil {
				return fmt.Errorf("receive seq=%d: %w", i, err)
			}
			mu.Lock()
			if got.Seq != uint64(i) || int(got.Seq) >= len(sent) {
				mu.Unlock()
				return fmt.Errorf("%w: got seq=%d want=%d", ErrEchoMismatch, got.Seq, i)
			}
			want := sent[got.Seq]
			start := sentAt[got.Seq]
			mu.Unlock()
			if got.ID != want.ID || string(got.Body) != string(want.Body) {
				return fmt.Errorf("%w: seq=%d id=%s", ErrEchoMismatch, got.Seq, got.ID)
			}
			mu.Lock()
			stats.observe(time.Since(start))
			mu.Unlock()
		}
		return nil
	})
	err := g.Wait()
	mu.Lock()
	defer mu.Unlock()
	return stats, err
}
