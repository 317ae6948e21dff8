package api

import (
	"encoding/json"

	"github.com/luxfi/log"
	"github.com/nats-io/nats.go"

	"github.com/serpfi/auctiond/pkg/auction"
)

// CancelSubject carries cancellation work queued by the unwind sweeper.
const CancelSubject = "serp.auction.cancel"

type cancelMessage struct {
	AuctionID auction.AuctionID `json:"auctionId"`
}

// NATSCancelSubmitter publishes cancellation work to NATS. Delivery is
// fire-and-forget; the consumer treats unknown auctions as already
// handled.
type NATSCancelSubmitter struct {
	conn   *nats.Conn
	logger log.Logger
}

func NewNATSCancelSubmitter(conn *nats.Conn, logger log.Logger) *NATSCancelSubmitter {
	return &NATSCancelSubmitter{conn: conn, logger: logger}
}

// SubmitCancel publishes one cancellation request.
func (s *NATSCancelSubmitter) SubmitCancel(id auction.AuctionID) error {
	data, err := json.Marshal(cancelMessage{AuctionID: id})
	if err != nil {
		return err
	}
	return s.conn.Publish(CancelSubject, data)
}

// Canceller is the slice of the engine the consumer drives.
type Canceller interface {
	Cancel(id auction.AuctionID) error
}

// NATSCancelConsumer executes cancellation requests received over NATS.
type NATSCancelConsumer struct {
	conn      *nats.Conn
	canceller Canceller
	logger    log.Logger
	sub       *nats.Subscription
}

func NewNATSCancelConsumer(conn *nats.Conn, canceller Canceller, logger log.Logger) *NATSCancelConsumer {
	return &NATSCancelConsumer{conn: conn, canceller: canceller, logger: logger}
}

// Start subscribes to the cancel subject in a queue group so multiple
// consumers split the work.
func (c *NATSCancelConsumer) Start() error {
	sub, err := c.conn.QueueSubscribe(CancelSubject, "auctiond-cancel", func(msg *nats.Msg) {
		var m cancelMessage
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			c.logger.Warn("malformed cancel message", "error", err)
			return
		}
		if err := c.canceller.Cancel(m.AuctionID); err != nil && err != auction.ErrAuctionNotExists {
			c.logger.Warn("cancel failed", "auction", m.AuctionID, "error", err)
		}
	})
	if err != nil {
		return err
	}
	c.sub = sub
	return nil
}

// Stop unsubscribes.
func (c *NATSCancelConsumer) Stop() {
	if c.sub != nil {
		c.sub.Unsubscribe()
	}
}

// LoopbackCancelSubmitter executes cancellations in process, used when
// no NATS server is configured.
type LoopbackCancelSubmitter struct {
	canceller Canceller
	logger    log.Logger
}

func NewLoopbackCancelSubmitter(canceller Canceller, logger log.Logger) *LoopbackCancelSubmitter {
	return &LoopbackCancelSubmitter{canceller: canceller, logger: logger}
}

func (s *LoopbackCancelSubmitter) SubmitCancel(id auction.AuctionID) error {
	go func() {
		if err := s.canceller.Cancel(id); err != nil && err != auction.ErrAuctionNotExists {
			s.logger.Warn("cancel failed", "auction", id, "error", err)
		}
	}()
	return nil
}
