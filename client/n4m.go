package client

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/luma/sprt/n4m"
)

// DefaultQueryTimeout bounds a query whose context has no deadline
const DefaultQueryTimeout = 5 * time.Second

// Result is the answer to an N4M query
type Result struct {
	*n4m.Response

	// SentID is the message id the query was sent with
	SentID uint8

	// IDMismatch is true if the server answered with a different message
	// id. The response is still returned.
	IDMismatch bool
}

// Query asks the N4M server at addr how often the business's applications
// have run. ctx bounds the whole exchange.
func Query(ctx context.Context, addr string, business string, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}

	query, err := n4m.NewQuery(uint8(rand.Intn(n4m.MaxMsgID+1)), business)
	if err != nil {
		return nil, err
	}

	data, err := query.Encode()
	if err != nil {
		return nil, err
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, err
		}
	} else if err := conn.SetDeadline(time.Now().Add(DefaultQueryTimeout)); err != nil {
		return nil, err
	}

	if _, err := conn.Write(data); err != nil {
		return nil, err
	}

	buf := make([]byte, n4m.MaxDatagram)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}

	msg, err := n4m.Decode(buf[:n])
	if err != nil {
		return nil, err
	}

	resp, ok := msg.(*n4m.Response)
	if !ok {
		return nil, fmt.Errorf("server answered with a query: %w", &n4m.Error{Code: n4m.BadMsg, Msg: msg.String()})
	}

	result := &Result{Response: resp, SentID: query.ID}
	if resp.ID != query.ID {
		log.Warn("Response id does not match the query",
			zap.Uint8("sent", query.ID),
			zap.Uint8("received", resp.ID))

		result.IDMismatch = true
	}

	return result, nil
}
