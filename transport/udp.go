package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/zap"

	"github.com/luma/sprt/n4m"
)

var ErrNoStore = errors.New("an N4M server needs a store")

type packet struct {
	data []byte
	addr net.Addr
}

// UDP answers N4M queries with the usage counted in the store. Datagrams are
// received on one goroutine and answered by a fixed pool of workers.
type UDP struct {
	opts Options

	conn    net.PacketConn
	packets chan packet

	cancel     context.CancelFunc
	stopWaiter sync.WaitGroup
	closeOnce  sync.Once

	log *zap.Logger
}

func NewUDP(options Options) *UDP {
	options = options.withDefaults()

	return &UDP{
		opts:    options,
		packets: make(chan packet),
		log:     options.Log.Named("n4m"),
	}
}

func (u *UDP) Start(parentCtx context.Context) error {
	if u.opts.Store == nil {
		return ErrNoStore
	}

	conn, err := reuseport.ListenPacket("udp", u.opts.addr())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(parentCtx)
	u.conn, u.cancel = conn, cancel

	u.log.Info("Starting n4m workers",
		zap.String("addr", conn.LocalAddr().String()),
		zap.Int("count", u.opts.QueryWorkers))

	for i := 0; i < u.opts.QueryWorkers; i++ {
		u.stopWaiter.Add(1)

		go func() {
			defer u.stopWaiter.Done()
			u.work(ctx)
		}()
	}

	u.stopWaiter.Add(1)
	go func() {
		defer u.stopWaiter.Done()
		u.receiveLoop(ctx)
	}()

	go func() {
		<-ctx.Done()
		u.Close()
	}()

	return nil
}

func (u *UDP) Addr() net.Addr {
	if u.conn == nil {
		return nil
	}

	return u.conn.LocalAddr()
}

func (u *UDP) Close() (err error) {
	u.closeOnce.Do(func() {
		if u.cancel == nil {
			return
		}

		u.log.Info("Stopping n4m server")
		u.cancel()
		err = u.conn.Close()
		u.stopWaiter.Wait()
	})

	return err
}

func (u *UDP) receiveLoop(ctx context.Context) {
	buf := make([]byte, n4m.MaxDatagram)

	for {
		n, addr, err := u.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}

			u.log.Warn("Failed to receive datagram", zap.Error(err))
			continue
		}

		pkt := packet{data: append([]byte(nil), buf[:n]...), addr: addr}

		select {
		case u.packets <- pkt:
		case <-ctx.Done():
			return
		}
	}
}

func (u *UDP) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case pkt := <-u.packets:
			u.reply(ctx, pkt)
		}
	}
}

func (u *UDP) reply(ctx context.Context, pkt packet) {
	log := u.log.With(zap.String("remote", pkt.addr.String()))

	resp := u.answer(ctx, pkt.data, log)

	data, err := resp.Encode()
	if err != nil {
		log.Error("Failed to encode response", zap.Error(err))

		if data, err = n4m.ErrorResponse(n4m.SystemError, 0).Encode(); err != nil {
			return
		}
	}

	if _, err := u.conn.WriteTo(data, pkt.addr); err != nil {
		log.Warn("Failed to send response", zap.Error(err))
		return
	}

	u.opts.Metrics.QueryAnswered(resp.ErrorCode.String())
}

// answer never fails, every problem becomes a response carrying an error code
func (u *UDP) answer(ctx context.Context, data []byte, log *zap.Logger) (resp *n4m.Response) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Query handler panicked", zap.Any("panic", r))
			resp = n4m.ErrorResponse(n4m.SystemError, 0)
		}
	}()

	msg, err := n4m.Decode(data)
	if err != nil {
		log.Info("Bad datagram", zap.Error(err))
		return n4m.ErrorResponse(n4m.CodeOf(err), 0)
	}

	query, ok := msg.(*n4m.Query)
	if !ok {
		log.Info("Datagram is not a query", zap.Stringer("msg", msg))
		return n4m.ErrorResponse(n4m.BadMsg, msg.MsgID())
	}

	log.Debug("Business queried usage", zap.String("business", query.Business))

	resp, err = u.usage(ctx, query.ID)
	if err != nil {
		log.Error("Failed to report usage", zap.Error(err))
		return n4m.ErrorResponse(n4m.SystemError, 0)
	}

	return resp
}

func (u *UDP) usage(ctx context.Context, id uint8) (*n4m.Response, error) {
	snap, err := u.opts.Store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	apps := make([]n4m.ApplicationEntry, 0, len(snap.Apps))
	for _, app := range snap.Apps {
		entry, err := n4m.NewApplicationEntry(app.Name, app.Count)
		if err != nil {
			return nil, fmt.Errorf("application %s: %w", app.Name, err)
		}

		apps = append(apps, entry)
	}

	return n4m.NewResponse(n4m.NoError, id, snap.LastRun, apps)
}
