package iso7816

import (
	"errors"
	"fmt"
	"time"
)

// CLIENT & PROTOCOL LOGIC:
// The Client drives the physical connection. It offers two levels:
//
// 1. Transceive: one raw request/response exchange bounded by a timeout.
//    This is the primitive the secure file reader builds on, since protected
//    frames must reach the card byte for byte.
//
// 2. Send: a plain (unprotected) command with the ISO 7816-3 transport
//    behaviors handled automatically:
//    - "61 XX": the card has XX bytes waiting, a GET RESPONSE is issued.
//    - "6C XX": wrong Le, the command is re-sent with Le = XX.
//    Send returns the full Trace of atomic exchanges.
//
// PC/SC offers no way to abort a pending SCardTransmit. Transceive runs the
// transmit on its own goroutine and gives up waiting when the timeout fires.
// The abandoned exchange stays pending on the Client: further exchanges are
// refused with ErrBusy until it returns, and Wait must be called before the
// card is disconnected.

// DefaultTimeout bounds one exchange when the Client has no Timeout set.
const DefaultTimeout = 500 * time.Millisecond

var (
	// ErrTimeout is returned when the card does not answer within the timeout.
	ErrTimeout = errors.New("card exchange timed out")

	// ErrBusy is returned while a timed out transmit has not returned yet.
	ErrBusy = errors.New("previous card exchange still pending")
)

// Transmitter abstracts the physical card connection.
// *scard.Card satisfies it.
type Transmitter interface {
	Transmit(cmd []byte) ([]byte, error)
}

// Client manages the communication with the card. It is not safe for
// concurrent use.
type Client struct {
	Card    Transmitter
	Timeout time.Duration // used by Send; zero means DefaultTimeout

	pending chan transmitResult
}

// NewClient creates a new Client instance.
func NewClient(card Transmitter) *Client {
	return &Client{Card: card, Timeout: DefaultTimeout}
}

type transmitResult struct {
	resp []byte
	err  error
}

// Transceive sends one raw frame and waits at most timeout for the answer.
//
// After ErrTimeout the transmit is still running against the card. Until it
// returns, Transceive fails with ErrBusy and the card must not be closed.
func (c *Client) Transceive(cmd []byte, timeout time.Duration) ([]byte, error) {
	if c.Wait(0) {
		return nil, ErrBusy
	}
	if err := CheckFrame(cmd); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	done := make(chan transmitResult, 1)
	go func() {
		resp, err := c.Card.Transmit(cmd)
		done <- transmitResult{resp: resp, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("transmission error: %w", res.err)
		}
		if err := CheckFrame(res.resp); err != nil {
			return nil, err
		}
		return res.resp, nil
	case <-timer.C:
		c.pending = done
		return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}

// Wait blocks up to timeout for a transmit abandoned by Transceive and
// reports whether one is still pending. A zero timeout only polls.
func (c *Client) Wait(timeout time.Duration) bool {
	if c.pending == nil {
		return false
	}

	if timeout <= 0 {
		select {
		case <-c.pending:
			c.pending = nil
			return false
		default:
			return true
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.pending:
		c.pending = nil
		return false
	case <-timer.C:
		return true
	}
}

// Send transmits a plain command and handles protocol logic (61xx, 6Cxx).
func (c *Client) Send(cmd *CommandAPDU) (Trace, error) {
	rawCmd, err := cmd.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding error: %w", err)
	}

	rawResp, err := c.Transceive(rawCmd, c.Timeout)
	if err != nil {
		return nil, err
	}

	resp, err := ParseResponseAPDU(rawResp)
	if err != nil {
		return nil, err
	}

	trace := Trace{{Command: cmd, Response: resp}}

	switch resp.Status.SW1() {
	case 0x61:
		// GET RESPONSE must use the same logical channel as the original command.
		respCls := cmd.Class
		respCls.IsChained = false

		ins, _ := NewInstruction(INS_GET_RESPONSE)
		getResp := NewCommandAPDU(respCls, ins, 0x00, 0x00, nil, shortLe(resp.Status.SW2()))

		sub, err := c.Send(getResp)
		if err != nil {
			return trace, err
		}
		return append(trace, sub...), nil

	case 0x6C:
		retry := *cmd
		retry.Ne = shortLe(resp.Status.SW2())

		sub, err := c.Send(&retry)
		if err != nil {
			return trace, err
		}
		return append(trace, sub...), nil
	}

	return trace, nil
}

// shortLe maps an SW2 length hint to Ne, where 00 stands for 256.
func shortLe(sw2 byte) int {
	if sw2 == 0 {
		return MaxShortLe
	}
	return int(sw2)
}
