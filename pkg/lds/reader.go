package lds

import (
	"fmt"
	"time"

	"github.com/gregLibert/mrtd/pkg/iso7816"
	"github.com/gregLibert/mrtd/pkg/tlv"
)

// SECURE FILE READ SEQUENCE:
// 1. SELECT the EF by identifier (00 A4 02 0C 02 <fid>).
// 2. READ BINARY 4 bytes at offset 0: the file tag and up to 3 length bytes.
// 3. Decode the BER-TLV length from the header to learn the file size.
// 4. READ BINARY the rest in chunks at growing offsets until the declared
//    size is assembled.
//
// Each step is one protected exchange:
//
//	SSC++ -> Protect -> Transceive -> SSC++ -> Unprotect -> status check

const (
	// DefaultChunkSize is the READ BINARY length used for the file body.
	DefaultChunkSize = 100

	// MaxChunkSize keeps a protected READ BINARY response inside one frame.
	MaxChunkSize = 0xDF

	// DefaultTimeout bounds each exchange when the Reader has no Timeout.
	DefaultTimeout = 500 * time.Millisecond

	headerReadSize = 4
)

// Reader reads elementary files over a secure messaging session.
// A Reader is not safe for concurrent use.
type Reader struct {
	Link      Transceiver
	Messenger SecureMessenger
	Timeout   time.Duration
	ChunkSize int // clamped to MaxChunkSize; zero means DefaultChunkSize

	// Trace holds the plain side of every exchange of the last ReadFile call.
	Trace iso7816.Trace
}

// NewReader creates a Reader with the default timeout and chunk size.
func NewReader(link Transceiver, messenger SecureMessenger) *Reader {
	return &Reader{
		Link:      link,
		Messenger: messenger,
		Timeout:   DefaultTimeout,
		ChunkSize: DefaultChunkSize,
	}
}

// ReadFile selects the file fid and returns its full content, tag and length
// header included.
//
// ssc is advanced by two per exchange and keeps its value on error, so the
// caller can tell how far the session got. No partial content is returned.
func (r *Reader) ReadFile(fid FileID, keys SessionKeys, ssc *uint64) ([]byte, error) {
	r.Trace = nil
	if ssc == nil {
		return nil, fmt.Errorf("%w: nil send sequence counter", ErrFormat)
	}

	if _, err := r.exchange("select", iso7816.SelectEF(iso7816.PlainClass, fid), keys, ssc); err != nil {
		return nil, err
	}

	header, err := iso7816.ReadBinary(iso7816.PlainClass, 0, headerReadSize)
	if err != nil {
		return nil, fmt.Errorf("read header: %w: %w", ErrFormat, err)
	}
	resp, err := r.exchange("read header", header, keys, ssc)
	if err != nil {
		return nil, err
	}

	if len(resp.Data) < 2 {
		return nil, fmt.Errorf("read header: %w: got %d bytes, need tag and length", ErrFormat, len(resp.Data))
	}
	length, err := tlv.DecodeLength(resp.Data[1:])
	if err != nil {
		return nil, fmt.Errorf("read header: %w: %w", ErrFormat, err)
	}

	// With a full 4-byte header chunk this is declared - (3 - width).
	total := 1 + length.Width + length.Value
	file := make([]byte, 0, max(total, len(resp.Data)))
	file = append(file, resp.Data...)
	remaining := total - len(file)

	chunk := r.chunkSize()
	for remaining > 0 {
		offset := len(file)
		step := fmt.Sprintf("read chunk at offset %d", offset)

		cmd, err := iso7816.ReadBinary(iso7816.PlainClass, offset, min(remaining, chunk))
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", step, ErrFormat, err)
		}
		resp, err := r.exchange(step, cmd, keys, ssc)
		if err != nil {
			return nil, err
		}

		switch {
		case len(resp.Data) == 0:
			return nil, fmt.Errorf("%s: %w: no data with %d bytes remaining", step, ErrFormat, remaining)
		case len(resp.Data) > remaining:
			return nil, fmt.Errorf("%s: %w: %d bytes overrun the declared length by %d",
				step, ErrFormat, len(resp.Data), len(resp.Data)-remaining)
		}

		file = append(file, resp.Data...)
		remaining -= len(resp.Data)
	}

	return file, nil
}

// exchange runs one protected command/response cycle and checks the status
// of the decoded response.
func (r *Reader) exchange(step string, cmd *iso7816.CommandAPDU, keys SessionKeys, ssc *uint64) (*iso7816.ResponseAPDU, error) {
	plain, err := cmd.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", step, ErrFormat, err)
	}

	*ssc++
	protected, err := r.Messenger.Protect(plain, keys, *ssc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", step, ErrIntegrity, err)
	}

	raw, err := r.Link.Transceive(protected, r.timeout())
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", step, ErrTransceiver, err)
	}

	*ssc++
	decoded, err := r.Messenger.Unprotect(raw, keys, *ssc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", step, ErrIntegrity, err)
	}

	resp, err := iso7816.ParseResponseAPDU(decoded)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", step, ErrIntegrity, err)
	}
	r.Trace = append(r.Trace, iso7816.Transaction{Command: cmd, Response: resp})

	if !statusAccepted(cmd, resp.Status) {
		return nil, &StatusError{Step: step, Status: resp.Status}
	}
	return resp, nil
}

// statusAccepted also lets end-of-file through on READ BINARY: the chip
// returns what is left of the file with 6282.
func statusAccepted(cmd *iso7816.CommandAPDU, sw iso7816.StatusWord) bool {
	if sw.IsSuccess() {
		return true
	}
	return cmd.Instruction.Raw == iso7816.INS_READ_BINARY && sw == iso7816.SW_WARN_EOF_REACHED
}

func (r *Reader) timeout() time.Duration {
	if r.Timeout <= 0 {
		return DefaultTimeout
	}
	return r.Timeout
}

func (r *Reader) chunkSize() int {
	switch {
	case r.ChunkSize <= 0:
		return DefaultChunkSize
	case r.ChunkSize > MaxChunkSize:
		return MaxChunkSize
	default:
		return r.ChunkSize
	}
}
