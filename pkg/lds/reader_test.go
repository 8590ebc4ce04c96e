package lds

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gregLibert/mrtd/pkg/bits"
	"github.com/gregLibert/mrtd/pkg/iso7816"
	"github.com/gregLibert/mrtd/pkg/tlv"
)

var errTampered = errors.New("tampered response")

// countingMessenger passes frames through unchanged and records the counter
// value of every call.
type countingMessenger struct {
	protects   []uint64
	unprotects []uint64

	failUnprotectAt int // 1-based call number, 0 never fails
}

func (m *countingMessenger) Protect(cmd []byte, _ SessionKeys, ssc uint64) ([]byte, error) {
	m.protects = append(m.protects, ssc)
	return cmd, nil
}

func (m *countingMessenger) Unprotect(resp []byte, _ SessionKeys, ssc uint64) ([]byte, error) {
	m.unprotects = append(m.unprotects, ssc)
	if len(m.unprotects) == m.failUnprotectAt {
		return nil, errTampered
	}
	return resp, nil
}

// fakeChip serves transparent files to plain SELECT and READ BINARY commands.
type fakeChip struct {
	files    map[FileID][]byte
	maxRead  int // caps the bytes returned per READ BINARY, 0 means Le
	err      error
	selected []byte
	commands [][]byte
}

func (c *fakeChip) Transceive(cmd []byte, _ time.Duration) ([]byte, error) {
	c.commands = append(c.commands, bytes.Clone(cmd))
	if c.err != nil {
		return nil, c.err
	}

	switch iso7816.InsCode(cmd[1]) {
	case iso7816.INS_SELECT:
		data, ok := c.files[FileID{cmd[5], cmd[6]}]
		if !ok {
			return tlv.Hex("6A82"), nil
		}
		c.selected = data
		return tlv.Hex("9000"), nil

	case iso7816.INS_READ_BINARY:
		offset := int(bits.Uint16(cmd[2], cmd[3]))
		le := int(cmd[4])
		if le == 0 {
			le = iso7816.MaxShortLe
		}
		if offset > len(c.selected) {
			return tlv.Hex("6B00"), nil
		}
		n := min(le, len(c.selected)-offset)
		if c.maxRead > 0 {
			n = min(n, c.maxRead)
		}
		out := bytes.Clone(c.selected[offset : offset+n])
		if n < le && offset+n == len(c.selected) {
			return append(out, 0x62, 0x82), nil
		}
		return append(out, 0x90, 0x00), nil
	}
	return tlv.Hex("6D00"), nil
}

// icaoCOM is EF.COM from the ICAO Doc 9303 part 11 worked example.
var icaoCOM = tlv.Hex("60145F0104303130365F36063034303030305C026175")

func newTestReader(chip *fakeChip, sm *countingMessenger) *Reader {
	return NewReader(chip, sm)
}

func TestReader_ReadFile_COM(t *testing.T) {
	chip := &fakeChip{files: map[FileID][]byte{EFCOM: icaoCOM}}
	sm := &countingMessenger{}
	r := newTestReader(chip, sm)

	var ssc uint64
	got, err := r.ReadFile(EFCOM, SessionKeys{}, &ssc)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	if diff := cmp.Diff(icaoCOM, got); diff != "" {
		t.Errorf("content mismatch (-want +got):\n%s", diff)
	}

	wantCommands := [][]byte{
		tlv.Hex("00 A4 02 0C 02 01 1E"),
		tlv.Hex("00 B0 00 00 04"),
		tlv.Hex("00 B0 00 04 12"),
	}
	if diff := cmp.Diff(wantCommands, chip.commands); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}

	if ssc != 6 {
		t.Errorf("ssc = %d, want 6", ssc)
	}
	if diff := cmp.Diff([]uint64{1, 3, 5}, sm.protects); diff != "" {
		t.Errorf("protect counters mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint64{2, 4, 6}, sm.unprotects); diff != "" {
		t.Errorf("unprotect counters mismatch (-want +got):\n%s", diff)
	}

	if len(r.Trace) != 3 || !r.Trace.IsSuccess() {
		t.Errorf("Trace = %d exchanges (success %v), want 3 successful", len(r.Trace), r.Trace.IsSuccess())
	}
}

// makeFile builds a file of tag 0x75 with a body of n bytes.
func makeFile(t *testing.T, n int) []byte {
	t.Helper()
	length, err := tlv.EncodeLength(n)
	if err != nil {
		t.Fatal(err)
	}
	file := append([]byte{0x75}, length...)
	for i := 0; i < n; i++ {
		file = append(file, byte(i))
	}
	return file
}

func TestReader_ReadFile_Chunking(t *testing.T) {
	tests := []struct {
		name      string
		body      int
		chunk     int
		maxRead   int
		wantReads []int // lengths requested after the header read
	}{
		{name: "Short form, single chunk", body: 0x10, wantReads: []int{14}},
		{name: "Short form, header only", body: 2},
		{name: "0x81 form", body: 0xC8, wantReads: []int{100, 99}},
		{name: "0x82 form", body: 1000, wantReads: []int{100, 100, 100, 100, 100, 100, 100, 100, 100, 100}},
		{name: "Custom chunk", body: 0xC8, chunk: 64, wantReads: []int{64, 64, 64, 7}},
		{name: "Chunk clamped", body: 500, chunk: 1000, wantReads: []int{0xDF, 0xDF, 500 - 2*0xDF}},
		{name: "Chip returns less than asked", body: 120, maxRead: 50, wantReads: []int{100, 68, 18}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := makeFile(t, tt.body)
			chip := &fakeChip{files: map[FileID][]byte{EFDG2: file}, maxRead: tt.maxRead}
			sm := &countingMessenger{}
			r := newTestReader(chip, sm)
			if tt.chunk != 0 {
				r.ChunkSize = tt.chunk
			}

			ssc := uint64(100)
			got, err := r.ReadFile(EFDG2, SessionKeys{}, &ssc)
			if err != nil {
				t.Fatalf("ReadFile() error = %v", err)
			}
			if !bytes.Equal(file, got) {
				t.Fatalf("content mismatch: got %d bytes, want %d", len(got), len(file))
			}

			var reads []int
			wantOffset := headerReadSize
			for _, cmd := range chip.commands[2:] {
				offset := int(bits.Uint16(cmd[2], cmd[3]))
				if offset != wantOffset {
					t.Errorf("read at offset %d, want %d", offset, wantOffset)
				}
				le := int(cmd[4])
				reads = append(reads, le)
				if tt.maxRead > 0 {
					le = min(le, tt.maxRead)
				}
				wantOffset += le
			}
			if diff := cmp.Diff(tt.wantReads, reads); diff != "" {
				t.Errorf("read lengths mismatch (-want +got):\n%s", diff)
			}

			exchanges := len(chip.commands)
			if ssc != 100+uint64(2*exchanges) {
				t.Errorf("ssc = %d, want %d after %d exchanges", ssc, 100+2*exchanges, exchanges)
			}
		})
	}
}

func TestReader_ReadFile_Errors(t *testing.T) {
	tests := []struct {
		name      string
		chip      *fakeChip
		sm        *countingMessenger
		fid       FileID
		match     error
		cause     error
		wantSSC   uint64
		wantSteps int
	}{
		{
			name:    "Transceiver failure",
			chip:    &fakeChip{files: map[FileID][]byte{EFCOM: icaoCOM}, err: iso7816.ErrTimeout},
			sm:      &countingMessenger{},
			fid:     EFCOM,
			match:   ErrTransceiver,
			cause:   iso7816.ErrTimeout,
			wantSSC: 1,
		},
		{
			name:      "Integrity failure on the last chunk",
			chip:      &fakeChip{files: map[FileID][]byte{EFCOM: icaoCOM}},
			sm:        &countingMessenger{failUnprotectAt: 3},
			fid:       EFCOM,
			match:     ErrIntegrity,
			cause:     errTampered,
			wantSSC:   6,
			wantSteps: 2,
		},
		{
			name:    "File not found",
			chip:    &fakeChip{files: map[FileID][]byte{}},
			sm:      &countingMessenger{},
			fid:     EFDG3,
			match:   ErrStatus,
			wantSSC: 2,
			// The rejected exchange is still traced.
			wantSteps: 1,
		},
		{
			name:      "Unsupported length form",
			chip:      &fakeChip{files: map[FileID][]byte{EFDG2: tlv.Hex("75 83 01 00 00 00")}},
			sm:        &countingMessenger{},
			fid:       EFDG2,
			match:     ErrFormat,
			cause:     tlv.ErrUnsupportedLength,
			wantSSC:   4,
			wantSteps: 2,
		},
		{
			name:      "Header shorter than its length field",
			chip:      &fakeChip{files: map[FileID][]byte{EFDG2: tlv.Hex("75")}},
			sm:        &countingMessenger{},
			fid:       EFDG2,
			match:     ErrFormat,
			wantSSC:   4,
			wantSteps: 2,
		},
		{
			name:      "Truncated 0x82 header",
			chip:      &fakeChip{files: map[FileID][]byte{EFDG2: tlv.Hex("75 82 01")}},
			sm:        &countingMessenger{},
			fid:       EFDG2,
			match:     ErrFormat,
			cause:     tlv.ErrTruncatedLength,
			wantSSC:   4,
			wantSteps: 2,
		},
		{
			name:      "File shorter than declared",
			chip:      &fakeChip{files: map[FileID][]byte{EFDG1: tlv.Hex("61 10 01 02")}},
			sm:        &countingMessenger{},
			fid:       EFDG1,
			match:     ErrFormat,
			wantSSC:   6,
			wantSteps: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestReader(tt.chip, tt.sm)

			var ssc uint64
			got, err := r.ReadFile(tt.fid, SessionKeys{}, &ssc)
			if !errors.Is(err, tt.match) {
				t.Fatalf("ReadFile() error = %v, want %v", err, tt.match)
			}
			if tt.cause != nil && !errors.Is(err, tt.cause) {
				t.Errorf("ReadFile() error = %v, want cause %v", err, tt.cause)
			}
			if got != nil {
				t.Errorf("ReadFile() returned %d bytes on error", len(got))
			}
			if ssc != tt.wantSSC {
				t.Errorf("ssc = %d, want %d", ssc, tt.wantSSC)
			}
			if len(r.Trace) != tt.wantSteps {
				t.Errorf("Trace has %d exchanges, want %d", len(r.Trace), tt.wantSteps)
			}
		})
	}
}

func TestReader_ReadFile_StatusError(t *testing.T) {
	r := newTestReader(&fakeChip{files: map[FileID][]byte{}}, &countingMessenger{})

	var ssc uint64
	_, err := r.ReadFile(EFSOD, SessionKeys{}, &ssc)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("ReadFile() error = %v, want *StatusError", err)
	}
	if statusErr.Step != "select" || statusErr.Status != iso7816.SW_ERR_FILE_NOT_FOUND {
		t.Errorf("StatusError = {%q, %04X}, want {\"select\", 6A82}", statusErr.Step, uint16(statusErr.Status))
	}
}

func TestReader_ReadFile_OffsetCeiling(t *testing.T) {
	file := makeFile(t, 0xFFFF)
	r := newTestReader(&fakeChip{files: map[FileID][]byte{EFDG2: file}}, &countingMessenger{})
	r.ChunkSize = MaxChunkSize

	var ssc uint64
	got, err := r.ReadFile(EFDG2, SessionKeys{}, &ssc)
	if !errors.Is(err, ErrFormat) {
		t.Fatalf("ReadFile() error = %v, want ErrFormat", err)
	}
	if got != nil {
		t.Errorf("ReadFile() returned %d bytes on error", len(got))
	}

	last := r.Trace.Last()
	if offset, _ := last.Command.Offset(); offset > iso7816.MaxReadBinaryOffset {
		t.Errorf("last read at offset %d beyond %d", offset, iso7816.MaxReadBinaryOffset)
	}
}

func TestReader_ReadFile_NilCounter(t *testing.T) {
	chip := &fakeChip{files: map[FileID][]byte{EFCOM: icaoCOM}}
	r := newTestReader(chip, &countingMessenger{})

	if _, err := r.ReadFile(EFCOM, SessionKeys{}, nil); !errors.Is(err, ErrFormat) {
		t.Errorf("ReadFile() error = %v, want ErrFormat", err)
	}
	if len(chip.commands) != 0 {
		t.Errorf("%d commands reached the chip", len(chip.commands))
	}
}

func TestReader_ReadFile_SharedCounter(t *testing.T) {
	dg1 := makeFile(t, 300)
	chip := &fakeChip{files: map[FileID][]byte{EFCOM: icaoCOM, EFDG1: dg1}}
	sm := &countingMessenger{}
	r := newTestReader(chip, sm)

	ssc := uint64(0x10)
	com, err := r.ReadFile(EFCOM, SessionKeys{}, &ssc)
	if err != nil {
		t.Fatalf("ReadFile(EF.COM) error = %v", err)
	}
	afterCOM := ssc

	data, err := r.ReadFile(EFDG1, SessionKeys{}, &ssc)
	if err != nil {
		t.Fatalf("ReadFile(EF.DG1) error = %v", err)
	}

	if diff := cmp.Diff(icaoCOM, com); diff != "" {
		t.Errorf("EF.COM mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(dg1, data); diff != "" {
		t.Errorf("EF.DG1 mismatch (-want +got):\n%s", diff)
	}

	// EF.COM takes 3 exchanges, EF.DG1 takes select, header and 3 chunks.
	if afterCOM != 0x10+2*3 {
		t.Errorf("ssc after EF.COM = %#x, want %#x", afterCOM, 0x10+2*3)
	}
	if want := uint64(0x10 + 2*len(chip.commands)); ssc != want || len(chip.commands) != 8 {
		t.Errorf("ssc = %#x after %d exchanges, want %#x after 8", ssc, len(chip.commands), want)
	}

	var wantProtects, wantUnprotects []uint64
	for i := uint64(0); i < 8; i++ {
		wantProtects = append(wantProtects, 0x10+2*i+1)
		wantUnprotects = append(wantUnprotects, 0x10+2*i+2)
	}
	if diff := cmp.Diff(wantProtects, sm.protects); diff != "" {
		t.Errorf("protect counters mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantUnprotects, sm.unprotects); diff != "" {
		t.Errorf("unprotect counters mismatch (-want +got):\n%s", diff)
	}

	if len(r.Trace) != 5 {
		t.Errorf("Trace = %d exchanges, want the 5 of the last read", len(r.Trace))
	}
}

func TestReader_Defaults(t *testing.T) {
	r := &Reader{}
	if got := r.timeout(); got != DefaultTimeout {
		t.Errorf("timeout() = %v, want %v", got, DefaultTimeout)
	}
	if got := r.chunkSize(); got != DefaultChunkSize {
		t.Errorf("chunkSize() = %d, want %d", got, DefaultChunkSize)
	}

	r.Timeout = time.Second
	r.ChunkSize = 32
	if r.timeout() != time.Second || r.chunkSize() != 32 {
		t.Errorf("explicit settings ignored: %v %d", r.timeout(), r.chunkSize())
	}
}
