package commands

import (
	"encoding/hex"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/ebfe/scard"

	"github.com/gregLibert/mrtd/pkg/iso7816"
	"github.com/gregLibert/mrtd/pkg/lds"
	"github.com/gregLibert/mrtd/pkg/sm"
)

// drainTimeout bounds how long close waits for a timed out transmit.
const drainTimeout = 5 * time.Second

// session is an open card connection with its secure messaging state.
type session struct {
	ctx    *scard.Context
	card   *scard.Card
	client *iso7816.Client

	reader *lds.Reader
	keys   lds.SessionKeys
	ssc    uint64
}

func parseSessionKeys() (lds.SessionKeys, uint64, error) {
	enc, err := hex.DecodeString(kenc)
	if err != nil {
		return lds.SessionKeys{}, 0, fmt.Errorf("--kenc: %w", err)
	}
	mac, err := hex.DecodeString(kmac)
	if err != nil {
		return lds.SessionKeys{}, 0, fmt.Errorf("--kmac: %w", err)
	}
	if len(enc) != 16 || len(mac) != 16 {
		return lds.SessionKeys{}, 0, fmt.Errorf("session keys must be 16 bytes, got %d and %d", len(enc), len(mac))
	}
	counter, err := strconv.ParseUint(ssc, 16, 64)
	if err != nil {
		return lds.SessionKeys{}, 0, fmt.Errorf("--ssc: %w", err)
	}
	return lds.SessionKeys{Enc: enc, MAC: mac}, counter, nil
}

// openSession parses the session flags and connects to the selected reader.
func openSession() (*session, error) {
	keys, counter, err := parseSessionKeys()
	if err != nil {
		return nil, err
	}

	ctx, card, err := connectToCard(readerIndex)
	if err != nil {
		return nil, err
	}

	client := iso7816.NewClient(card)
	client.Timeout = timeout

	reader := lds.NewReader(client, sm.Messenger{})
	reader.Timeout = timeout
	reader.ChunkSize = chunkSize

	return &session{ctx: ctx, card: card, client: client, reader: reader, keys: keys, ssc: counter}, nil
}

// readFile reads one file and reports the exchanges when verbose.
func (s *session) readFile(fid lds.FileID) ([]byte, error) {
	data, err := s.reader.ReadFile(fid, s.keys, &s.ssc)
	if verbose {
		fmt.Println(s.reader.Trace.Describe())
	}
	return data, err
}

func (s *session) close() {
	fmt.Printf(">> Final SSC: %016X\n", s.ssc)

	// A timed out transmit still owns the card handle.
	if s.client.Wait(drainTimeout) {
		log.Printf("Warning: card exchange still pending after %s, leaving the connection open", drainTimeout)
		return
	}
	if err := s.card.Disconnect(scard.LeaveCard); err != nil {
		log.Printf("Warning: Failed to disconnect card: %v", err)
	}
	if err := s.ctx.Release(); err != nil {
		log.Printf("Warning: Failed to release context: %v", err)
	}
}

// connectToCard handles the PC/SC context establishment and reader connection.
func connectToCard(index int) (*scard.Context, *scard.Card, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, nil, fmt.Errorf("establishing context: %w", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil || len(readers) == 0 {
		if relErr := ctx.Release(); relErr != nil {
			log.Printf("Warning: Failed to release context during error handling: %v", relErr)
		}
		return nil, nil, fmt.Errorf("no smart card reader found")
	}
	if index < 0 || index >= len(readers) {
		if relErr := ctx.Release(); relErr != nil {
			log.Printf("Warning: Failed to release context during error handling: %v", relErr)
		}
		return nil, nil, fmt.Errorf("reader index %d out of range (%d readers)", index, len(readers))
	}

	fmt.Printf(">> Using reader: %s\n", readers[index])

	// Force T=0 or T=1 to avoid "Parameter Incorrect" errors (Error 57)
	card, err := ctx.Connect(readers[index], scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
	if err != nil {
		if relErr := ctx.Release(); relErr != nil {
			log.Printf("Warning: Failed to release context during error handling: %v", relErr)
		}
		return nil, nil, fmt.Errorf("connecting to card: %w", err)
	}

	return ctx, card, nil
}
