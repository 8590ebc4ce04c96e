/*
Package lds reads files from the Logical Data Structure of an eMRTD chip over an established secure messaging session, and decodes the two LDS files a reader needs first: EF.COM, the directory of present data groups, and the image-bearing biometric data group.

# Reading a file

Every exchange is protected by a secure messaging adapter keyed by the session keys and ordered by the send sequence counter (SSC). The counter belongs to the caller and must survive from one read to the next:

	reader := lds.NewReader(client, sm.Messenger{})
	keys := lds.SessionKeys{Enc: ksEnc, MAC: ksMac}

	com, err := reader.ReadFile(lds.EFCOM, keys, &ssc)
	if err != nil {
	    log.Fatal(err)
	}

	entries, err := lds.DecodeDirectory(com)
	for _, e := range entries {
	    fmt.Printf("%02X %s\n", e.Tag, e.Name)
	}

Each exchange advances the SSC by exactly two: once before the command is protected, once before the response is verified. After any error the counter no longer matches the chip's and the session has to be re-established.
*/
package lds

import "time"

// SessionKeys is the secure messaging key material: the encryption key
// (KSenc) and the MAC key (KSmac). It is opaque to this package.
type SessionKeys struct {
	Enc []byte
	MAC []byte
}

// SecureMessenger wraps plain commands and unwraps protected responses.
//
// The ssc passed in is the already incremented counter value for this
// half-exchange. Unprotect returns the plain response as Data || SW1 SW2 and
// fails when the response does not authenticate.
type SecureMessenger interface {
	Protect(cmd []byte, keys SessionKeys, ssc uint64) ([]byte, error)
	Unprotect(resp []byte, keys SessionKeys, ssc uint64) ([]byte, error)
}

// Transceiver performs one blocking frame exchange with the chip.
// *iso7816.Client satisfies it.
type Transceiver interface {
	Transceive(cmd []byte, timeout time.Duration) ([]byte, error)
}
