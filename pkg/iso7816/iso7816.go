/*
Package iso7816 implements the ISO/IEC 7816-4 command layer used to talk to an eMRTD chip.

It provides the APDU building blocks (Command and Response structures, Status Word analysis, the CLA and INS bytes), the SELECT and READ BINARY builders needed to read transparent elementary files, and a Client that bounds every exchange with the physical reader by a timeout.

# Fundamentals

The communication with a smart card is strictly synchronous:
 1. The Host sends a Command APDU (Header + Optional Body).
 2. The Card processes it and returns a Response APDU (Optional Body + Trailer SW1/SW2).

# Status Words

Every response ends with a 2-byte Status Word (SW).
  - 0x9000: Success (OK).
  - 0x6282: Warning, end of file reached before Le bytes were read.
  - 0x6987 / 0x6988: Secure messaging data objects missing or incorrect.
  - Other: Various error conditions.

# Reading an Elementary File

An eMRTD file is read by selecting it by identifier and then issuing READ BINARY commands at growing offsets:

	client := iso7816.NewClient(card) // card is a *scard.Card

	trace, err := client.Send(iso7816.SelectEF(iso7816.PlainClass, [2]byte{0x01, 0x1E}))
	if err != nil {
	    log.Fatal(err)
	}
	if !trace.IsSuccess() {
	    log.Fatalf("select failed: %s", trace.Last().Response.Status.Verbose())
	}

	read, _ := iso7816.ReadBinary(iso7816.PlainClass, 0, 4)
	trace, err = client.Send(read)

Chips that enforce Basic Access Control reject plain reads. The protected sequence is implemented by package lds, which feeds the same commands through a secure messaging adapter and calls Client.Transceive directly.
*/
package iso7816
