package sm

import (
	"crypto/cipher"
	"crypto/des"
	"fmt"
)

// BAC CRYPTOGRAPHY (ICAO Doc 9303 part 11, section 9.8):
// - Encryption: 2-key 3DES (K1 K2 K1) in CBC mode with a zero IV.
// - MAC: ISO/IEC 9797-1 MAC algorithm 3 with DES, the "retail MAC".
//   CBC-DES under K1 over all blocks, then decrypt with K2 and encrypt with
//   K1 on the last block.
// - Padding: ISO/IEC 9797-1 method 2, 0x80 then zeros up to a block boundary.

const keySize = 16

func tripleDES(key []byte) (cipher.Block, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("%w: got %d", ErrKeyLength, len(key))
	}
	k := make([]byte, 0, 24)
	k = append(k, key...)
	k = append(k, key[:8]...)
	return des.NewTripleDESCipher(k)
}

func encrypt(key, plain []byte) ([]byte, error) {
	block, err := tripleDES(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(plain))
	cipher.NewCBCEncrypter(block, make([]byte, des.BlockSize)).CryptBlocks(out, plain)
	return out, nil
}

func decrypt(key, enc []byte) ([]byte, error) {
	if len(enc) == 0 || len(enc)%des.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext of %d bytes", ErrMalformedResponse, len(enc))
	}
	block, err := tripleDES(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(enc))
	cipher.NewCBCDecrypter(block, make([]byte, des.BlockSize)).CryptBlocks(out, enc)
	return out, nil
}

// retailMAC computes the 8-byte MAC of an already padded message.
func retailMAC(key, msg []byte) ([]byte, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("%w: got %d", ErrKeyLength, len(key))
	}
	k1, err := des.NewCipher(key[:8])
	if err != nil {
		return nil, err
	}
	k2, err := des.NewCipher(key[8:])
	if err != nil {
		return nil, err
	}

	h := make([]byte, des.BlockSize)
	for i := 0; i < len(msg); i += des.BlockSize {
		for j := range h {
			h[j] ^= msg[i+j]
		}
		k1.Encrypt(h, h)
	}
	k2.Decrypt(h, h)
	k1.Encrypt(h, h)
	return h, nil
}

func pad(data []byte) []byte {
	n := (len(data)/des.BlockSize + 1) * des.BlockSize
	out := make([]byte, n)
	copy(out, data)
	out[len(data)] = 0x80
	return out
}

func unpad(data []byte) ([]byte, error) {
	i := len(data) - 1
	for i >= 0 && data[i] == 0x00 {
		i--
	}
	if i < 0 || data[i] != 0x80 {
		return nil, fmt.Errorf("%w: bad padding", ErrMalformedResponse)
	}
	return data[:i], nil
}
