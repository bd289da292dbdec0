/*
 * Copyright (c) 2014, Yawning Angel <yawning at schwanenlied dot me>
 * All rights reserved.
 *
 * Redistribution and use in source and binary forms, with or without
 * modification, are permitted provided that the following conditions are met:
 *
 *  * Redistributions of source code must retain the above copyright notice,
 *    this list of conditions and the following disclaimer.
 *
 *  * Redistributions in binary form must reproduce the above copyright notice,
 *    this list of conditions and the following disclaimer in the documentation
 *    and/or other materials provided with the distribution.
 *
 * THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
 * AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
 * IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
 * ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
 * LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
 * CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
 * SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
 * INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
 * CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
 * ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
 * POSSIBILITY OF SUCH DAMAGE.
 */

// Package anon implements the Crypto-PAn prefix-preserving IP address
// sanitization algorithm as specified by J. Fan, J. Xu, M. Ammar, and S. Moon.
//
// Two addresses that share a k-bit prefix map to anonymized addresses that
// share a k-bit prefix. The mapping is one-to-one and depends only on the
// key, so traces sanitized separately with the same key stay consistent.
// IPv6 addresses are handled with the same construction over 128 bits.
package anon

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
)

const (
	Size = keySize + blockSize

	blockSize = aes.BlockSize
	keySize   = 128 / 8
)

type keySizeError int

func (e keySizeError) Error() string {
	return "anon: invalid key size " + strconv.Itoa(int(e))
}

type bitvector [blockSize]byte

func (v *bitvector) SetBit(idx, bit uint) {
	byteIdx := idx / 8
	bitIdx := 7 - idx&7
	oldBit := uint8((v[byteIdx] & (1 << bitIdx)) >> bitIdx)
	flip := 1 ^ subtle.ConstantTimeByteEq(oldBit, uint8(bit))
	v[byteIdx] ^= byte(flip << bitIdx)
}

func (v *bitvector) Bit(idx uint) uint {
	byteIdx := idx / 8
	bitIdx := 7 - idx&7
	return uint((v[byteIdx] & (1 << bitIdx)) >> bitIdx)
}

// Cryptopan anonymizes addresses with one key. It is safe for concurrent
// use; string results are cached.
type Cryptopan struct {
	aesImpl cipher.Block
	pad     bitvector

	mu    sync.Mutex
	cache map[string]string
}

// New constructs and initializes Crypto-PAn with a given key.
func New(key []byte) (*Cryptopan, error) {
	if len(key) != Size {
		return nil, keySizeError(len(key))
	}

	ctx := &Cryptopan{cache: make(map[string]string)}
	var err error
	if ctx.aesImpl, err = aes.NewCipher(key[0:keySize]); err != nil {
		return nil, err
	}
	ctx.aesImpl.Encrypt(ctx.pad[:], key[keySize:])
	return ctx, nil
}

// RandomKey returns a fresh key. Output anonymized with it cannot be
// correlated with other runs.
func RandomKey() ([]byte, error) {
	b := make([]byte, Size)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// LoadKey reads a key file holding either the raw key bytes or their hex
// encoding.
func LoadKey(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("anon: %w", err)
	}
	if len(b) == Size {
		return b, nil
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(b)))
	if err != nil {
		return nil, fmt.Errorf("anon: key file %s: %w", path, err)
	}
	if len(key) != Size {
		return nil, keySizeError(len(key))
	}
	return key, nil
}

// Anonymize maps addr. It returns nil for anything that is not an IPv4 or
// IPv6 address.
func (ctx *Cryptopan) Anonymize(addr net.IP) net.IP {
	if v4addr := addr.To4(); v4addr != nil {
		obfsAddr := ctx.anonymize(v4addr)
		return net.IPv4(obfsAddr[0], obfsAddr[1], obfsAddr[2], obfsAddr[3])
	}
	if v6addr := addr.To16(); v6addr != nil {
		out := make(net.IP, net.IPv6len)
		copy(out, ctx.anonymize(v6addr))
		return out
	}
	return nil
}

// AnonymizeString maps a textual address. Strings that do not parse as an
// address are returned unchanged.
func (ctx *Cryptopan) AnonymizeString(input string) string {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if out, ok := ctx.cache[input]; ok {
		return out
	}
	out := input
	if parsed := net.ParseIP(input); parsed != nil {
		out = ctx.Anonymize(parsed).String()
	}
	ctx.cache[input] = out
	return out
}

func (ctx *Cryptopan) anonymize(addr net.IP) []byte {
	addrBits := uint(len(addr) * 8)
	var origAddr, input, output, toXor bitvector
	copy(origAddr[:], addr[:])
	copy(input[:], ctx.pad[:])

	// The first bit does not take any bits from orig_addr.
	ctx.aesImpl.Encrypt(output[:], input[:])
	toXor.SetBit(0, output.Bit(0))

	// Each further pad bit encrypts the pad with one more address bit
	// copied in, MSB first.
	for pos := uint(1); pos < addrBits; pos++ {
		input.SetBit(pos-1, origAddr.Bit(pos-1))
		ctx.aesImpl.Encrypt(output[:], input[:])

		// Only the MSB of the PRF output is used, as in every other
		// implementation.
		toXor.SetBit(pos, output.Bit(0))
	}

	for i := 0; i < len(addr); i++ {
		toXor[i] ^= origAddr[i]
	}
	return toXor[:len(addr)]
}
