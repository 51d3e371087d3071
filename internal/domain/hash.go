package domain

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/blake2b"
)

// HashItems computes the 32-byte commitment to a market's ordered outcome
// set. Each label is length-prefixed before hashing so the commitment is
// unambiguous under concatenation ("ab","c" vs "a","bc").
func HashItems(labels []string) common.Hash {
	h, _ := blake2b.New256(nil)

	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(labels)))
	h.Write(n[:])

	for _, label := range labels {
		binary.BigEndian.PutUint32(n[:], uint32(len(label)))
		h.Write(n[:])
		h.Write([]byte(label))
	}

	return common.BytesToHash(h.Sum(nil))
}
