package audit

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// chainSeed is hashed to give the prev_hash of the first entry.
const chainSeed = "lsh-genesis"

func seedHash() string {
	sum := sha256.Sum256([]byte(chainSeed))
	return hex.EncodeToString(sum[:])
}

// digest hashes e as it would be written with an empty hash field.
func (e Entry) digest() string {
	e.Hash = ""
	data, _ := json.Marshal(e)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// chain is the tip of a hash chain: the last sequence number and hash.
type chain struct {
	seq  uint64
	hash string
}

func newChain() chain {
	return chain{hash: seedHash()}
}

// link stamps e as the successor of the tip.
func (c *chain) link(e *Entry) {
	e.Seq = c.seq + 1
	e.PrevHash = c.hash
	e.Hash = e.digest()
}

// advance checks that e follows the tip and moves the tip to it.
func (c *chain) advance(e Entry) error {
	switch {
	case e.Seq != c.seq+1:
		return fmt.Errorf("sequence gap: expected %d, got %d", c.seq+1, e.Seq)
	case e.PrevHash != c.hash:
		return fmt.Errorf("prev_hash mismatch: expected %s, got %s", abbrev(c.hash), abbrev(e.PrevHash))
	}
	if sum := e.digest(); sum != e.Hash {
		return fmt.Errorf("hash mismatch: expected %s, got %s", abbrev(sum), abbrev(e.Hash))
	}
	c.seq, c.hash = e.Seq, e.Hash
	return nil
}

// records splits a journal into its non-empty lines.
func records(data []byte) [][]byte {
	return bytes.FieldsFunc(data, func(r rune) bool { return r == '\n' })
}

func abbrev(hash string) string {
	if len(hash) > 16 {
		return hash[:16] + "..."
	}
	return hash
}
