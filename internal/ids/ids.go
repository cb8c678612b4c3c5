// Package ids assigns the monotonically increasing Fuid/Guid identifiers
// used to uniquely name Tensors and Operators within a Graph.
package ids

import (
	"encoding/binary"

	"github.com/mr-tron/base58"
)

// Fuid uniquely identifies a Tensor within its owning Graph.
type Fuid int64

// Guid uniquely identifies an Operator within its owning Graph.
type Guid int64

// Counter hands out monotonically increasing identifiers. A Graph owns
// one Counter for Fuids and one for Guids; it is not safe for concurrent
// use, matching the single-threaded cooperative model of the Graph it
// belongs to.
type Counter struct {
	next int64
}

// Next returns the next unused identifier, starting at 0.
func (c *Counter) Next() int64 {
	id := c.next
	c.next++
	return id
}

// Short renders id as a base58 string for compact debug logging. It is
// never used for the stable, numeric toString renderings of the Graph
// and its operators.
func Short(id int64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	i := 0
	for i < len(buf)-1 && buf[i] == 0 {
		i++
	}
	return base58.Encode(buf[i:])
}
