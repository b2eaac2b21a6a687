package authorization

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// packer appends fields in their natural widths with no padding between them.
type packer struct {
	buf []byte
}

func newPacker(size int) *packer {
	return &packer{buf: make([]byte, 0, size)}
}

func (p *packer) uint8(v uint8) {
	p.buf = append(p.buf, v)
}

func (p *packer) uint256(v *uint256.Int) {
	if v == nil {
		v = new(uint256.Int)
	}

	b := v.Bytes32()
	p.buf = append(p.buf, b[:]...)
}

func (p *packer) address(a common.Address) {
	p.buf = append(p.buf, a.Bytes()...)
}

func (p *packer) bytes() []byte {
	return p.buf
}
