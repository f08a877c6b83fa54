package pulse

import (
	"bytes"
	"encoding/gob"

	"github.com/pkg/errors"

	"github.com/syssiproject/oxen-core-sub000/chain/iface"
)

// GobTemplateCodec is a default TemplateCodec for tests and
// single-binary deployments where sender and receiver share the same
// Go types. A real multi-client wire format (the kind other oxend
// implementations must also parse) is out of scope (spec.md §1); this
// exists so chain/pulse has a usable codec without inventing one.
type GobTemplateCodec struct{}

func (GobTemplateCodec) Encode(b *iface.Block) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(b); err != nil {
		return nil, errors.Wrap(err, "gob: encode block template")
	}
	return buf.Bytes(), nil
}

func (GobTemplateCodec) Decode(payload []byte) (*iface.Block, error) {
	var b iface.Block
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&b); err != nil {
		return nil, errors.Wrap(err, "gob: decode block template")
	}
	return &b, nil
}
