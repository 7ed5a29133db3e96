package p2p

import (
	"bytes"
	"encoding/gob"
)

func init() {
	gob.Register(MarketDataWire{})
}

// MarketDataWire is one gossiped event. Seq counts messages per channel from
// one publisher so subscribers can spot gaps.
type MarketDataWire struct {
	Channel string
	Seq     uint64
	Payload []byte // JSON subscriber envelope, see events.Marshal
}

func gobEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
func gobDecode(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
