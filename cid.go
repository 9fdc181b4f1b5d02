package meridian

import (
	"encoding/hex"
	"encoding/json"

	"github.com/zeebo/xxh3"
)

// ComputeCid derives the content id of a record body. Callers normally
// receive cids from the record source; this exists for producers and tests.
func ComputeCid(body []byte) string {
	h := xxh3.Hash128(body)
	buf := make([]byte, 16)
	for i := 0; i < 8; i++ {
		buf[i] = byte(h.Hi >> (56 - 8*i))
		buf[8+i] = byte(h.Lo >> (56 - 8*i))
	}
	return "mzc" + hex.EncodeToString(buf)
}

// ComputeRecordCid is ComputeCid over the canonical JSON form of a record.
func ComputeRecordCid(record any) (string, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return "", err
	}
	return ComputeCid(body), nil
}
