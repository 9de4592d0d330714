package sqlite

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// KeyLength is the number of hex characters kept from the fingerprint digest.
const KeyLength = 16

// GenerateKey returns a deterministic fingerprint of fields. Maps are encoded
// with sorted keys, so logically equal inputs yield equal keys. Collisions are
// not guarded against.
func GenerateKey(fields ...any) string {
	data, err := json.Marshal(fields)
	if err != nil {
		// Unencodable values (channels, funcs) still need a stable key.
		data = []byte(fmt.Sprintf("%#v", fields))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:KeyLength]
}
