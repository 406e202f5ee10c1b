// internal/util/uid.go
package util

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// uidRoot is an unregistered OID root reserved for synthetic/test UIDs,
// matching the convention used by other DICOM toolkits for generated data.
const uidRoot = "1.2.826.0.1.3680043.8.498"

// GenerateDeterministicUID derives a DICOM UI-conformant UID from seed: same
// seed always yields the same UID, distinct seeds yield distinct UIDs with
// overwhelming probability. The result is digits and dots only, has no
// leading zeros in any component, and stays well under the 64-char UI limit.
func GenerateDeterministicUID(seed string) string {
	h := sha256.Sum256([]byte(seed))
	a := binary.BigEndian.Uint64(h[0:8])%9_999_999_999 + 1
	b := binary.BigEndian.Uint64(h[8:16])%9_999_999_999 + 1
	return fmt.Sprintf("%s.%d.%d", uidRoot, a, b)
}
