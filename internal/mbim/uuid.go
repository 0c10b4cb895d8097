// internal/mbim/uuid.go
package mbim

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

// UUID identifies an MBIM service. Bytes are kept in wire (network) order.
type UUID [16]byte

// Well-known services.
var (
	UUIDBasicConnect = MustParseUUID("a289cc33-bcbb-8b4f-b6b0-133ec2aae6df")
	UUIDSMS          = MustParseUUID("533fbeeb-14fe-4467-9f90-33a223e56c3f")
	UUIDUSSD         = MustParseUUID("e550a0c8-5e82-479e-82f7-10abf4c3351f")
	UUIDPhonebook    = MustParseUUID("4bf38476-1e6a-41db-b1d8-bed289c25bdb")
	UUIDSTK          = MustParseUUID("d8f20131-fcb5-4e17-8602-d6ed3816164c")
	UUIDAuth         = MustParseUUID("1d2b5ff7-0aa1-48b2-aa52-50f15767174e")
	UUIDDSS          = MustParseUUID("c08a26dd-7718-4382-8482-e6f4cd4faf4b")
)

// ParseUUID parses the canonical 8-4-4-4-12 form.
func ParseUUID(s string) (UUID, error) {
	var u UUID
	raw := strings.ReplaceAll(s, "-", "")
	if len(raw) != 32 {
		return u, errors.Errorf("mbim: invalid uuid %q", s)
	}
	if _, err := hex.Decode(u[:], []byte(raw)); err != nil {
		return u, errors.Wrapf(err, "mbim: invalid uuid %q", s)
	}
	return u, nil
}

// MustParseUUID is ParseUUID for package-level constants.
func MustParseUUID(s string) UUID {
	u, err := ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}

func (u UUID) String() string {
	h := hex.EncodeToString(u[:])
	return h[0:8] + "-" + h[8:12] + "-" + h[12:16] + "-" + h[16:20] + "-" + h[20:32]
}

// ServiceName returns a short name for well-known services, or the UUID string.
func (u UUID) ServiceName() string {
	switch u {
	case UUIDBasicConnect:
		return "basic-connect"
	case UUIDSMS:
		return "sms"
	case UUIDUSSD:
		return "ussd"
	case UUIDPhonebook:
		return "phonebook"
	case UUIDSTK:
		return "stk"
	case UUIDAuth:
		return "auth"
	case UUIDDSS:
		return "dss"
	}
	return u.String()
}

// LookupService resolves a short service name or a UUID string.
func LookupService(name string) (UUID, error) {
	for _, u := range []UUID{UUIDBasicConnect, UUIDSMS, UUIDUSSD, UUIDPhonebook, UUIDSTK, UUIDAuth, UUIDDSS} {
		if u.ServiceName() == name {
			return u, nil
		}
	}
	return ParseUUID(name)
}
