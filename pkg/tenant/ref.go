package tenant

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

type refKind uint8

const (
	refNone refKind = iota
	refID
	refValue
)

// Ref identifies a tenant either by raw id or by a loaded Tenant value.
// The zero Ref is blank and means "no tenant requested".
type Ref struct {
	kind   refKind
	id     string
	tenant *Tenant
}

// ByID references a tenant by its raw string id.
func ByID(id string) Ref {
	return Ref{kind: refID, id: id}
}

// ByIntID references a tenant by an integer primary key.
func ByIntID(id int64) Ref {
	return Ref{kind: refID, id: strconv.FormatInt(id, 10)}
}

// ByUUID references a tenant by its UUID.
func ByUUID(id uuid.UUID) Ref {
	return Ref{kind: refID, id: id.String()}
}

// ByValue references an already loaded tenant.
// A nil tenant produces a blank Ref.
func ByValue(t *Tenant) Ref {
	if t == nil {
		return Ref{}
	}
	return Ref{kind: refValue, id: t.ID.String(), tenant: t}
}

// ID returns the tenant id carried by the reference.
func (r Ref) ID() string {
	return r.id
}

// Tenant returns the referenced tenant when the Ref was built with ByValue.
func (r Ref) Tenant() (*Tenant, bool) {
	return r.tenant, r.kind == refValue
}

// IsBlank reports whether the reference carries no usable id.
func (r Ref) IsBlank() bool {
	return strings.TrimSpace(r.id) == ""
}

func (r Ref) String() string {
	switch r.kind {
	case refValue:
		return fmt.Sprintf("tenant(%s)", r.id)
	case refID:
		return fmt.Sprintf("tenant_id(%s)", r.id)
	default:
		return "tenant(none)"
	}
}

// RefOf resolves dynamic input into a Ref. Accepted inputs are Ref, *Tenant,
// Tenant, uuid.UUID, string and any integer type. Everything else fails
// with ErrInvalidArgument.
func RefOf(v any) (Ref, error) {
	switch x := v.(type) {
	case Ref:
		return x, nil
	case *Tenant:
		if x == nil {
			return Ref{}, fmt.Errorf("%w: expected tenant or tenant id, got nil *Tenant", ErrInvalidArgument)
		}
		return ByValue(x), nil
	case Tenant:
		return ByValue(&x), nil
	case uuid.UUID:
		return ByUUID(x), nil
	case string:
		return ByID(x), nil
	case int:
		return ByIntID(int64(x)), nil
	case int8:
		return ByIntID(int64(x)), nil
	case int16:
		return ByIntID(int64(x)), nil
	case int32:
		return ByIntID(int64(x)), nil
	case int64:
		return ByIntID(x), nil
	case uint:
		return ByID(strconv.FormatUint(uint64(x), 10)), nil
	case uint8:
		return ByID(strconv.FormatUint(uint64(x), 10)), nil
	case uint16:
		return ByID(strconv.FormatUint(uint64(x), 10)), nil
	case uint32:
		return ByID(strconv.FormatUint(uint64(x), 10)), nil
	case uint64:
		return ByID(strconv.FormatUint(x, 10)), nil
	default:
		return Ref{}, fmt.Errorf("%w: expected tenant or tenant id, got %T", ErrInvalidArgument, v)
	}
}

// ExtractID returns the tenant id for a tenant value or raw id.
func ExtractID(v any) (string, error) {
	ref, err := RefOf(v)
	if err != nil {
		return "", err
	}
	return ref.ID(), nil
}
