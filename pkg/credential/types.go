// Package credential defines the shared credential-type and claim-topic
// numbering used across the verifier, badge and compliance layers.
package credential

// Type identifies a verified-credential category. This is the canonical
// numbering consumed by the proof verifier and the badge layer; it starts
// at 1 and must stay stable for proof-system compatibility.
type Type uint32

const (
	TypeKYC                Type = 1
	TypeAccreditedInvestor Type = 2
	TypeQualifiedPurchaser Type = 3
	TypeInstitutional      Type = 4
	TypeAML                Type = 5
)

// String returns the human-readable name of the credential type.
func (t Type) String() string {
	switch t {
	case TypeKYC:
		return "kyc"
	case TypeAccreditedInvestor:
		return "accredited_investor"
	case TypeQualifiedPurchaser:
		return "qualified_purchaser"
	case TypeInstitutional:
		return "institutional"
	case TypeAML:
		return "aml"
	default:
		return "unknown"
	}
}

// Valid reports whether t is one of the known credential types.
func (t Type) Valid() bool {
	return t >= TypeKYC && t <= TypeAML
}

// ClientType is the zero-based enumeration used by the legacy client
// frontend (KYC=0 .. AMLCleared=4). It is off by one from Type and the two
// must never be mixed: the mismatch is a known inconsistency inherited from
// the upstream system, kept explicit here pending a product decision rather
// than silently renumbered.
type ClientType uint32

const (
	ClientTypeKYC                ClientType = 0
	ClientTypeAccreditedInvestor ClientType = 1
	ClientTypeQualifiedPurchaser ClientType = 2
	ClientTypeInstitutional      ClientType = 3
	ClientTypeAMLCleared         ClientType = 4
)

// Canonical converts a client-facing enumeration value to the canonical
// chain numbering.
func (c ClientType) Canonical() Type {
	return Type(uint32(c) + 1)
}

// ClientValue converts a canonical credential type to the client-facing
// zero-based enumeration.
func (t Type) ClientValue() ClientType {
	return ClientType(uint32(t) - 1)
}

// Standard claim topics recognized by the accreditation rule module. These
// live in a separate numbering space from credential types.
const (
	TopicAccreditedInvestor    uint64 = 7
	TopicQualifiedInvestor     uint64 = 8
	TopicInstitutionalInvestor uint64 = 9
)
