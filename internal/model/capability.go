package model

type Capability string

const (
	CapRead     Capability = "read"
	CapWrite    Capability = "write" // folders only: create/upload inside
	CapDelete   Capability = "delete"
	CapDownload Capability = "download" // documents only: transmit file bytes
	CapEdit     Capability = "edit"     // documents only: change metadata
)

type TargetKind string

const (
	TargetFolder     TargetKind = "folder"
	TargetDocument   TargetKind = "document"
	TargetTenant     TargetKind = "tenant"
	TargetMembership TargetKind = "membership"
	TargetGroup      TargetKind = "group"
)

var capabilitiesByKind = map[TargetKind][]Capability{
	TargetFolder:   {CapRead, CapWrite, CapDelete},
	TargetDocument: {CapRead, CapDownload, CapEdit, CapDelete},
}

// ValidFor reports whether c can be granted on targets of the given kind.
func (c Capability) ValidFor(kind TargetKind) bool {
	for _, allowed := range capabilitiesByKind[kind] {
		if c == allowed {
			return true
		}
	}
	return false
}
