package zfsctl

// Property names this tool reads or writes. Trimmed from the much larger
// property set vansante-go-zfsutils/properties.go exposes, down to what
// spec.md's data model actually needs.
const (
	PropertyName     = "name"
	PropertyCreation = "creation"
	PropertyReadOnly = "readonly"
)

// Boolean property value spellings, as ZFS prints them.
const (
	ValueOn  = "on"
	ValueOff = "off"
)
