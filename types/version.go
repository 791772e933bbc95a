package types

// Version is the canonical project version.
// The CLI, the archive frame format, and the published suite events share
// this version per the lockstep versioning policy.
const Version = "0.1.0"

// ContractVersion is the version stamped on archive headers, history records,
// and published suite events. It moves in lockstep with Version.
const ContractVersion = Version
