// Package types defines core domain types shared across lifekline packages.
//
//nolint:revive // types is a common Go package naming convention
package types

// Version is the canonical project version, shared by the CLI and the
// completion event contract.
const Version = "0.3.0"

// ContractVersion is stamped on every completion event and stored record.
// It moves in lockstep with Version.
const ContractVersion = Version
