package common

// PackageName is the metrics namespace and default service tag.
const PackageName = "guardian_recovery"

// Version is the service build version, overridable at link time with
// -ldflags "-X github.com/custodia/guardian-recovery-backend/common.Version=...".
var Version = "dev"
