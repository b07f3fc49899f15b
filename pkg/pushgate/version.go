package pushgate

import (
	"github.com/bft-labs/pushgate/pkg/certsource"
	"github.com/bft-labs/pushgate/pkg/gateway"
	"github.com/bft-labs/pushgate/pkg/lifecycle"
	"github.com/bft-labs/pushgate/pkg/log"
	"github.com/bft-labs/pushgate/pkg/redo"
	"github.com/bft-labs/pushgate/pkg/sender"
)

// Version is the version of the pushgate facade.
const Version = "1.0.0"

// ModuleVersion is the version pair of one sub-module.
type ModuleVersion struct {
	Version              string
	MinCompatibleVersion string
}

// ModuleVersions returns the versions of the sub-modules a Gateway is built
// from.
func ModuleVersions() map[string]ModuleVersion {
	return map[string]ModuleVersion{
		"redo":       {redo.Version, redo.MinCompatibleVersion},
		"gateway":    {gateway.Version, gateway.MinCompatibleVersion},
		"certsource": {certsource.Version, certsource.MinCompatibleVersion},
		"sender":     {sender.Version, sender.MinCompatibleVersion},
		"lifecycle":  {lifecycle.Version, lifecycle.MinCompatibleVersion},
		"log":        {log.Version, log.MinCompatibleVersion},
	}
}
