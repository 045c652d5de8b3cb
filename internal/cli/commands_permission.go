package cli

import (
	"fmt"

	"github.com/mekedron/nearby/internal/permission"
	"github.com/mekedron/nearby/internal/service/output"
	"github.com/spf13/cobra"
)

func newPermissionCommand(deps Dependencies) *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:   "permission",
		Short: "Check or request location permission and print the normalized state.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := resolveSession(cmd, deps, flags)
			if err != nil {
				return err
			}
			gate, err := newPermissionGate(cmd, deps, s)
			if err != nil {
				return err
			}

			state, checkErr := gate.CheckOrRequest(cmd.Context())
			warnings := []string{}
			if checkErr != nil {
				warnings = append(warnings, checkErr.Error())
			}

			if s.format == output.FormatTable {
				text := fmt.Sprintf("Permission: %s (flow: %s)", state, permissionFlow(gate))
				for _, warning := range warnings {
					text += "\nwarning: " + warning
				}
				return writeTable(cmd, text, flags.Output)
			}
			data := map[string]any{
				"state":       string(state),
				"granted":     state.Granted(),
				"flow":        permissionFlow(gate),
				"android_sdk": s.sdk,
			}
			env := output.BuildEnvelope(s.meta(), data, warnings, nil)
			return writeMachinePayload(cmd, env, s.format, flags.Output)
		},
	}

	addGlobalFlags(cmd, &flags)
	return cmd
}

func permissionFlow(gate permission.Provider) string {
	switch gate.(type) {
	case *permission.IOS:
		return "ios"
	case permission.AndroidLegacy:
		return "android-legacy"
	case *permission.AndroidRuntime:
		return "android-runtime"
	default:
		return "custom"
	}
}
