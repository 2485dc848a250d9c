package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/santelocale/healthlog/internal/store"
)

// KeyStatus describes the key material behind the store.
type KeyStatus struct {
	Alias         string `json:"alias"`
	Keyring       string `json:"keyring"`
	KeyRecord     bool   `json:"key_record"`
	WrappingKey   bool   `json:"wrapping_key"`
	DatabasePath  string `json:"database_path"`
	DatabaseState string `json:"database_state"`
	Healthy       bool   `json:"healthy"`
}

// NewKeyCommand creates the key command group.
func NewKeyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Inspect the database key",
	}
	cmd.AddCommand(newKeyStatusCommand(rootOpts))
	return cmd
}

func newKeyStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the key record, wrapping key and database agree",
		Long: `Report the key record, wrapping key and database file state without
opening or creating anything. A key record whose wrapping key is gone,
or an encrypted database with no key record, can only be fixed by
"santelocale reset".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(a *app) error {
				status, err := keyStatus(a)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Result(status, renderKeyStatus(status))
			})
		},
	}
}

func keyStatus(a *app) (KeyStatus, error) {
	hasRecord, err := a.keys.HasExistingKey()
	if err != nil {
		return KeyStatus{}, WrapExitError(ExitFailure, "failed to read key record", err)
	}
	hasWrapping, err := a.wrapper.HasWrappingKey()
	if err != nil {
		return KeyStatus{}, WrapExitError(ExitFailure, "failed to query secret store", err)
	}
	state, err := store.Inspect(a.provider.Path())
	if err != nil {
		return KeyStatus{}, WrapExitError(ExitFailure, "failed to inspect database", err)
	}

	healthy := true
	switch {
	case hasRecord && !hasWrapping:
		healthy = false
	case state == store.FileEncrypted && !hasRecord:
		healthy = false
	}

	return KeyStatus{
		Alias:         a.wrapper.Alias(),
		Keyring:       a.cfg.Keyring,
		KeyRecord:     hasRecord,
		WrappingKey:   hasWrapping,
		DatabasePath:  a.provider.Path(),
		DatabaseState: state.String(),
		Healthy:       healthy,
	}, nil
}

func renderKeyStatus(s KeyStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "alias:         %s (%s)\n", s.Alias, s.Keyring)
	fmt.Fprintf(&b, "key record:    %s\n", yesNo(s.KeyRecord))
	fmt.Fprintf(&b, "wrapping key:  %s\n", yesNo(s.WrappingKey))
	fmt.Fprintf(&b, "database:      %s (%s)\n", s.DatabaseState, s.DatabasePath)
	if s.Healthy {
		b.WriteString("status:        ok\n")
	} else {
		b.WriteString("status:        UNRECOVERABLE, export what you can then run `santelocale reset`\n")
	}
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
