package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/sable-labs/katana/finder"

	_ "github.com/sable-labs/katana/units/download"
	_ "github.com/sable-labs/katana/units/railfence"
	_ "github.com/sable-labs/katana/units/strings"
)

// UnitsCommand returns the units command: list the units a manifest
// declares and the match pattern each one is gated behind.
func UnitsCommand() *cli.Command {
	return &cli.Command{
		Name:  "units",
		Usage: "List the units declared in a manifest",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "manifest", Usage: "Path to the units.yaml manifest", Required: true},
		},
		Action: unitsAction,
	}
}

func unitsAction(c *cli.Context) error {
	manifest, err := finder.LoadManifest(c.String("manifest"))
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}

	for _, u := range manifest.Units {
		match := u.Match
		if match == "" {
			match = "(catch-all)"
		}
		fmt.Printf("%-20s %s\n", u.Name, match)
	}
	return nil
}
