// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datavapte/ecctransform/internal/json"
)

const trueStr = "true"

type printer interface {
	PrettyPrint() string
}

func print(cmd *cobra.Command, p printer) error {
	str := p.PrettyPrint()
	if cmd.Flags().Lookup("json").Value.String() == trueStr {
		jsonData, err := json.MarshalIndent(p, "\t")
		if err != nil {
			return err
		}
		str = string(jsonData)
	}

	fmt.Println(str) //nolint:forbidigo
	return nil
}
